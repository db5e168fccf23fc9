package hiring

import (
	"fmt"
	"strings"
)

func verdictText(pass *bool) string {
	switch {
	case pass == nil:
		return "not given"
	case *pass:
		return "pass"
	default:
		return "fail"
	}
}

func scoreText(v *int) string {
	if v == nil {
		return "not given"
	}
	return fmt.Sprintf("%d/%d", *v, MaxScore)
}

func checkMark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

// RenderTaskTable renders task progress as markdown table
func RenderTaskTable(rows []TaskReviewStatus) string {
	var b strings.Builder
	b.WriteString("| Name | Complete | App Mgr Review | Hiring Mgr Review |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, st := range rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", st.Name, checkMark(st.WorkDone), checkMark(st.AMReviewed), checkMark(st.HMReviewed))
	}
	return b.String()
}

// RenderReport renders interview summary in markdown. notes maps task name
// to extra information about its work.
func RenderReport(iv Interview, tasks []Task, evals Evaluations, notes map[string]string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Interview #%s\n\n", iv.ID)
	fmt.Fprintf(&b, "- Hiring manager: %s\n", iv.HiringManagerID)
	fmt.Fprintf(&b, "- Application manager: %s\n", iv.ApplicationManagerID)
	evaluee := iv.CandidateRef
	if iv.CandidateName != "" {
		evaluee = fmt.Sprintf("%s (%s)", iv.CandidateName, iv.CandidateRef)
	}
	fmt.Fprintf(&b, "- Evaluee: %s\n", evaluee)
	fmt.Fprintf(&b, "- Role: %s\n", iv.Specialization.English())
	if iv.ClosedAt != nil {
		fmt.Fprintf(&b, "- Closed: %s\n", iv.ClosedAt.UTC().Format("2006-01-02 15:04 MST"))
	}

	b.WriteString("\n## Tasks\n\n")
	if len(tasks) == 0 {
		b.WriteString("No tasks.\n")
	}
	for _, t := range tasks {
		fmt.Fprintf(&b, "### %s\n\n", t.Name)
		work := t.Work
		if work == "" {
			work = "_no work submitted_"
		}
		fmt.Fprintf(&b, "%s\n\n", work)
		if note, ok := notes[t.Name]; ok {
			fmt.Fprintf(&b, "> %s\n\n", note)
		}
		writeTaskEvaluation(&b, RoleHiringManager, t.HM)
		if !iv.DualRole() {
			writeTaskEvaluation(&b, RoleApplicationManager, t.AM)
		}
	}

	b.WriteString("## Interview Evaluations\n\n")
	roles := []Role{RoleHiringManager, RoleApplicationManager}
	if iv.DualRole() {
		roles = roles[:1]
	}
	for _, r := range roles {
		ev := evals.Get(r)
		fmt.Fprintf(&b, "### %s\n\n", r.Short())
		if ev == nil {
			b.WriteString("Not submitted.\n\n")
			continue
		}
		fmt.Fprintf(&b, "- Verdict: %s\n- Score: %s\n\n%s\n\n", verdictText(ev.Pass), scoreText(ev.Score), ev.Report)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeTaskEvaluation(b *strings.Builder, r Role, ev TaskEvaluation) {
	fmt.Fprintf(b, "**%s** (%s): %s\n\n", r.Short(), ev.ReviewerID, verdictText(ev.Pass))
	if ev.Report != "" {
		fmt.Fprintf(b, "%s\n\n", ev.Report)
	}
}
