package hiring

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// loadInterview resolves caller roles on interview. Unknown reviewers and
// reviewers without a role on the interview are rejected.
func loadInterview(ctx context.Context, tx Tx, caller, interviewID string) (Interview, RoleSet, error) {
	if _, err := requireReviewer(ctx, tx, caller); err != nil {
		return Interview{}, 0, err
	}
	iv, err := tx.Interview(ctx, interviewID)
	if err != nil {
		return Interview{}, 0, storeErr(err, KindContext, "Interview not found!")
	}
	roles := RolesOf(caller, iv)
	if roles.Empty() {
		return Interview{}, 0, Errorf(KindCredentials, "You are not a manager of this interview!")
	}
	return iv, roles, nil
}

func phaseOf(ctx context.Context, tx Tx, iv Interview) (Phase, Evaluations, error) {
	evals, err := tx.InterviewEvaluations(ctx, iv.ID)
	if err != nil {
		return 0, Evaluations{}, dataErr(err, "list interview evaluations")
	}
	return iv.Phase(EvaluationsComplete(iv, evals).Done()), evals, nil
}

// guardPhase fails unless action a is legal for interview right now
func guardPhase(ctx context.Context, tx Tx, iv Interview, a Action) (Phase, Evaluations, error) {
	p, evals, err := phaseOf(ctx, tx, iv)
	if err != nil {
		return 0, Evaluations{}, err
	}
	return p, evals, p.guard(a)
}

func findTask(ctx context.Context, tx Tx, iv Interview, name string) (Task, error) {
	t, err := tx.Task(ctx, iv.ID, name)
	if err != nil {
		return Task{}, storeErr(err, KindContext, fmt.Sprintf("Task %q does not exist!", name))
	}
	if err := checkTask(t); err != nil {
		return Task{}, err
	}
	return t, nil
}

// checkTask verifies the evaluations loaded with t belong to it
func checkTask(t Task) error {
	for _, e := range []TaskEvaluation{t.HM, t.AM} {
		if e.TaskID != t.ID {
			return Errorf(KindInternal, "task evaluation %d belongs to task %d, not %d", e.ID, e.TaskID, t.ID)
		}
	}
	return nil
}

func tasksLocked() error {
	return Errorf(KindContext, "Tasks are locked, the interview is in final review!")
}

func fieldsOf(caller, interviewID string) logrus.Fields {
	return logrus.Fields{"reviewer": caller, "interview": interviewID}
}

// CreateOrUpdateTask opens task for editing. A missing task is created, only
// the application manager may do that. Returned roles are the task
// evaluations the caller may fill in.
func (s *Service) CreateOrUpdateTask(ctx context.Context, caller, interviewID, name string) (Task, []Role, error) {
	var (
		task  Task
		roles RoleSet
	)
	err := s.tx(ctx, func(tx Tx) error {
		var (
			iv  Interview
			err error
		)
		iv, roles, err = loadInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		if _, _, err := guardPhase(ctx, tx, iv, ActionEditTasks); err != nil {
			return err
		}
		if err := ValidateTaskName(name); err != nil {
			return err
		}

		task, err = tx.Task(ctx, iv.ID, name)
		if err == nil {
			return checkTask(task)
		}
		if !errors.Is(err, ErrNotFound) {
			return dataErr(err, "find task")
		}

		if !roles.Has(RoleApplicationManager) {
			return Errorf(KindCredentials, "Only the application manager can create tasks!")
		}
		task = Task{
			InterviewID: iv.ID,
			Name:        name,
			HM:          TaskEvaluation{Role: RoleHiringManager, ReviewerID: iv.HiringManagerID},
			AM:          TaskEvaluation{Role: RoleApplicationManager, ReviewerID: iv.ApplicationManagerID},
		}
		err = tx.CreateTask(ctx, &task)
		if err != nil {
			return storeErr(err, KindContext, "Task already exists!")
		}
		s.log.WithFields(fieldsOf(caller, interviewID)).WithField("task", name).Info("task created")
		return nil
	})
	if err != nil {
		return Task{}, nil, s.logged("create_or_update_task", fieldsOf(caller, interviewID), err)
	}
	return task, roles.Roles(), nil
}

// SetWork stores work text of task
func (s *Service) SetWork(ctx context.Context, caller, interviewID, name, work string) error {
	err := s.tx(ctx, func(tx Tx) error {
		iv, _, err := loadInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		if _, _, err := guardPhase(ctx, tx, iv, ActionEditTasks); err != nil {
			return err
		}
		if utf8.RuneCountInString(work) > MaxWorkLen {
			return Errorf(KindArgument, "Work is too long, keep it under %d characters!", MaxWorkLen)
		}
		t, err := findTask(ctx, tx, iv, name)
		if err != nil {
			return err
		}
		ok, err := tx.SetTaskWork(ctx, t.ID, work)
		if err != nil {
			return dataErr(err, "set task work")
		}
		if !ok {
			return tasksLocked()
		}
		return nil
	})
	return s.logged("set_work", fieldsOf(caller, interviewID), err)
}

// DeleteTask removes task with its evaluations, application manager only
func (s *Service) DeleteTask(ctx context.Context, caller, interviewID, name string) error {
	err := s.tx(ctx, func(tx Tx) error {
		iv, roles, err := loadInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		if _, _, err := guardPhase(ctx, tx, iv, ActionEditTasks); err != nil {
			return err
		}
		if !roles.Has(RoleApplicationManager) {
			return Errorf(KindCredentials, "Only the application manager can delete tasks!")
		}
		t, err := findTask(ctx, tx, iv, name)
		if err != nil {
			return err
		}
		ok, err := tx.DeleteTask(ctx, t.ID)
		if err != nil {
			return dataErr(err, "delete task")
		}
		if !ok {
			return tasksLocked()
		}
		return nil
	})
	return s.logged("delete_task", fieldsOf(caller, interviewID), err)
}

// SubmitTaskEvaluation stores caller's verdict on task for role
func (s *Service) SubmitTaskEvaluation(ctx context.Context, caller, interviewID, name string, role Role, form TaskEvaluationForm) error {
	pass, err := form.parse()
	if err != nil {
		return s.logged("submit_task_evaluation", fieldsOf(caller, interviewID), err)
	}
	err = s.tx(ctx, func(tx Tx) error {
		iv, roles, err := loadInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		if !roles.Has(role) {
			return Errorf(KindCredentials, "You are not the %s of this interview!", role.Short())
		}
		if _, _, err := guardPhase(ctx, tx, iv, ActionEvaluateTask); err != nil {
			return err
		}
		t, err := findTask(ctx, tx, iv, name)
		if err != nil {
			return err
		}
		ev := t.Evaluation(role)
		ev.Pass = pass
		ev.Report = form.Report
		ok, err := tx.UpdateTaskEvaluation(ctx, ev)
		if err != nil {
			return dataErr(err, "update task evaluation")
		}
		if !ok {
			return tasksLocked()
		}
		return nil
	})
	return s.logged("submit_task_evaluation", fieldsOf(caller, interviewID), err)
}

// evaluationRole is the role whose evaluation the caller fills in. A dual
// role reviewer evaluates as hiring manager.
func evaluationRole(roles RoleSet) Role {
	if roles.Has(RoleHiringManager) {
		return RoleHiringManager
	}
	return RoleApplicationManager
}

// EvaluateTask asks caller for approval and reasoning on task
func (s *Service) EvaluateTask(ctx context.Context, caller, interviewID, name string) error {
	var role Role
	err := s.tx(ctx, func(tx Tx) error {
		iv, roles, err := loadInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		if _, _, err := guardPhase(ctx, tx, iv, ActionEvaluateTask); err != nil {
			return err
		}
		if _, err := findTask(ctx, tx, iv, name); err != nil {
			return err
		}
		role = evaluationRole(roles)
		return nil
	})
	if err != nil {
		return s.logged("evaluate_task", fieldsOf(caller, interviewID), err)
	}

	err = s.interactive(ctx, caller, func() error {
		approval, err := s.ask(ctx, caller, Prompt{
			Text:    fmt.Sprintf("Does task %q pass? (%s)", name, role.Short()),
			Options: []string{"y", "n"},
		}, s.cfg.PromptTimeout)
		if err != nil {
			return err
		}
		report, err := s.ask(ctx, caller, Prompt{
			Text: fmt.Sprintf("Explain your verdict on %q (max %d characters).", name, MaxReportLen),
		}, s.cfg.PromptTimeout)
		if err != nil {
			return err
		}
		return s.SubmitTaskEvaluation(ctx, caller, interviewID, name, role, TaskEvaluationForm{Approval: approval, Report: report})
	})
	return s.logged("evaluate_task", fieldsOf(caller, interviewID), err)
}

// FinalizeTasks locks tasks and removes the candidate from the interview thread
func (s *Service) FinalizeTasks(ctx context.Context, caller, interviewID string) error {
	var iv Interview
	err := s.tx(ctx, func(tx Tx) error {
		var err error
		iv, _, err = loadInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		if _, _, err := guardPhase(ctx, tx, iv, ActionFinalizeTasks); err != nil {
			return err
		}
		if iv.ThreadRef == "" {
			return Errorf(KindContext, "This interview has no thread!")
		}
		ok, err := tx.MarkTasksFinalized(ctx, iv.ID)
		if err != nil {
			return dataErr(err, "mark tasks finalized")
		}
		if !ok {
			return Errorf(KindContext, "Tasks have already been finalized!")
		}
		return nil
	})
	if err != nil {
		return s.logged("finalize_tasks", fieldsOf(caller, interviewID), err)
	}

	s.metrics.Transition("finalize")
	s.log.WithFields(fieldsOf(caller, interviewID)).Info("tasks finalized")

	if err := s.transport.RemoveMember(ctx, iv.ThreadRef, iv.CandidateRef, "tasks finalized"); err != nil {
		err = Wrapf(err, KindTransport, "Tasks were finalized, but the candidate could not be removed from the thread!")
		return s.logged("finalize_tasks", fieldsOf(caller, interviewID), err)
	}
	if err := s.transport.Notify(ctx, iv.ThreadRef, "Tasks are finalized, please submit your interview evaluations."); err != nil {
		s.log.WithFields(fieldsOf(caller, interviewID)).WithError(err).Warn("can not post finalize notice")
	}
	return nil
}

// solicited lists interview evaluations caller is asked for
func solicited(roles RoleSet) []Role {
	if roles.Both() {
		return []Role{RoleHiringManager}
	}
	return roles.Roles()
}

// RequestEvaluation prepares interview evaluation records for the caller's
// roles and returns the roles the caller should evaluate as.
func (s *Service) RequestEvaluation(ctx context.Context, caller, interviewID string) ([]Role, error) {
	var roles []Role
	err := s.tx(ctx, func(tx Tx) error {
		iv, set, err := loadInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		if _, _, err := guardPhase(ctx, tx, iv, ActionEvaluateInterview); err != nil {
			return err
		}
		roles = solicited(set)
		for _, r := range roles {
			if _, err := tx.UpsertInterviewEvaluation(ctx, iv.ID, r, caller); err != nil {
				return dataErr(err, "upsert interview evaluation")
			}
		}
		return nil
	})
	return roles, s.logged("request_evaluation", fieldsOf(caller, interviewID), err)
}

// SubmitInterviewEvaluation stores caller's evaluation of the interview
func (s *Service) SubmitInterviewEvaluation(ctx context.Context, caller, interviewID string, role Role, form InterviewEvaluationForm) error {
	pass, score, err := form.parse()
	if err != nil {
		return s.logged("submit_interview_evaluation", fieldsOf(caller, interviewID), err)
	}
	err = s.tx(ctx, func(tx Tx) error {
		iv, roles, err := loadInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		if !roles.Has(role) {
			return Errorf(KindCredentials, "You are not the %s of this interview!", role.Short())
		}
		if _, _, err := guardPhase(ctx, tx, iv, ActionEvaluateInterview); err != nil {
			return err
		}
		ev, err := tx.UpsertInterviewEvaluation(ctx, iv.ID, role, caller)
		if err != nil {
			return dataErr(err, "upsert interview evaluation")
		}
		ev.Pass = pass
		ev.Score = score
		ev.Report = form.Report
		ok, err := tx.UpdateInterviewEvaluation(ctx, ev)
		if err != nil {
			return dataErr(err, "update interview evaluation")
		}
		if !ok {
			return Errorf(KindContext, "Can't perform this action as this interview has been closed!")
		}
		return nil
	})
	return s.logged("submit_interview_evaluation", fieldsOf(caller, interviewID), err)
}

// EvaluateInterview asks caller for the interview evaluation of each role they hold
func (s *Service) EvaluateInterview(ctx context.Context, caller, interviewID string) error {
	roles, err := s.RequestEvaluation(ctx, caller, interviewID)
	if err != nil {
		return err
	}

	err = s.interactive(ctx, caller, func() error {
		for _, role := range roles {
			approval, err := s.ask(ctx, caller, Prompt{
				Text:    fmt.Sprintf("Should the candidate be hired? (%s)", role.Short()),
				Options: []string{"y", "n"},
			}, s.cfg.PromptTimeout)
			if err != nil {
				return err
			}
			score, err := s.ask(ctx, caller, Prompt{
				Text: fmt.Sprintf("Rate the candidate from %d to %d.", MinScore, MaxScore),
			}, s.cfg.PromptTimeout)
			if err != nil {
				return err
			}
			report, err := s.ask(ctx, caller, Prompt{
				Text: fmt.Sprintf("Explain your rating (max %d characters).", MaxReportLen),
			}, s.cfg.PromptTimeout)
			if err != nil {
				return err
			}
			form := InterviewEvaluationForm{Approval: approval, Score: score, Report: report}
			if err := s.SubmitInterviewEvaluation(ctx, caller, interviewID, role, form); err != nil {
				return err
			}
		}
		return nil
	})
	return s.logged("evaluate_interview", fieldsOf(caller, interviewID), err)
}

// Close completes interview and publishes its summary. The administrator is
// notified to make the hiring decision.
func (s *Service) Close(ctx context.Context, caller, interviewID string) (Report, error) {
	var tasks []Task
	err := s.tx(ctx, func(tx Tx) error {
		iv, _, err := loadInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		if _, _, err := guardPhase(ctx, tx, iv, ActionClose); err != nil {
			return err
		}
		tasks, err = tx.Tasks(ctx, iv.ID)
		return dataErr(err, "list tasks")
	})
	if err != nil {
		return Report{}, s.logged("close", fieldsOf(caller, interviewID), err)
	}

	// tasks are immutable once finalized, annotations stay valid
	notes := s.annotate(ctx, tasks)

	var rep Report
	err = s.tx(ctx, func(tx Tx) error {
		iv, _, err := loadInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		_, evals, err := guardPhase(ctx, tx, iv, ActionClose)
		if err != nil {
			return err
		}
		tasks, err := tx.Tasks(ctx, iv.ID)
		if err != nil {
			return dataErr(err, "list tasks")
		}

		closedAt := s.now()
		iv.ClosedAt = &closedAt
		md := RenderReport(iv, tasks, evals, notes)
		ok, err := tx.MarkComplete(ctx, iv.ID, md, closedAt)
		if err != nil {
			return dataErr(err, "mark complete")
		}
		if !ok {
			return Errorf(KindContext, "Can't perform this action as this interview has been closed!")
		}
		rep = Report{
			InterviewID:    iv.ID,
			Specialization: iv.Specialization,
			CandidateRef:   iv.CandidateRef,
			CandidateName:  iv.CandidateName,
			Markdown:       md,
			ClosedAt:       closedAt,
		}
		return nil
	})
	if err != nil {
		return Report{}, s.logged("close", fieldsOf(caller, interviewID), err)
	}

	s.metrics.Transition("close")
	log := s.log.WithFields(fieldsOf(caller, interviewID))
	log.Info("interview closed")

	s.publish(ctx, log, rep)

	msg := fmt.Sprintf("Interview %s for %s (%s) is closed and awaits your hiring decision.",
		rep.InterviewID, rep.CandidateRef, rep.Specialization.English())
	if err := s.transport.Notify(ctx, s.cfg.AdminID, msg); err != nil {
		log.WithError(err).Warn("can not notify administrator")
	}
	return rep, nil
}

// publish hands report to every sink, failures are only logged
func (s *Service) publish(ctx context.Context, log logrus.FieldLogger, rep Report) {
	for _, sink := range s.sinks {
		if err := sink.PublishReport(ctx, rep); err != nil {
			log.WithError(err).Error("can not publish report")
		}
	}
}

// annotate asks work inspector about every task work
func (s *Service) annotate(ctx context.Context, tasks []Task) map[string]string {
	notes := map[string]string{}
	if s.inspector == nil {
		return notes
	}
	for _, t := range tasks {
		if !t.HasWork() {
			continue
		}
		if note, ok := s.inspector.Describe(ctx, t.Work); ok {
			notes[t.Name] = note
		}
	}
	return notes
}

// DecideHire records the administrator's hiring decision after a
// confirmation prompt. It returns false when the administrator declined.
func (s *Service) DecideHire(ctx context.Context, caller, interviewID string, hire bool) (bool, error) {
	fields := fieldsOf(caller, interviewID)
	if err := s.requireAdmin(caller); err != nil {
		return false, s.logged("decide_hire", fields, err)
	}

	var iv Interview
	check := func(tx Tx) error {
		var err error
		iv, err = tx.Interview(ctx, interviewID)
		if err != nil {
			return storeErr(err, KindContext, "Interview not found!")
		}
		_, _, err = guardPhase(ctx, tx, iv, ActionDecide)
		return err
	}
	if err := s.tx(ctx, check); err != nil {
		return false, s.logged("decide_hire", fields, err)
	}

	verdict := "NOT HIRE"
	if hire {
		verdict = "HIRE"
	}
	var answer string
	err := s.interactive(ctx, caller, func() error {
		var err error
		answer, err = s.ask(ctx, caller, Prompt{
			Text:    fmt.Sprintf("Record decision %s for %s (%s)?", verdict, iv.CandidateRef, iv.Specialization.English()),
			Options: []string{"yes", "no"},
		}, s.cfg.ConfirmationTimeout)
		return err
	})
	if err != nil {
		return false, s.logged("decide_hire", fields, err)
	}
	if !strings.EqualFold(answer, "yes") {
		return false, nil
	}

	err = s.tx(ctx, func(tx Tx) error {
		if err := check(tx); err != nil {
			return err
		}
		ok, err := tx.SetHireDecision(ctx, iv.ID, hire)
		if err != nil {
			return dataErr(err, "set hire decision")
		}
		if !ok {
			return Errorf(KindContext, "The interview must be closed before a hiring decision!")
		}
		return nil
	})
	if err != nil {
		return false, s.logged("decide_hire", fields, err)
	}
	s.metrics.Transition("decide")
	log := s.log.WithFields(fields).WithField("hire", hire)
	log.Info("hiring decision recorded")

	rep := Report{
		InterviewID:    iv.ID,
		Specialization: iv.Specialization,
		CandidateRef:   iv.CandidateRef,
		CandidateName:  iv.CandidateName,
		HireDecision:   &hire,
		Markdown:       iv.Summary,
	}
	if iv.ClosedAt != nil {
		rep.ClosedAt = *iv.ClosedAt
	}
	s.publish(ctx, log, rep)
	return true, nil
}

// InterviewStatus is snapshot shown by the status command
type InterviewStatus struct {
	Interview    Interview
	Phase        Phase
	Tasks        []TaskReviewStatus
	Completeness Completeness
}

// Status returns interview phase with the task table, administrator may look too
func (s *Service) Status(ctx context.Context, caller, interviewID string) (InterviewStatus, error) {
	var st InterviewStatus
	err := s.tx(ctx, func(tx Tx) error {
		iv, err := s.visibleInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		p, evals, err := phaseOf(ctx, tx, iv)
		if err != nil {
			return err
		}
		tasks, err := tx.Tasks(ctx, iv.ID)
		if err != nil {
			return dataErr(err, "list tasks")
		}
		st = InterviewStatus{Interview: iv, Phase: p, Completeness: EvaluationsComplete(iv, evals)}
		for _, t := range tasks {
			st.Tasks = append(st.Tasks, TaskStatus(iv, t))
		}
		return nil
	})
	return st, s.logged("status", fieldsOf(caller, interviewID), err)
}

// ShowWork returns work text of task
func (s *Service) ShowWork(ctx context.Context, caller, interviewID, name string) (string, error) {
	var work string
	err := s.tx(ctx, func(tx Tx) error {
		iv, err := s.visibleInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		t, err := findTask(ctx, tx, iv, name)
		if err != nil {
			return err
		}
		work = t.Work
		return nil
	})
	return work, s.logged("show_work", fieldsOf(caller, interviewID), err)
}

// Report renders interview report. Closed interviews return the stored summary.
func (s *Service) Report(ctx context.Context, caller, interviewID string) (string, error) {
	var (
		iv    Interview
		tasks []Task
		evals Evaluations
	)
	err := s.tx(ctx, func(tx Tx) error {
		var err error
		iv, err = s.visibleInterview(ctx, tx, caller, interviewID)
		if err != nil {
			return err
		}
		if iv.Complete {
			return nil
		}
		if _, evals, err = phaseOf(ctx, tx, iv); err != nil {
			return err
		}
		tasks, err = tx.Tasks(ctx, iv.ID)
		return dataErr(err, "list tasks")
	})
	if err != nil {
		return "", s.logged("report", fieldsOf(caller, interviewID), err)
	}
	if iv.Complete {
		return iv.Summary, nil
	}
	return RenderReport(iv, tasks, evals, s.annotate(ctx, tasks)), nil
}

func (s *Service) visibleInterview(ctx context.Context, tx Tx, caller, interviewID string) (Interview, error) {
	if s.IsAdmin(caller) {
		iv, err := tx.Interview(ctx, interviewID)
		return iv, storeErr(err, KindContext, "Interview not found!")
	}
	iv, _, err := loadInterview(ctx, tx, caller, interviewID)
	return iv, err
}
