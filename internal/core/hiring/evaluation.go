package hiring

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	minTaskNameLen = 2
	maxTaskNameLen = 14

	// MaxWorkLen is the ceiling for task work text
	MaxWorkLen = 1500
	// MaxReportLen is the ceiling for every evaluation report
	MaxReportLen = 1500

	MinScore = 1
	MaxScore = 10
)

// Task is unit of evaluatable work within an interview
type Task struct {
	ID          int64
	InterviewID string
	Name        string
	Work        string
	HM          TaskEvaluation
	AM          TaskEvaluation
}

// HasWork is true once something was submitted
func (t Task) HasWork() bool {
	return len(t.Work) > 0
}

// Evaluation returns task evaluation that belongs to role
func (t Task) Evaluation(r Role) TaskEvaluation {
	if r == RoleApplicationManager {
		return t.AM
	}
	return t.HM
}

// TaskEvaluation is one reviewer's verdict on a task
type TaskEvaluation struct {
	ID         int64
	TaskID     int64
	Role       Role
	ReviewerID string
	Pass       *bool
	Report     string
}

// Complete requires a verdict and a report longer than a placeholder character
func (e TaskEvaluation) Complete() bool {
	return e.Pass != nil && utf8.RuneCountInString(e.Report) >= 2
}

// InterviewEvaluation is one reviewer's verdict on the whole interview
type InterviewEvaluation struct {
	ID          int64
	InterviewID string
	Role        Role
	ReviewerID  string
	Pass        *bool
	Score       *int
	Report      string
}

// Complete requires verdict, score and a non empty report
func (e InterviewEvaluation) Complete() bool {
	return e.Pass != nil && e.Score != nil && len(e.Report) > 0
}

// Evaluations holds interview evaluations of both roles, nil when not requested yet
type Evaluations struct {
	HM *InterviewEvaluation
	AM *InterviewEvaluation
}

// Get returns evaluation for role
func (e Evaluations) Get(r Role) *InterviewEvaluation {
	if r == RoleApplicationManager {
		return e.AM
	}
	return e.HM
}

// Completeness is result of EvaluationsComplete
type Completeness struct {
	HM bool
	AM bool
}

// Done is true when interview may be closed (given tasks are finalized)
func (c Completeness) Done() bool { return c.HM && c.AM }

// EvaluationsComplete checks interview evaluations. A reviewer holding both
// roles fills out only the hiring manager evaluation.
func EvaluationsComplete(iv Interview, evals Evaluations) Completeness {
	hm := evals.HM != nil && evals.HM.Complete()
	var am bool
	if iv.DualRole() {
		am = hm
	} else {
		am = evals.AM != nil && evals.AM.Complete()
	}
	return Completeness{HM: hm, AM: am}
}

// TaskReviewStatus is one line of the task table
type TaskReviewStatus struct {
	Name       string
	WorkDone   bool
	AMReviewed bool
	HMReviewed bool
}

// TaskStatus summarizes task for status tables
func TaskStatus(iv Interview, t Task) TaskReviewStatus {
	hm := t.HM.Complete()
	am := t.AM.Complete()
	if iv.DualRole() {
		am = am || hm
	}
	return TaskReviewStatus{
		Name:       t.Name,
		WorkDone:   t.HasWork(),
		AMReviewed: am,
		HMReviewed: hm,
	}
}

// ValidateTaskName checks task name length
func ValidateTaskName(name string) error {
	n := utf8.RuneCountInString(name)
	if strings.TrimSpace(name) == "" || n < minTaskNameLen || n > maxTaskNameLen {
		return Errorf(KindArgument, "Task name must be between %d and %d characters!", minTaskNameLen, maxTaskNameLen)
	}
	return nil
}

// ParseApproval parses y/n field. Empty input or a lone space leaves the verdict unset.
func ParseApproval(s string) (*bool, error) {
	switch strings.ToLower(s) {
	case "y":
		v := true
		return &v, nil
	case "n":
		v := false
		return &v, nil
	case "", " ":
		return nil, nil
	}
	return nil, Errorf(KindArgument, "Approval input must be y or n!")
}

// ParseScore parses 1-10 rating. Empty input leaves score unset.
func ParseScore(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < MinScore || v > MaxScore {
		return nil, Errorf(KindArgument, "Evaluee rating must be between %d and %d!", MinScore, MaxScore)
	}
	return &v, nil
}

func validateReport(report string) error {
	if utf8.RuneCountInString(report) > MaxReportLen {
		return Errorf(KindArgument, "Reasoning is too long!")
	}
	return nil
}

// TaskEvaluationForm is raw user input for a task evaluation
type TaskEvaluationForm struct {
	Approval string
	Report   string
}

func (f TaskEvaluationForm) parse() (*bool, error) {
	if err := validateReport(f.Report); err != nil {
		return nil, err
	}
	return ParseApproval(f.Approval)
}

// InterviewEvaluationForm is raw user input for an interview evaluation
type InterviewEvaluationForm struct {
	Approval string
	Score    string
	Report   string
}

func (f InterviewEvaluationForm) parse() (*bool, *int, error) {
	if err := validateReport(f.Report); err != nil {
		return nil, nil, err
	}
	pass, err := ParseApproval(f.Approval)
	if err != nil {
		return nil, nil, err
	}
	score, err := ParseScore(f.Score)
	if err != nil {
		return nil, nil, err
	}
	return pass, score, nil
}
