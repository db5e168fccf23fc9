package hiring

import (
	"context"
	"time"
)

// Store is source of all shared mutable state. Every Tx is serializable
// with respect to other write transactions.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is single store transaction. Lookups return ErrNotFound for missing
// records, inserts return ErrConflict on unique key violations.
type Tx interface {
	// Reviewer returns reviewer with all role preferences
	Reviewer(ctx context.Context, id string) (Reviewer, error)
	SaveReviewer(ctx context.Context, r Reviewer) error
	UpsertRolePreference(ctx context.Context, p RolePreference) error
	DeleteRolePreference(ctx context.Context, reviewerID string, spec Specialization) error
	// Candidates returns preferences matching q with the workload of each reviewer
	Candidates(ctx context.Context, q CandidateQuery) ([]Candidate, error)

	CreateReferral(ctx context.Context, r *Referral) error
	Referral(ctx context.Context, candidateRef string) (Referral, error)
	Referrals(ctx context.Context) ([]Referral, error)
	DeleteReferral(ctx context.Context, candidateRef string) error

	CreateInterview(ctx context.Context, iv *Interview) error
	Interview(ctx context.Context, id string) (Interview, error)
	InterviewByCandidate(ctx context.Context, candidateRef string, spec Specialization) (Interview, error)
	InterviewByThread(ctx context.Context, threadRef string) (Interview, error)
	Interviews(ctx context.Context, f InterviewFilter) ([]Interview, error)
	SetThread(ctx context.Context, id, threadRef string) error
	DeleteInterview(ctx context.Context, id string) error
	// MarkTasksFinalized and MarkComplete are compare-and-set transitions,
	// false means the interview was not in the expected state.
	MarkTasksFinalized(ctx context.Context, id string) (bool, error)
	MarkComplete(ctx context.Context, id, summary string, closedAt time.Time) (bool, error)
	// SetHireDecision only touches complete interviews
	SetHireDecision(ctx context.Context, id string, hire bool) (bool, error)

	Tasks(ctx context.Context, interviewID string) ([]Task, error)
	Task(ctx context.Context, interviewID, name string) (Task, error)
	// CreateTask inserts task together with both task evaluations
	CreateTask(ctx context.Context, t *Task) error
	// task mutations are refused (false) once the interview tasks are finalized
	SetTaskWork(ctx context.Context, taskID int64, work string) (bool, error)
	DeleteTask(ctx context.Context, taskID int64) (bool, error)
	UpdateTaskEvaluation(ctx context.Context, e TaskEvaluation) (bool, error)

	UpsertInterviewEvaluation(ctx context.Context, interviewID string, role Role, reviewerID string) (InterviewEvaluation, error)
	InterviewEvaluations(ctx context.Context, interviewID string) (Evaluations, error)
	// UpdateInterviewEvaluation is refused (false) once the interview is complete
	UpdateInterviewEvaluation(ctx context.Context, e InterviewEvaluation) (bool, error)
}
