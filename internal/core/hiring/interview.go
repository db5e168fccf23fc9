package hiring

import (
	"fmt"
	"strings"
	"time"
)

// Phase is derived interview lifecycle state
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseTasksFinalized
	PhaseEvaluated
	PhaseClosed
	PhaseDecided
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "OPEN"
	case PhaseTasksFinalized:
		return "TASKS_FINALIZED"
	case PhaseEvaluated:
		return "EVALUATED"
	case PhaseClosed:
		return "CLOSED"
	case PhaseDecided:
		return "DECIDED"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Phases in lifecycle order
var Phases = []Phase{PhaseOpen, PhaseTasksFinalized, PhaseEvaluated, PhaseClosed, PhaseDecided}

// Action is a mutation somebody may attempt on an interview
type Action int

const (
	ActionEditTasks Action = iota
	ActionEvaluateTask
	ActionFinalizeTasks
	ActionEvaluateInterview
	ActionClose
	ActionDecide
)

// allowed actions per phase
var phaseActions = map[Phase][]Action{
	PhaseOpen:           {ActionEditTasks, ActionEvaluateTask, ActionFinalizeTasks},
	PhaseTasksFinalized: {ActionEvaluateInterview},
	PhaseEvaluated:      {ActionEvaluateInterview, ActionClose},
	PhaseClosed:         {ActionDecide},
	PhaseDecided:        {ActionDecide},
}

// Allows reports whether action a is legal in phase p
func (p Phase) Allows(a Action) bool {
	for _, allowed := range phaseActions[p] {
		if allowed == a {
			return true
		}
	}
	return false
}

// guard returns context error describing why a is illegal in p
func (p Phase) guard(a Action) error {
	if p.Allows(a) {
		return nil
	}
	switch {
	case p >= PhaseClosed:
		return Errorf(KindContext, "Can't perform this action as this interview has been closed!")
	case a == ActionFinalizeTasks:
		return Errorf(KindContext, "Tasks have already been finalized!")
	case a == ActionEditTasks || a == ActionEvaluateTask:
		return Errorf(KindContext, "Tasks are locked, the interview is in final review!")
	case a == ActionEvaluateInterview:
		return Errorf(KindContext, "Tasks must be finalized before evaluating the interview!")
	case a == ActionClose && p == PhaseOpen:
		return Errorf(KindContext, "Tasks must be finalized before the interview can be closed!")
	case a == ActionClose:
		return Errorf(KindContext, "Interview evaluations are incomplete!")
	case a == ActionDecide:
		return Errorf(KindContext, "The interview must be closed before a hiring decision!")
	}
	return Errorf(KindContext, "Action is not allowed while interview is %s", p)
}

// Interview is the central workflow entity
type Interview struct {
	ID                   string
	Specialization       Specialization
	CandidateRef         string
	CandidateName        string
	ReferrerID           string
	HiringManagerID      string
	ApplicationManagerID string
	ThreadRef            string
	TasksFinalized       bool
	Complete             bool
	HireDecision         *bool
	Summary              string
	CreatedAt            time.Time
	ClosedAt             *time.Time
}

// DualRole is true when one reviewer holds both roles
func (iv Interview) DualRole() bool {
	return iv.HiringManagerID == iv.ApplicationManagerID
}

// ThreadName is name of collaboration thread for the interview
func (iv Interview) ThreadName() string {
	name := iv.CandidateName
	if name == "" {
		name = iv.CandidateRef
	}
	id := iv.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s", strings.ToLower(string(iv.Specialization)), name, id)
}

// Phase derives lifecycle state. evaluated must be the result of
// EvaluationsComplete for the same interview.
func (iv Interview) Phase(evaluated bool) Phase {
	switch {
	case iv.Complete && iv.HireDecision != nil:
		return PhaseDecided
	case iv.Complete:
		return PhaseClosed
	case iv.TasksFinalized && evaluated:
		return PhaseEvaluated
	case iv.TasksFinalized:
		return PhaseTasksFinalized
	}
	return PhaseOpen
}

// InterviewFilter narrows Tx.Interviews
type InterviewFilter struct {
	ReviewerID     string
	Specialization Specialization
	// Complete filters by closed state when set
	Complete *bool
}

// Referral is candidate proposed by a referrer
type Referral struct {
	ID              int64
	ReferrerID      string
	CandidateRef    string
	CandidateName   string
	Specializations []Specialization
	Rating          int
	Notes           string
	CreatedAt       time.Time
}

const (
	MinRating = 1
	MaxRating = 5
)

// Has reports whether referral covers specialization
func (r Referral) Has(spec Specialization) bool {
	for _, s := range r.Specializations {
		if s == spec {
			return true
		}
	}
	return false
}

func (r Referral) validate() error {
	if strings.TrimSpace(r.CandidateRef) == "" {
		return Errorf(KindArgument, "Candidate is required!")
	}
	if len(r.Specializations) == 0 {
		return Errorf(KindArgument, "At least one specialization is required!")
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		return Errorf(KindArgument, "Rating %d not in range %d - %d", r.Rating, MinRating, MaxRating)
	}
	return nil
}
