package hiring

import (
	"context"
	"time"
)

// Prompt is question sent to a single person. Options, when set, are the
// only acceptable answers; otherwise any free text is accepted.
type Prompt struct {
	Text    string
	Options []string
}

// PromptHandle identifies outstanding prompt
type PromptHandle string

// Response is answer to a prompt
type Response struct {
	UserID string
	Value  string
}

// Prompter asks people questions and waits for the answer
type Prompter interface {
	SendPrompt(ctx context.Context, target string, p Prompt) (PromptHandle, error)
	// AwaitResponse blocks until answer arrives or returns ErrTimedOut after timeout
	AwaitResponse(ctx context.Context, h PromptHandle, timeout time.Duration) (Response, error)
}

// Transport is chat platform used by the bot
type Transport interface {
	Prompter
	// Notify sends plain message to a user or a thread
	Notify(ctx context.Context, target, text string) error
	CreateThread(ctx context.Context, channel, name string) (string, error)
	AddMember(ctx context.Context, threadRef, userID string) error
	RemoveMember(ctx context.Context, threadRef, userID, reason string) error
}

// Report is permanent interview summary
type Report struct {
	InterviewID    string
	Specialization Specialization
	CandidateRef   string
	CandidateName  string
	HireDecision   *bool
	Markdown       string
	ClosedAt       time.Time
}

// ReportSink delivers closed interview reports somewhere durable
type ReportSink interface {
	PublishReport(ctx context.Context, r Report) error
}

// WorkInspector annotates task work, e.g. links to merge requests
type WorkInspector interface {
	Describe(ctx context.Context, work string) (string, bool)
}

// Metrics receives lifecycle events
type Metrics interface {
	Assigned(tier string)
	AssignmentFailed(role Role)
	Transition(name string)
	PromptTimedOut()
}

type nopMetrics struct{}

func (nopMetrics) Assigned(string)       {}
func (nopMetrics) AssignmentFailed(Role) {}
func (nopMetrics) Transition(string)     {}
func (nopMetrics) PromptTimedOut()       {}
