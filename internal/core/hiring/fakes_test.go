package hiring_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/store/sqlite"
)

const (
	admin   = "admin"
	channel = "-100"
)

type notice struct {
	target string
	text   string
}

// fakeTransport answers prompts from per user scripts. A prompt without a
// scripted answer times out.
type fakeTransport struct {
	mu sync.Mutex

	answers map[string][]string
	pending map[hiring.PromptHandle]*string
	prompts map[string][]hiring.Prompt
	notices []notice
	threads int
	members map[string][]string
	removed map[string][]string

	createErr error
	addErr    error
	removeErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		answers: map[string][]string{},
		pending: map[hiring.PromptHandle]*string{},
		prompts: map[string][]hiring.Prompt{},
		members: map[string][]string{},
		removed: map[string][]string{},
	}
}

func (f *fakeTransport) script(user string, answers ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[user] = append(f.answers[user], answers...)
}

func (f *fakeTransport) SendPrompt(_ context.Context, target string, p hiring.Prompt) (hiring.PromptHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts[target] = append(f.prompts[target], p)
	h := hiring.PromptHandle(fmt.Sprintf("%s/%d", target, len(f.prompts[target])))
	if q := f.answers[target]; len(q) > 0 {
		v := q[0]
		f.answers[target] = q[1:]
		f.pending[h] = &v
	} else {
		f.pending[h] = nil
	}
	return h, nil
}

func (f *fakeTransport) AwaitResponse(_ context.Context, h hiring.PromptHandle, _ time.Duration) (hiring.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.pending[h]
	if !ok {
		return hiring.Response{}, errors.New("unknown prompt")
	}
	delete(f.pending, h)
	if v == nil {
		return hiring.Response{}, errors.Wrap(hiring.ErrTimedOut, "fake prompt")
	}
	return hiring.Response{Value: *v}, nil
}

func (f *fakeTransport) Notify(_ context.Context, target, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{target: target, text: text})
	return nil
}

func (f *fakeTransport) CreateThread(_ context.Context, ch, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.threads++
	return fmt.Sprintf("%s:%d", ch, f.threads), nil
}

func (f *fakeTransport) AddMember(_ context.Context, thread, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.members[thread] = append(f.members[thread], user)
	return nil
}

func (f *fakeTransport) RemoveMember(_ context.Context, thread, user, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed[thread] = append(f.removed[thread], user)
	return nil
}

func (f *fakeTransport) noticesTo(target string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.notices {
		if n.target == target {
			out = append(out, n.text)
		}
	}
	return out
}

func (f *fakeTransport) promptsTo(target string) []hiring.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]hiring.Prompt(nil), f.prompts[target]...)
}

type fakeMetrics struct {
	mu          sync.Mutex
	assigned    map[string]int
	failed      map[hiring.Role]int
	transitions map[string]int
	timeouts    int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		assigned:    map[string]int{},
		failed:      map[hiring.Role]int{},
		transitions: map[string]int{},
	}
}

func (m *fakeMetrics) Assigned(tier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assigned[tier]++
}

func (m *fakeMetrics) AssignmentFailed(r hiring.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[r]++
}

func (m *fakeMetrics) Transition(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[name]++
}

func (m *fakeMetrics) PromptTimedOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

type recordingSink struct {
	mu      sync.Mutex
	reports []hiring.Report
	err     error
}

func (s *recordingSink) PublishReport(_ context.Context, r hiring.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

type stubInspector map[string]string

func (s stubInspector) Describe(_ context.Context, work string) (string, bool) {
	note, ok := s[work]
	return note, ok
}

type env struct {
	t       *testing.T
	ctx     context.Context
	svc     *hiring.Service
	tr      *fakeTransport
	metrics *fakeMetrics
	sink    *recordingSink
	now     time.Time
}

func newEnv(t *testing.T, countClosed bool, opts ...hiring.Option) *env {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "hiring.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log, _ := test.NewNullLogger()
	e := &env{
		t:       t,
		ctx:     context.Background(),
		tr:      newFakeTransport(),
		metrics: newFakeMetrics(),
		sink:    &recordingSink{},
		now:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	opts = append([]hiring.Option{
		hiring.WithLogger(log),
		hiring.WithMetrics(e.metrics),
		hiring.WithReportSinks(e.sink),
		hiring.WithClock(func() time.Time { return e.now }),
	}, opts...)
	e.svc = hiring.NewService(hiring.Config{
		AdminID:       admin,
		HiringChannel: channel,
		CountClosed:   countClosed,
	}, store, e.tr, opts...)
	return e
}

// reviewer registers id with a preference for spec
func (e *env) reviewer(id string, spec hiring.Specialization, queueMax int, willing bool, authority hiring.Authority) {
	e.t.Helper()
	require.NoError(e.t, e.svc.RegisterReviewer(e.ctx, id, id))
	_, err := e.svc.ConfigurePreference(e.ctx, id, spec, queueMax, willing)
	require.NoError(e.t, err)
	require.NoError(e.t, e.svc.GrantAuthority(e.ctx, admin, id, spec, authority))
}

func (e *env) refer(candidate string, specs ...hiring.Specialization) {
	e.t.Helper()
	_, err := e.svc.Refer(e.ctx, hiring.Referral{
		ReferrerID:      admin,
		CandidateRef:    candidate,
		CandidateName:   "Candidate " + candidate,
		Specializations: specs,
		Rating:          4,
	})
	require.NoError(e.t, err)
}

func (e *env) start(candidate string, spec hiring.Specialization) hiring.Interview {
	e.t.Helper()
	e.refer(candidate, spec)
	iv, err := e.svc.StartInterview(e.ctx, admin, candidate, spec)
	require.NoError(e.t, err)
	return iv
}

func (e *env) phase(id string) hiring.Phase {
	e.t.Helper()
	st, err := e.svc.Status(e.ctx, admin, id)
	require.NoError(e.t, err)
	return st.Phase
}

// closeInterview drives a split or dual interview through every phase up to closed
func (e *env) closeInterview(iv hiring.Interview) hiring.Report {
	e.t.Helper()
	ctx := e.ctx
	_, _, err := e.svc.CreateOrUpdateTask(ctx, iv.ApplicationManagerID, iv.ID, "house")
	require.NoError(e.t, err)
	require.NoError(e.t, e.svc.SetWork(ctx, iv.ApplicationManagerID, iv.ID, "house", "built a house"))
	require.NoError(e.t, e.svc.FinalizeTasks(ctx, iv.HiringManagerID, iv.ID))

	form := hiring.InterviewEvaluationForm{Approval: "y", Score: "8", Report: "good"}
	require.NoError(e.t, e.svc.SubmitInterviewEvaluation(ctx, iv.HiringManagerID, iv.ID, hiring.RoleHiringManager, form))
	if !iv.DualRole() {
		require.NoError(e.t, e.svc.SubmitInterviewEvaluation(ctx, iv.ApplicationManagerID, iv.ID, hiring.RoleApplicationManager, form))
	}
	rep, err := e.svc.Close(ctx, iv.HiringManagerID, iv.ID)
	require.NoError(e.t, err)
	return rep
}
