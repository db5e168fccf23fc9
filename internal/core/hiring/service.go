package hiring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	DefaultPromptTimeout       = 5 * time.Minute
	DefaultConfirmationTimeout = time.Hour
)

// Config is service behaviour set by the operator
type Config struct {
	// AdminID is the single administrator identity
	AdminID string
	// HiringChannel is where interview threads are created
	HiringChannel string
	// CountClosed keeps closed interviews in reviewer workload
	CountClosed         bool
	PromptTimeout       time.Duration
	ConfirmationTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.PromptTimeout <= 0 {
		c.PromptTimeout = DefaultPromptTimeout
	}
	if c.ConfirmationTimeout <= 0 {
		c.ConfirmationTimeout = DefaultConfirmationTimeout
	}
}

// Option configures Service
type Option func(*Service)

// WithLogger sets logger, logrus standard logger is used otherwise
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithReportSinks adds destinations for closed interview reports
func WithReportSinks(sinks ...ReportSink) Option {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithWorkInspector sets inspector used to annotate task work in reports
func WithWorkInspector(wi WorkInspector) Option {
	return func(s *Service) { s.inspector = wi }
}

// WithMetrics sets lifecycle event receiver
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is entry point of every hiring operation. It is safe for
// concurrent use, all shared state lives in the store.
type Service struct {
	cfg       Config
	store     Store
	transport Transport
	matcher   Matcher
	sinks     []ReportSink
	inspector WorkInspector
	metrics   Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewService(cfg Config, store Store, transport Transport, opts ...Option) *Service {
	cfg.applyDefaults()
	s := &Service{
		cfg:       cfg,
		store:     store,
		transport: transport,
		matcher:   Matcher{CountClosed: cfg.CountClosed},
		metrics:   nopMetrics{},
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAdmin reports whether id is the configured administrator
func (s *Service) IsAdmin(id string) bool {
	return s.cfg.AdminID != "" && id == s.cfg.AdminID
}

func (s *Service) tx(ctx context.Context, fn func(tx Tx) error) error {
	return dataErr(s.store.WithTx(ctx, fn), "transaction")
}

// logged records failed operation. Internal and transport failures are
// logged at error level with the cause, user mistakes only at debug.
func (s *Service) logged(op string, fields logrus.Fields, err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	entry := s.log.WithFields(fields).WithFields(logrus.Fields{"op": op, "kind": kind.String()})
	switch {
	case IsTimeout(err):
		entry.Info("prompt timed out")
	case kind.internal() || kind == KindTransport:
		entry.WithError(err).Error("operation failed")
	default:
		entry.WithError(err).Debug("operation rejected")
	}
	return err
}

func (s *Service) requireAdmin(caller string) error {
	if !s.IsAdmin(caller) {
		return Errorf(KindCredentials, "Only the administrator can do this!")
	}
	return nil
}

func requireReviewer(ctx context.Context, tx Tx, id string) (Reviewer, error) {
	r, err := tx.Reviewer(ctx, id)
	if err != nil {
		return Reviewer{}, storeErr(err, KindCredentials, "You are not registered as a reviewer!")
	}
	return r, nil
}

// RegisterReviewer creates reviewer or updates display name
func (s *Service) RegisterReviewer(ctx context.Context, id, name string) error {
	if strings.TrimSpace(id) == "" {
		return Errorf(KindArgument, "Reviewer id is required!")
	}
	err := s.tx(ctx, func(tx Tx) error {
		return dataErr(tx.SaveReviewer(ctx, Reviewer{ID: id, Name: name}), "save reviewer")
	})
	return s.logged("register_reviewer", logrus.Fields{"reviewer": id}, err)
}

// ConfigurePreference sets reviewer's own capacity and willingness to
// interview for specialization. Authority is kept untouched.
func (s *Service) ConfigurePreference(ctx context.Context, reviewerID string, spec Specialization, queueMax int, willing bool) (RolePreference, error) {
	var pref RolePreference
	err := s.tx(ctx, func(tx Tx) error {
		r, err := requireReviewer(ctx, tx, reviewerID)
		if err != nil {
			return err
		}
		pref, _ = r.Preference(spec)
		pref.ReviewerID = reviewerID
		pref.Specialization = spec
		pref.QueueMax = queueMax
		pref.WillingToInterview = willing
		if err := pref.validate(); err != nil {
			return err
		}
		return dataErr(tx.UpsertRolePreference(ctx, pref), "upsert preference")
	})
	return pref, s.logged("configure_preference", logrus.Fields{"reviewer": reviewerID, "specialization": spec}, err)
}

// RemovePreference deletes reviewer's preference for specialization
func (s *Service) RemovePreference(ctx context.Context, reviewerID string, spec Specialization) error {
	err := s.tx(ctx, func(tx Tx) error {
		if _, err := requireReviewer(ctx, tx, reviewerID); err != nil {
			return err
		}
		err := tx.DeleteRolePreference(ctx, reviewerID, spec)
		return storeErr(err, KindArgument, "This role is not configured!")
	})
	return s.logged("remove_preference", logrus.Fields{"reviewer": reviewerID, "specialization": spec}, err)
}

// GrantAuthority sets the maximum authority of reviewer for specialization.
// New preferences start with default capacity and not willing to interview.
func (s *Service) GrantAuthority(ctx context.Context, caller, reviewerID string, spec Specialization, authority Authority) error {
	fields := logrus.Fields{"reviewer": reviewerID, "specialization": spec, "authority": authority}
	if err := s.requireAdmin(caller); err != nil {
		return s.logged("grant_authority", fields, err)
	}

	var changed bool
	err := s.tx(ctx, func(tx Tx) error {
		r, err := tx.Reviewer(ctx, reviewerID)
		if err != nil {
			return storeErr(err, KindContext, "This person is not registered as a reviewer!")
		}
		pref, ok := r.Preference(spec)
		if !ok {
			pref = RolePreference{
				ReviewerID:     reviewerID,
				Specialization: spec,
				QueueMax:       DefaultQueueMax,
			}
		}
		changed = pref.MaxAuthority != authority
		pref.MaxAuthority = authority
		return dataErr(tx.UpsertRolePreference(ctx, pref), "upsert preference")
	})
	if err != nil {
		return s.logged("grant_authority", fields, err)
	}

	s.log.WithFields(fields).Info("authority changed")
	if changed {
		msg := fmt.Sprintf("Your authority for %s is now %s.", spec.English(), authority)
		if err := s.transport.Notify(ctx, reviewerID, msg); err != nil {
			s.log.WithFields(fields).WithError(err).Warn("can not notify reviewer about authority change")
		}
	}
	return nil
}

// RevokeAuthority sets reviewer authority for specialization to NONE
func (s *Service) RevokeAuthority(ctx context.Context, caller, reviewerID string, spec Specialization) error {
	return s.GrantAuthority(ctx, caller, reviewerID, spec, AuthorityNone)
}

// PreferenceSummary is one row of the reviewer summary table
type PreferenceSummary struct {
	RolePreference
	OpenInterviews  int
	TotalInterviews int
}

// ReviewerSummary lists reviewer preferences with interview counts
func (s *Service) ReviewerSummary(ctx context.Context, reviewerID string) ([]PreferenceSummary, error) {
	var out []PreferenceSummary
	err := s.tx(ctx, func(tx Tx) error {
		r, err := requireReviewer(ctx, tx, reviewerID)
		if err != nil {
			return err
		}
		for _, p := range r.Preferences {
			ivs, err := tx.Interviews(ctx, InterviewFilter{ReviewerID: reviewerID, Specialization: p.Specialization})
			if err != nil {
				return dataErr(err, "list interviews")
			}
			row := PreferenceSummary{RolePreference: p, TotalInterviews: len(ivs)}
			for _, iv := range ivs {
				if !iv.Complete {
					row.OpenInterviews++
				}
			}
			out = append(out, row)
		}
		return nil
	})
	return out, s.logged("reviewer_summary", logrus.Fields{"reviewer": reviewerID}, err)
}

// Refer records a candidate proposal. Each candidate can be referred once.
func (s *Service) Refer(ctx context.Context, ref Referral) (Referral, error) {
	fields := logrus.Fields{"referrer": ref.ReferrerID, "candidate": ref.CandidateRef}
	if err := ref.validate(); err != nil {
		return Referral{}, s.logged("refer", fields, err)
	}
	ref.CreatedAt = s.now()
	err := s.tx(ctx, func(tx Tx) error {
		if !s.IsAdmin(ref.ReferrerID) {
			if _, err := requireReviewer(ctx, tx, ref.ReferrerID); err != nil {
				return err
			}
		}
		err := tx.CreateReferral(ctx, &ref)
		return storeErr(err, KindContext, "This candidate has already been referred!")
	})
	if err != nil {
		return Referral{}, s.logged("refer", fields, err)
	}
	s.log.WithFields(fields).Info("candidate referred")
	return ref, nil
}

// Referrals lists all referrals
func (s *Service) Referrals(ctx context.Context) ([]Referral, error) {
	var out []Referral
	err := s.tx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Referrals(ctx)
		return dataErr(err, "list referrals")
	})
	return out, s.logged("referrals", nil, err)
}

// RemoveReferral deletes referral, administrator only
func (s *Service) RemoveReferral(ctx context.Context, caller, candidateRef string) error {
	fields := logrus.Fields{"candidate": candidateRef}
	if err := s.requireAdmin(caller); err != nil {
		return s.logged("remove_referral", fields, err)
	}
	err := s.tx(ctx, func(tx Tx) error {
		return storeErr(tx.DeleteReferral(ctx, candidateRef), KindContext, "This candidate has not been referred!")
	})
	return s.logged("remove_referral", fields, err)
}

// StartInterview matches reviewers for a referred candidate and provisions
// the interview thread. When provisioning fails the interview is removed again.
func (s *Service) StartInterview(ctx context.Context, caller, candidateRef string, spec Specialization) (Interview, error) {
	fields := logrus.Fields{"candidate": candidateRef, "specialization": spec, "caller": caller}

	var (
		iv   Interview
		tier string
	)
	err := s.tx(ctx, func(tx Tx) error {
		if !s.IsAdmin(caller) {
			if _, err := requireReviewer(ctx, tx, caller); err != nil {
				return err
			}
		}

		ref, err := tx.Referral(ctx, candidateRef)
		if err != nil {
			return storeErr(err, KindContext, "This candidate has not been referred!")
		}
		if !ref.Has(spec) {
			return Errorf(KindArgument, "The referral does not include %s!", spec.English())
		}

		_, err = tx.InterviewByCandidate(ctx, candidateRef, spec)
		switch {
		case err == nil:
			return Errorf(KindContext, "An interview for this candidate and role already exists!")
		case !errors.Is(err, ErrNotFound):
			return dataErr(err, "find interview")
		}

		a, err := s.matcher.Assign(ctx, tx, spec, ref.ReferrerID)
		if err != nil {
			var nc *NoCapacityError
			if errors.As(err, &nc) {
				s.metrics.AssignmentFailed(nc.Role)
			}
			return err
		}
		tier = a.Tier

		iv = Interview{
			ID:                   uuid.New().String(),
			Specialization:       spec,
			CandidateRef:         candidateRef,
			CandidateName:        ref.CandidateName,
			ReferrerID:           ref.ReferrerID,
			HiringManagerID:      a.HiringManagerID,
			ApplicationManagerID: a.ApplicationManagerID,
			CreatedAt:            s.now(),
		}
		err = tx.CreateInterview(ctx, &iv)
		return storeErr(err, KindContext, "An interview for this candidate and role already exists!")
	})
	if err != nil {
		return Interview{}, s.logged("start_interview", fields, err)
	}

	fields["interview"] = iv.ID
	s.metrics.Assigned(tier)
	s.log.WithFields(fields).WithFields(logrus.Fields{
		"hm":   iv.HiringManagerID,
		"am":   iv.ApplicationManagerID,
		"tier": tier,
	}).Info("interview assigned")

	thread, err := s.provision(ctx, iv)
	if err != nil {
		err = Wrapf(err, KindTransport, "Could not set up the interview thread, the interview was cancelled!")
		if thread != "" {
			if nerr := s.transport.Notify(ctx, thread, cancelledMessage); nerr != nil {
				s.log.WithFields(fields).WithError(nerr).Warn("can not mark thread cancelled")
			}
		}
		if cerr := s.tx(ctx, func(tx Tx) error {
			return dataErr(tx.DeleteInterview(ctx, iv.ID), "delete interview")
		}); cerr != nil {
			s.log.WithFields(fields).WithError(cerr).Error("compensation failed, interview left without thread")
			err = multierr.Append(err, cerr)
		}
		return Interview{}, s.logged("start_interview", fields, err)
	}
	iv.ThreadRef = thread
	return iv, nil
}

const cancelledMessage = "This interview was cancelled because the thread could not be set up. Please ignore this thread."

// provision creates the interview thread and invites everybody. The thread
// reference is returned even on failure once the thread exists.
func (s *Service) provision(ctx context.Context, iv Interview) (string, error) {
	thread, err := s.transport.CreateThread(ctx, s.cfg.HiringChannel, iv.ThreadName())
	if err != nil {
		return "", errors.Wrap(err, "create thread")
	}

	err = s.tx(ctx, func(tx Tx) error {
		return dataErr(tx.SetThread(ctx, iv.ID, thread), "set thread")
	})
	if err != nil {
		return thread, err
	}

	members := []string{iv.CandidateRef, iv.HiringManagerID}
	if !iv.DualRole() {
		members = append(members, iv.ApplicationManagerID)
	}
	for _, m := range members {
		if err := s.transport.AddMember(ctx, thread, m); err != nil {
			return thread, errors.Wrapf(err, "add member %q", m)
		}
	}

	if err := s.transport.Notify(ctx, thread, welcomeMessage(iv)); err != nil {
		return thread, errors.Wrap(err, "post welcome message")
	}
	return thread, nil
}

func welcomeMessage(iv Interview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome to your %s interview!\n", iv.Specialization.English())
	if iv.DualRole() {
		fmt.Fprintf(&b, "Hiring and application manager: %s\n", iv.HiringManagerID)
	} else {
		fmt.Fprintf(&b, "Hiring manager: %s\n", iv.HiringManagerID)
		fmt.Fprintf(&b, "Application manager: %s\n", iv.ApplicationManagerID)
	}
	b.WriteString("Your managers will post tasks here shortly.")
	return b.String()
}

// InterviewByThread finds interview owning the collaboration thread
func (s *Service) InterviewByThread(ctx context.Context, threadRef string) (Interview, error) {
	var iv Interview
	err := s.tx(ctx, func(tx Tx) error {
		var err error
		iv, err = tx.InterviewByThread(ctx, threadRef)
		return storeErr(err, KindContext, "This is not an interview thread!")
	})
	return iv, s.logged("interview_by_thread", logrus.Fields{"thread": threadRef}, err)
}

// PhaseCounts counts interviews in each lifecycle phase
func (s *Service) PhaseCounts(ctx context.Context) (map[Phase]int, error) {
	counts := make(map[Phase]int, len(Phases))
	for _, p := range Phases {
		counts[p] = 0
	}
	err := s.tx(ctx, func(tx Tx) error {
		ivs, err := tx.Interviews(ctx, InterviewFilter{})
		if err != nil {
			return dataErr(err, "list interviews")
		}
		for _, iv := range ivs {
			p, _, err := phaseOf(ctx, tx, iv)
			if err != nil {
				return err
			}
			counts[p]++
		}
		return nil
	})
	return counts, s.logged("phase_counts", nil, err)
}

// ask sends prompt and waits for the answer
func (s *Service) ask(ctx context.Context, target string, p Prompt, timeout time.Duration) (string, error) {
	h, err := s.transport.SendPrompt(ctx, target, p)
	if err != nil {
		return "", Wrapf(err, KindTransport, "Could not send you a message!")
	}
	resp, err := s.transport.AwaitResponse(ctx, h, timeout)
	if err != nil {
		if IsTimeout(err) {
			s.metrics.PromptTimedOut()
			return "", err
		}
		return "", Wrapf(err, KindTransport, "Could not receive your answer!")
	}
	return resp.Value, nil
}

// interactive runs flow that asks target questions. A timed out flow sends
// exactly one notice.
func (s *Service) interactive(ctx context.Context, target string, flow func() error) error {
	err := flow()
	if IsTimeout(err) {
		if nerr := s.transport.Notify(ctx, target, UserMessage(err)); nerr != nil {
			s.log.WithField("target", target).WithError(nerr).Warn("can not send timeout notice")
		}
	}
	return err
}
