package hiring

import (
	"context"
	"fmt"
	"sort"
)

// assignment tiers, used as metric labels
const (
	TierDual  = "dual"
	TierSplit = "split"
)

// NoCapacityError means nobody with free capacity can take the role
type NoCapacityError struct {
	Role           Role
	Specialization Specialization
}

func (e *NoCapacityError) Error() string {
	return fmt.Sprintf("no %s with free capacity for %s", e.Role.Short(), e.Specialization)
}

func noCapacity(role Role, spec Specialization) error {
	return &Error{
		Kind: KindContext,
		Msg:  fmt.Sprintf("There is no %s available for %s right now, try again later!", role.Short(), spec.English()),
		Err:  &NoCapacityError{Role: role, Specialization: spec},
	}
}

// Assignment is reviewer pair selected for a new interview
type Assignment struct {
	HiringManagerID      string
	ApplicationManagerID string
	Tier                 string
}

// Matcher decides who should run an interview. It must be called inside the
// transaction that inserts the interview, so the workloads it reads stay true.
type Matcher struct {
	// CountClosed makes closed interviews keep occupying a capacity slot
	CountClosed bool
}

// Assign picks hiring and application managers for specialization. Nobody
// equal to exclude is ever picked.
func (m Matcher) Assign(ctx context.Context, tx Tx, spec Specialization, exclude string) (Assignment, error) {
	query := CandidateQuery{
		Specialization:     spec,
		MaxAuthority:       AuthorityHiringManager,
		WillingToInterview: true,
		ExcludeReviewerID:  exclude,
		CountClosed:        m.CountClosed,
	}

	// tier A, hiring manager willing to do everything alone
	dual, err := m.first(ctx, tx, query)
	if err != nil {
		return Assignment{}, err
	}
	if dual != "" {
		return Assignment{HiringManagerID: dual, ApplicationManagerID: dual, Tier: TierDual}, nil
	}

	// tier B, hiring manager who wants somebody else to interview
	query.WillingToInterview = false
	hm, err := m.first(ctx, tx, query)
	if err != nil {
		return Assignment{}, err
	}
	if hm == "" {
		return Assignment{}, noCapacity(RoleHiringManager, spec)
	}

	query.MaxAuthority = AuthorityApplicationManager
	query.WillingToInterview = true
	am, err := m.first(ctx, tx, query)
	if err != nil {
		return Assignment{}, err
	}
	if am == "" {
		return Assignment{}, noCapacity(RoleApplicationManager, spec)
	}

	return Assignment{HiringManagerID: hm, ApplicationManagerID: am, Tier: TierSplit}, nil
}

func (m Matcher) first(ctx context.Context, tx Tx, q CandidateQuery) (string, error) {
	cands, err := tx.Candidates(ctx, q)
	if err != nil {
		return "", dataErr(err, "list candidates")
	}
	ranked := rankCandidates(cands, q.ExcludeReviewerID)
	if len(ranked) == 0 {
		return "", nil
	}
	return ranked[0].Preference.ReviewerID, nil
}

// rankCandidates drops reviewers without free capacity and orders the rest
// by workload, then reviewer ID.
func rankCandidates(cands []Candidate, exclude string) []Candidate {
	var suitable []Candidate
	for _, c := range cands {
		if c.Preference.ReviewerID == exclude || !c.hasCapacity() {
			continue
		}
		suitable = append(suitable, c)
	}

	sort.SliceStable(suitable, func(i, j int) bool {
		if suitable[i].Workload != suitable[j].Workload {
			return suitable[i].Workload < suitable[j].Workload
		}
		return suitable[i].Preference.ReviewerID < suitable[j].Preference.ReviewerID
	})

	return suitable
}
