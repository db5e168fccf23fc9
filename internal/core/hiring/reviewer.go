package hiring

import (
	"strings"
)

// Specialization is the skill category an interview targets
type Specialization string

const (
	SpecBuilder    Specialization = "BUILDER"
	SpecProgrammer Specialization = "PROGRAMMER"
	SpecAnimator   Specialization = "ANIMATOR"
	SpecUIArtist   Specialization = "UI_ARTIST"
	SpecIconArtist Specialization = "ICON_ARTIST"
	SpecVFXArtist  Specialization = "VFX_ARTIST"
)

// Specializations lists every known specialization in display order.
var Specializations = []Specialization{
	SpecBuilder,
	SpecProgrammer,
	SpecAnimator,
	SpecUIArtist,
	SpecIconArtist,
	SpecVFXArtist,
}

var acronyms = map[string]struct{}{
	"VFX": {},
	"UI":  {},
}

// ParseSpecialization accepts either the canonical name or the english form
// ("ui artist", "Vfx Artist").
func ParseSpecialization(s string) (Specialization, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, " ", "_")
	for _, spec := range Specializations {
		if string(spec) == norm {
			return spec, nil
		}
	}
	return "", Errorf(KindArgument, "unknown specialization %q", s)
}

// English returns human readable name, e.g. "VFX Artist"
func (s Specialization) English() string {
	words := strings.Split(strings.ToLower(string(s)), "_")
	for i, w := range words {
		if _, ok := acronyms[strings.ToUpper(w)]; ok {
			words[i] = strings.ToUpper(w)
			continue
		}
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Authority is the highest reviewer role somebody may hold for a specialization
type Authority int

const (
	AuthorityNone Authority = iota
	AuthorityApplicationManager
	AuthorityHiringManager
)

func (a Authority) String() string {
	switch a {
	case AuthorityHiringManager:
		return "HIRING_MANAGER"
	case AuthorityApplicationManager:
		return "APPLICATION_MANAGER"
	default:
		return "NONE"
	}
}

// ParseAuthority is the inverse of Authority.String.
func ParseAuthority(s string) (Authority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIRING_MANAGER", "HM":
		return AuthorityHiringManager, nil
	case "APPLICATION_MANAGER", "AM":
		return AuthorityApplicationManager, nil
	case "NONE", "":
		return AuthorityNone, nil
	}
	return AuthorityNone, Errorf(KindArgument, "unknown authority %q", s)
}

const (
	MinQueueMax = 1
	MaxQueueMax = 5

	// DefaultQueueMax is used for preferences created by an administrator grant
	DefaultQueueMax = 5
)

// RolePreference is reviewer capacity and willingness for one specialization
type RolePreference struct {
	ReviewerID         string
	Specialization     Specialization
	QueueMax           int
	WillingToInterview bool
	MaxAuthority       Authority
}

func (p RolePreference) validate() error {
	if p.QueueMax < MinQueueMax || p.QueueMax > MaxQueueMax {
		return Errorf(KindArgument, "queue max must be between %d and %d", MinQueueMax, MaxQueueMax)
	}
	return nil
}

// Reviewer is person who can act as hiring manager and/or application manager
type Reviewer struct {
	ID          string
	Name        string
	Preferences []RolePreference
}

// Preference returns reviewer preference for the specialization if configured
func (r Reviewer) Preference(spec Specialization) (RolePreference, bool) {
	for _, p := range r.Preferences {
		if p.Specialization == spec {
			return p, true
		}
	}
	return RolePreference{}, false
}

// Candidate is a role preference together with the reviewer's current workload
// for the same specialization.
type Candidate struct {
	Preference RolePreference
	Workload   int
}

func (c Candidate) hasCapacity() bool {
	return c.Workload < c.Preference.QueueMax
}

// CandidateQuery filters role preferences for the matching engine.
type CandidateQuery struct {
	Specialization     Specialization
	MaxAuthority       Authority
	WillingToInterview bool
	ExcludeReviewerID  string
	CountClosed        bool
}
