package hiring

import "strings"

// Role is reviewer function on a single interview
type Role int

const (
	RoleHiringManager Role = iota + 1
	RoleApplicationManager
)

func (r Role) String() string {
	switch r {
	case RoleHiringManager:
		return "HIRING_MANAGER"
	case RoleApplicationManager:
		return "APPLICATION_MANAGER"
	}
	return "UNKNOWN"
}

// Short is label used in tables and reports
func (r Role) Short() string {
	switch r {
	case RoleHiringManager:
		return "Hiring Manager"
	case RoleApplicationManager:
		return "Application Manager"
	}
	return "Unknown"
}

// ParseRole accepts canonical names and the HM/AM abbreviations
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIRING_MANAGER", "HM":
		return RoleHiringManager, nil
	case "APPLICATION_MANAGER", "AM":
		return RoleApplicationManager, nil
	}
	return 0, Errorf(KindArgument, "unknown role %q", s)
}

// RoleSet is subset of {HM, AM}
type RoleSet uint8

func roleBit(r Role) RoleSet { return 1 << uint(r) }

// With returns set with r added
func (s RoleSet) With(r Role) RoleSet { return s | roleBit(r) }

// Has reports whether r is in the set
func (s RoleSet) Has(r Role) bool { return s&roleBit(r) != 0 }

// Empty is true when the caller holds no role
func (s RoleSet) Empty() bool { return s == 0 }

// Both is true for the dual-role reviewer
func (s RoleSet) Both() bool {
	return s.Has(RoleHiringManager) && s.Has(RoleApplicationManager)
}

// Roles lists roles in HM, AM order
func (s RoleSet) Roles() []Role {
	var out []Role
	for _, r := range []Role{RoleHiringManager, RoleApplicationManager} {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	roles := s.Roles()
	if len(roles) == 0 {
		return "none"
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	return strings.Join(names, "+")
}

// RolesOf tells which authority reviewerID holds on the interview.
func RolesOf(reviewerID string, iv Interview) RoleSet {
	var set RoleSet
	if reviewerID == "" {
		return set
	}
	if reviewerID == iv.HiringManagerID {
		set = set.With(RoleHiringManager)
	}
	if reviewerID == iv.ApplicationManagerID {
		set = set.With(RoleApplicationManager)
	}
	return set
}
