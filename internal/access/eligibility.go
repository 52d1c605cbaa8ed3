// Package access decides which granted roles a member may activate at a given
// moment. Everything here is a pure function of its inputs.
package access

import (
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// Policy selects which roles are gated by schedule windows.
type Policy struct {
	GatedRoles map[domain.Role]bool
}

// DefaultPolicy gates the employee role only.
func DefaultPolicy() Policy {
	return Policy{GatedRoles: map[domain.Role]bool{domain.RoleEmployee: true}}
}

// ParsePolicy builds a policy from a comma separated role list
// ("employee,driver"). An empty list yields DefaultPolicy.
func ParsePolicy(csv string) (Policy, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return DefaultPolicy(), nil
	}
	p := Policy{GatedRoles: map[domain.Role]bool{}}
	for _, raw := range strings.Split(csv, ",") {
		r, err := domain.ParseRole(raw)
		if err != nil {
			return Policy{}, err
		}
		if !r.Schedulable() {
			return Policy{}, fmt.Errorf("role %s cannot be schedule gated", r)
		}
		p.GatedRoles[r] = true
	}
	return p, nil
}

// Gated reports whether activation of role depends on schedule windows.
// The administrator role is never gated.
func (p Policy) Gated(role domain.Role) bool {
	switch role {
	case domain.RoleAdministrator:
		return false
	case domain.RoleEmployee, domain.RoleDriver, domain.RoleOfficial:
		return p.GatedRoles[role]
	case domain.RolePresident, domain.RoleManager, domain.RolePartner, domain.RoleClient:
		return false
	}
	return false
}

// GatedAmong returns the gated roles present in grants.
func (p Policy) GatedAmong(grants []domain.Role) []domain.Role {
	var out []domain.Role
	for _, r := range grants {
		if p.Gated(r) {
			out = append(out, r)
		}
	}
	return out
}

// Evaluate returns one verdict per granted role, in grant order. windows may
// hold windows for any role and any state; only active windows of the role
// being evaluated are considered.
func Evaluate(p Policy, grants []domain.Role, windows []domain.ScheduleWindow, now time.Time) []domain.Eligibility {
	out := make([]domain.Eligibility, 0, len(grants))
	for _, role := range grants {
		out = append(out, EvaluateRole(p, role, windows, now))
	}
	return out
}

// EvaluateRole computes the verdict for a single role.
func EvaluateRole(p Policy, role domain.Role, windows []domain.ScheduleWindow, now time.Time) domain.Eligibility {
	e := domain.Eligibility{Role: role, Label: role.Label()}

	if !p.Gated(role) {
		e.Eligible = true
		e.Selectable = true
		return e
	}

	own := ActiveWindows(windows, role)
	for _, w := range own {
		if w.Contains(now) {
			e.Eligible = true
			e.Selectable = true
			return e
		}
	}

	if next, ok := NextWindow(own); ok {
		e.NextAvailable = &next
	}
	e.Message = DenialMessage(role, e.NextAvailable)
	return e
}

// ActiveWindows filters windows down to the active ones for role.
func ActiveWindows(windows []domain.ScheduleWindow, role domain.Role) []domain.ScheduleWindow {
	var out []domain.ScheduleWindow
	for _, w := range windows {
		if w.IsActive && w.Role == role {
			out = append(out, w)
		}
	}
	return out
}

// NextWindow returns the window with the smallest (day_of_week, start_time).
// It does not look at the current time: it mirrors the
// "order by day_of_week, start_time limit 1" lookup shown to the user.
func NextWindow(windows []domain.ScheduleWindow) (domain.ScheduleWindow, bool) {
	if len(windows) == 0 {
		return domain.ScheduleWindow{}, false
	}
	best := windows[0]
	for _, w := range windows[1:] {
		if w.Less(best) {
			best = w
		}
	}
	return best, true
}

// DenialMessage is the user-facing text for a schedule denial.
func DenialMessage(role domain.Role, next *domain.ScheduleWindow) string {
	return (&domain.ErrScheduleDenied{Role: role, NextAvailable: next}).Error()
}

// ApplyAdministratorOverride marks the administrator choice selectable no
// matter what the evaluation said.
func ApplyAdministratorOverride(choices []domain.Eligibility) []domain.Eligibility {
	out := make([]domain.Eligibility, len(choices))
	copy(out, choices)
	for i := range out {
		if out[i].Role == domain.RoleAdministrator {
			out[i].Selectable = true
		}
	}
	return out
}
