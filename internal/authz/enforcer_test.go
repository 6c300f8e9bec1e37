package authz

import (
	"slices"
	"testing"
)

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	e, err := NewEnforcer()
	if err != nil {
		t.Fatalf("NewEnforcer failed: %v", err)
	}
	return e
}

func TestCan_RoleMatrix(t *testing.T) {
	t.Parallel()
	e := newTestEnforcer(t)

	tests := []struct {
		role     string
		resource string
		action   string
		want     bool
	}{
		{"attendee", ResourceTickets, ActionPurchase, true},
		{"attendee", ResourceProfile, ActionWrite, true},
		{"attendee", ResourceEvents, ActionWrite, false},
		{"attendee", ResourceAdmin, ActionManage, false},
		{"organizer", ResourceEvents, ActionWrite, true},
		{"organizer", ResourceTickets, ActionPurchase, true},
		{"organizer", ResourceAdmin, ActionManage, false},
		{"admin", ResourceAdmin, ActionManage, true},
		{"admin", ResourceAdmin, ActionRead, true},
		{"admin", ResourceEvents, ActionWrite, true},
		{"admin", ResourceProfile, ActionRead, true},
		{"", ResourceProfile, ActionRead, false},
		{"guest", ResourceProfile, ActionRead, false},
	}

	for _, tt := range tests {
		if got := e.Can(tt.role, tt.resource, tt.action); got != tt.want {
			t.Errorf("Can(%q, %q, %q) = %v, want %v", tt.role, tt.resource, tt.action, got, tt.want)
		}
	}
}

func TestRolesFor_IncludesInheritedRoles(t *testing.T) {
	t.Parallel()
	e := newTestEnforcer(t)

	roles := e.RolesFor("admin")
	if !slices.Contains(roles, "organizer") || !slices.Contains(roles, "attendee") {
		t.Errorf("expected admin to inherit organizer and attendee, got %v", roles)
	}
	if len(e.RolesFor("attendee")) != 0 {
		t.Errorf("expected attendee to inherit nothing, got %v", e.RolesFor("attendee"))
	}
}

func TestLoadPolicy_RejectsMalformedLine(t *testing.T) {
	t.Parallel()
	e := newTestEnforcer(t)

	if err := loadPolicy(e.enforcer, "p, admin, admin"); err == nil {
		t.Error("expected error for short policy line")
	}
}
