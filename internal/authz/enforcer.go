// Package authz maps user roles to permitted actions using Casbin RBAC.
//
// The model and policy are embedded. Roles inherit from each other
// (admin > organizer > attendee), so a permission granted to attendees is
// also held by organizers and admins.
package authz

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Resources
const (
	ResourceProfile = "profile"
	ResourceTickets = "tickets"
	ResourceEvents  = "events"
	ResourceAdmin   = "admin"
)

// Actions
const (
	ActionRead     = "read"
	ActionWrite    = "write"
	ActionPurchase = "purchase"
	ActionCancel   = "cancel"
	ActionManage   = "manage"
)

// Enforcer answers role permission questions
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an enforcer from the embedded model and policy
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, err
	}

	return &Enforcer{enforcer: enforcer}, nil
}

// loadPolicy adds the p and g lines of a policy CSV
func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Can reports whether role may perform action on resource. Enforcement
// errors deny.
func (e *Enforcer) Can(role, resource, action string) bool {
	if role == "" {
		return false
	}
	allowed, err := e.enforcer.Enforce(role, resource, action)
	if err != nil {
		slog.Error("authorization check failed",
			slog.String("role", role),
			slog.String("resource", resource),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return false
	}
	return allowed
}

// RolesFor returns the roles role inherits from, including indirect ones
func (e *Enforcer) RolesFor(role string) []string {
	roles, err := e.enforcer.GetImplicitRolesForUser(role)
	if err != nil {
		return nil
	}
	return roles
}
