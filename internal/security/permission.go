// Package security implements the four-gate chain applied to every tool
// invocation: permission check, input content filter, sandboxing (for
// code-execution tools), and output content filter.
package security

import (
	"fmt"
	"sync"
	"time"
)

// User identifies the caller a permission check is evaluated against.
type User struct {
	ID    string
	Roles []string
}

func (u User) hasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Permission is the registry entry consulted on every invocation.
type Permission struct {
	ToolName         string
	SecurityLevel    string
	AllowedRoles     []string
	RequiresApproval bool
	ElevatedRoles    []string // roles that bypass the approval requirement
	MaxCallsPerHour  int
	MaxCallsPerDay   int
	CostPerCall      float64
}

// Approval grants a user time- and use-bounded permission to call a tool
// that RequiresApproval.
type Approval struct {
	User          string
	Tool          string
	ExpiresAt     time.Time
	RemainingUses int
}

func (a *Approval) valid(now time.Time) bool {
	if a == nil {
		return false
	}
	if now.After(a.ExpiresAt) {
		return false
	}
	return a.RemainingUses > 0 || a.RemainingUses < 0 // negative = unlimited
}

// Quota tracks per-user-per-tool usage, rolled over lazily.
type Quota struct {
	CallsThisHour int
	CallsToday    int
	HourResetAt   time.Time
	DayResetAt    time.Time
}

func (q *Quota) rollover(now time.Time) {
	if q.HourResetAt.IsZero() || now.After(q.HourResetAt) {
		q.CallsThisHour = 0
		q.HourResetAt = now.Add(time.Hour)
	}
	if q.DayResetAt.IsZero() || now.After(q.DayResetAt) {
		q.CallsToday = 0
		q.DayResetAt = now.Add(24 * time.Hour)
	}
}

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool
	Reason  string
	Warning string
}

// DenialLog is one recorded denial, for audit purposes.
type DenialLog struct {
	User   string
	Tool   string
	Reason string
	At     time.Time
}

// PermissionChecker evaluates Decision for (user, tool) pairs against the
// configured Permission table, approvals, and quotas. Safe for concurrent
// use.
type PermissionChecker struct {
	mu          sync.Mutex
	permissions map[string]Permission
	approvals   map[string]*Approval // key: user|tool
	quotas      map[string]*Quota    // key: user|tool
	denials     []DenialLog
	now         func() time.Time
}

// NewPermissionChecker builds a checker from defaults plus admin overrides,
// both represented as Permission slices (overrides win on name collision).
func NewPermissionChecker(defaults, overrides []Permission) *PermissionChecker {
	perms := make(map[string]Permission, len(defaults)+len(overrides))
	for _, p := range defaults {
		perms[p.ToolName] = p
	}
	for _, p := range overrides {
		perms[p.ToolName] = p
	}
	return &PermissionChecker{
		permissions: perms,
		approvals:   make(map[string]*Approval),
		quotas:      make(map[string]*Quota),
		now:         time.Now,
	}
}

func key(user, tool string) string { return user + "|" + tool }

// GrantApproval installs an approval for (user, tool).
func (c *PermissionChecker) GrantApproval(a Approval) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approvals[key(a.User, a.Tool)] = &a
}

// CanUse evaluates the permission + quota gate for (user, toolName).
func (c *PermissionChecker) CanUse(user User, toolName string) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	perm, ok := c.permissions[toolName]
	if !ok {
		// No explicit policy registered: default-allow at SAFE posture,
		// matching an unconfigured tool having no extra restriction.
		return Decision{Allowed: true}
	}

	if !roleAllowed(user, perm.AllowedRoles) {
		return c.deny(user.ID, toolName, "user role not permitted for this tool")
	}

	if perm.RequiresApproval && !isElevated(user, perm.ElevatedRoles) {
		appr := c.approvals[key(user.ID, toolName)]
		now := c.now()
		if !appr.valid(now) {
			return c.deny(user.ID, toolName, "tool requires approval and none is active")
		}
		if appr.RemainingUses > 0 {
			appr.RemainingUses--
		}
	}

	q, ok := c.quotas[key(user.ID, toolName)]
	if !ok {
		q = &Quota{}
		c.quotas[key(user.ID, toolName)] = q
	}
	q.rollover(c.now())

	if perm.MaxCallsPerHour > 0 && q.CallsThisHour >= perm.MaxCallsPerHour {
		return c.deny(user.ID, toolName, "hourly quota exceeded")
	}
	if perm.MaxCallsPerDay > 0 && q.CallsToday >= perm.MaxCallsPerDay {
		return c.deny(user.ID, toolName, "daily quota exceeded")
	}

	q.CallsThisHour++
	q.CallsToday++

	decision := Decision{Allowed: true}
	if perm.MaxCallsPerHour > 0 && q.CallsThisHour >= int(0.9*float64(perm.MaxCallsPerHour)) {
		decision.Warning = fmt.Sprintf("approaching hourly quota for %s", toolName)
	}
	return decision
}

func (c *PermissionChecker) deny(user, tool, reason string) Decision {
	c.denials = append(c.denials, DenialLog{User: user, Tool: tool, Reason: reason, At: c.now()})
	return Decision{Allowed: false, Reason: reason}
}

// Denials returns a copy of the recorded denial log, for audit/inspection.
func (c *PermissionChecker) Denials() []DenialLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DenialLog, len(c.denials))
	copy(out, c.denials)
	return out
}

func roleAllowed(user User, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, role := range allowed {
		if user.hasRole(role) {
			return true
		}
	}
	return false
}

func isElevated(user User, elevatedRoles []string) bool {
	for _, role := range elevatedRoles {
		if user.hasRole(role) {
			return true
		}
	}
	return false
}
