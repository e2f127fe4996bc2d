package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionChecker_DefaultAllowsUnregisteredTool(t *testing.T) {
	checker := NewPermissionChecker(nil, nil)
	decision := checker.CanUse(User{ID: "u1"}, "anything")
	assert.True(t, decision.Allowed)
}

func TestPermissionChecker_DeniesRoleMismatch(t *testing.T) {
	checker := NewPermissionChecker([]Permission{
		{ToolName: "delete_user", AllowedRoles: []string{"admin"}},
	}, nil)

	decision := checker.CanUse(User{ID: "u1", Roles: []string{"viewer"}}, "delete_user")
	assert.False(t, decision.Allowed)
	require.Len(t, checker.Denials(), 1)
	assert.Equal(t, "delete_user", checker.Denials()[0].Tool)
}

func TestPermissionChecker_RequiresApprovalUntilGranted(t *testing.T) {
	checker := NewPermissionChecker([]Permission{
		{ToolName: "wire_funds", RequiresApproval: true},
	}, nil)
	user := User{ID: "u1"}

	decision := checker.CanUse(user, "wire_funds")
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "approval")

	checker.GrantApproval(Approval{User: "u1", Tool: "wire_funds", ExpiresAt: time.Now().Add(time.Hour), RemainingUses: 1})
	decision = checker.CanUse(user, "wire_funds")
	assert.True(t, decision.Allowed)

	// RemainingUses was consumed by the call above.
	decision = checker.CanUse(user, "wire_funds")
	assert.False(t, decision.Allowed)
}

func TestPermissionChecker_ElevatedRoleBypassesApproval(t *testing.T) {
	checker := NewPermissionChecker([]Permission{
		{ToolName: "wire_funds", RequiresApproval: true, ElevatedRoles: []string{"treasurer"}},
	}, nil)
	decision := checker.CanUse(User{ID: "u1", Roles: []string{"treasurer"}}, "wire_funds")
	assert.True(t, decision.Allowed)
}

func TestPermissionChecker_HourlyQuotaExceeded(t *testing.T) {
	checker := NewPermissionChecker([]Permission{
		{ToolName: "send_email", MaxCallsPerHour: 2},
	}, nil)
	user := User{ID: "u1"}

	require.True(t, checker.CanUse(user, "send_email").Allowed)
	require.True(t, checker.CanUse(user, "send_email").Allowed)
	decision := checker.CanUse(user, "send_email")
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "hourly quota")
}

func TestPermissionChecker_WarnsApproachingQuota(t *testing.T) {
	checker := NewPermissionChecker([]Permission{
		{ToolName: "send_email", MaxCallsPerHour: 10},
	}, nil)
	user := User{ID: "u1"}

	var last Decision
	for i := 0; i < 9; i++ {
		last = checker.CanUse(user, "send_email")
	}
	assert.True(t, last.Allowed)
	assert.NotEmpty(t, last.Warning)
}

func TestPermissionChecker_OverridesWinOverDefaults(t *testing.T) {
	defaults := []Permission{{ToolName: "read_file", AllowedRoles: []string{"admin"}}}
	overrides := []Permission{{ToolName: "read_file", AllowedRoles: []string{"viewer"}}}
	checker := NewPermissionChecker(defaults, overrides)

	decision := checker.CanUse(User{ID: "u1", Roles: []string{"viewer"}}, "read_file")
	assert.True(t, decision.Allowed)
}

func TestApproval_ValidHandlesNilAndExpiry(t *testing.T) {
	var nilApproval *Approval
	assert.False(t, nilApproval.valid(time.Now()))

	expired := &Approval{ExpiresAt: time.Now().Add(-time.Minute), RemainingUses: 1}
	assert.False(t, expired.valid(time.Now()))

	unlimited := &Approval{ExpiresAt: time.Now().Add(time.Hour), RemainingUses: -1}
	assert.True(t, unlimited.valid(time.Now()))
}
