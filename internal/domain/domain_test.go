package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicketStatus_Valid(t *testing.T) {
	for _, s := range []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusPending, TicketStatusResolved, TicketStatusClosed} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, TicketStatus("archived").Valid())
	assert.False(t, TicketStatus("OPEN").Valid())
	assert.False(t, TicketStatus("").Valid())
}

func TestTicketPriority_Valid(t *testing.T) {
	assert.True(t, TicketPriorityHigh.Valid())
	assert.False(t, TicketPriority("urgent").Valid())
}

func TestIdentity_Access(t *testing.T) {
	owner := Identity{ID: 7, Role: RoleUser}
	other := Identity{ID: 8, Role: RoleUser}
	agent := Identity{ID: 9, Role: RoleAgent}
	admin := Identity{ID: 10, Role: RoleAdmin}

	assert.True(t, owner.CanAccess(7))
	assert.False(t, other.CanAccess(7))
	assert.True(t, agent.CanAccess(7))
	assert.True(t, admin.CanAccess(7))

	assert.False(t, owner.IsStaff())
	assert.True(t, agent.IsStaff())
	assert.False(t, agent.IsAdmin())
	assert.True(t, admin.IsAdmin())
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAgent.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("owner").Valid())
}
