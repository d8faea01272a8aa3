package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// newPostgresStore connects to TEST_POSTGRES_DSN and migrates it. Tests skip when unset.
func newPostgresStore(t *testing.T) repository.Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 4, MinConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	require.NoError(t, persistence.RunMigrations(ctx, pg.PoolHandle(), zap.NewNop()))

	return repository.NewStore(pg.PoolHandle())
}

func createUser(t *testing.T, store repository.Store, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Name:         "Test " + string(role),
		Email:        fmt.Sprintf("%s-%d@example.com", role, time.Now().UnixNano()),
		PasswordHash: "hash",
		Role:         role,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func createTicket(t *testing.T, store repository.Store, owner int64, priority domain.TicketPriority) *domain.Ticket {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	ticket := &domain.Ticket{
		UserID:          owner,
		Title:           "Printer jam",
		Description:     "Paper stuck in tray 2",
		Status:          domain.TicketStatusOpen,
		Priority:        priority,
		CreatedAt:       now,
		UpdatedAt:       now,
		ResponseDueAt:   now.Add(4 * time.Hour),
		ResolutionDueAt: now.Add(24 * time.Hour),
	}
	require.NoError(t, store.Tickets().Create(context.Background(), ticket))
	return ticket
}

func TestUsers_CreateDuplicateUpdate(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	user := createUser(t, store, domain.RoleUser)
	assert.NotZero(t, user.ID)

	dup := *user
	dup.ID = 0
	assert.ErrorIs(t, store.Users().Create(ctx, &dup), repository.ErrDuplicateEmail)

	byEmail, err := store.Users().GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	role := domain.RoleAgent
	name := "Renamed"
	updated, err := store.Users().Update(ctx, user.ID, repository.UserChanges{Name: &name, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, domain.RoleAgent, updated.Role)
	assert.Equal(t, user.Email, updated.Email)

	_, err = store.Users().Update(ctx, -1, repository.UserChanges{Name: &name})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, store.Users().Delete(ctx, -1), repository.ErrNotFound)
}

func TestTickets_ListFilters(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	owner := createUser(t, store, domain.RoleUser)
	other := createUser(t, store, domain.RoleUser)
	low := createTicket(t, store, owner.ID, domain.TicketPriorityLow)
	high := createTicket(t, store, owner.ID, domain.TicketPriorityHigh)
	createTicket(t, store, other.ID, domain.TicketPriorityHigh)

	_, err := store.Tickets().UpdateStatus(ctx, high.ID, domain.TicketStatusPending, time.Now().UTC())
	require.NoError(t, err)

	ownerID := owner.ID
	all, err := store.Tickets().List(ctx, repository.TicketFilter{OwnerID: &ownerID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, high.ID, all[0].ID)
	assert.Equal(t, low.ID, all[1].ID)

	pending, err := store.Tickets().List(ctx, repository.TicketFilter{
		OwnerID:  &ownerID,
		Statuses: []domain.TicketStatus{domain.TicketStatusPending, domain.TicketStatusClosed},
	})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, high.ID, pending[0].ID)

	lowOnly, err := store.Tickets().List(ctx, repository.TicketFilter{
		OwnerID:    &ownerID,
		Priorities: []domain.TicketPriority{domain.TicketPriorityLow},
	})
	require.NoError(t, err)
	require.Len(t, lowOnly, 1)
	assert.Equal(t, low.ID, lowOnly[0].ID)

	_, err = store.Tickets().GetByID(ctx, -1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTickets_MarkFirstResponseOnce(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	owner := createUser(t, store, domain.RoleUser)
	ticket := createTicket(t, store, owner.ID, domain.TicketPriorityMedium)

	first := time.Now().UTC().Truncate(time.Microsecond)
	set, err := store.Tickets().MarkFirstResponse(ctx, ticket.ID, first)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = store.Tickets().MarkFirstResponse(ctx, ticket.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, set)

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FirstResponseAt)
	assert.True(t, first.Equal(*got.FirstResponseAt))
}

func TestWithinTx_RollsBackAndCascades(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	owner := createUser(t, store, domain.RoleUser)
	ticket := createTicket(t, store, owner.ID, domain.TicketPriorityMedium)

	errBoom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		comment := &domain.Comment{TicketID: ticket.ID, UserID: owner.ID, Body: "rolled back", CreatedAt: time.Now().UTC()}
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	comments, err := store.Comments().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	comment := &domain.Comment{TicketID: ticket.ID, UserID: owner.ID, Body: "kept", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		return tx.Attachments().Create(ctx, &domain.Attachment{
			CommentID: comment.ID,
			Filename:  "log.txt",
			Path:      "/uploads/log.txt",
			MimeType:  "text/plain",
			Size:      3,
		})
	}))

	attachments, err := store.Attachments().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, comment.ID, attachments[0].CommentID)

	byUser, err := store.Attachments().ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "/uploads/log.txt", byUser[0].Path)

	require.NoError(t, store.Users().Delete(ctx, owner.ID))

	_, err = store.Tickets().GetByID(ctx, ticket.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	attachments, err = store.Attachments().ListByComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Empty(t, attachments)
}
