// Package repotest provides an in-memory repository.Store for tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type memData struct {
	nextID      int64
	users       map[int64]domain.User
	tickets     map[int64]domain.Ticket
	comments    map[int64]domain.Comment
	attachments map[int64]domain.Attachment
}

func (d *memData) clone() *memData {
	c := &memData{
		nextID:      d.nextID,
		users:       make(map[int64]domain.User, len(d.users)),
		tickets:     make(map[int64]domain.Ticket, len(d.tickets)),
		comments:    make(map[int64]domain.Comment, len(d.comments)),
		attachments: make(map[int64]domain.Attachment, len(d.attachments)),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.tickets {
		c.tickets[k] = v
	}
	for k, v := range d.comments {
		c.comments[k] = v
	}
	for k, v := range d.attachments {
		c.attachments[k] = v
	}
	return c
}

// MemStore is an in-memory repository.Store with the same cascade rules as the schema.
type MemStore struct {
	mu   sync.Mutex
	data *memData

	// FailAttachmentCreate, when set, is returned by every attachment insert.
	FailAttachmentCreate error
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{data: &memData{
		users:       map[int64]domain.User{},
		tickets:     map[int64]domain.Ticket{},
		comments:    map[int64]domain.Comment{},
		attachments: map[int64]domain.Attachment{},
	}}
}

func (s *MemStore) Users() repository.UserRepository             { return memUsers{s} }
func (s *MemStore) Tickets() repository.TicketRepository         { return memTickets{s} }
func (s *MemStore) Comments() repository.CommentRepository       { return memComments{s} }
func (s *MemStore) Attachments() repository.AttachmentRepository { return memAttachments{s} }

func (s *MemStore) WithinTx(_ context.Context, fn func(repository.Store) error) error {
	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemStore) id() int64 {
	s.data.nextID++
	return s.data.nextID
}

// Ticket returns the stored ticket row, zero if absent.
func (s *MemStore) Ticket(id int64) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.tickets[id]
}

// Counts reports how many comments and attachments are stored.
func (s *MemStore) Counts() (comments, attachments int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.comments), len(s.data.attachments)
}

type memUsers struct{ s *MemStore }

func (r memUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = r.s.id()
	r.s.data.users[user.ID] = *user
	return nil
}

func (r memUsers) Update(_ context.Context, id int64, changes repository.UserChanges) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if changes.Email != nil {
		for _, other := range r.s.data.users {
			if other.ID != id && other.Email == *changes.Email {
				return nil, repository.ErrDuplicateEmail
			}
		}
		u.Email = *changes.Email
	}
	if changes.Name != nil {
		u.Name = *changes.Name
	}
	if changes.PasswordHash != nil {
		u.PasswordHash = *changes.PasswordHash
	}
	if changes.Role != nil {
		u.Role = *changes.Role
	}
	r.s.data.users[id] = u
	return &u, nil
}

func (r memUsers) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.s.data
	if _, ok := d.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(d.users, id)
	for tid, t := range d.tickets {
		if t.UserID == id {
			delete(d.tickets, tid)
		}
	}
	for cid, c := range d.comments {
		if _, ticketAlive := d.tickets[c.TicketID]; c.UserID == id || !ticketAlive {
			delete(d.comments, cid)
		}
	}
	for aid, a := range d.attachments {
		if _, ok := d.comments[a.CommentID]; !ok {
			delete(d.attachments, aid)
		}
	}
	return nil
}

func (r memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUsers) List(_ context.Context) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.User, 0, len(r.s.data.users))
	for _, u := range r.s.data.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type memTickets struct{ s *MemStore }

func (r memTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket.ID = r.s.id()
	r.s.data.tickets[ticket.ID] = *ticket
	return nil
}

func (r memTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r memTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Ticket{}
	for _, t := range r.s.data.tickets {
		if filter.OwnerID != nil && t.UserID != *filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r memTickets) UpdateStatus(_ context.Context, id int64, status domain.TicketStatus, at time.Time) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = at
	r.s.data.tickets[id] = t
	return &t, nil
}

func (r memTickets) MarkFirstResponse(_ context.Context, id int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.data.tickets[id]
	if !ok || t.FirstResponseAt != nil {
		return false, nil
	}
	t.FirstResponseAt = &at
	t.UpdatedAt = at
	r.s.data.tickets[id] = t
	return true, nil
}

type memComments struct{ s *MemStore }

func (r memComments) Create(_ context.Context, comment *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	comment.ID = r.s.id()
	stored := *comment
	stored.Attachments = nil
	r.s.data.comments[comment.ID] = stored
	return nil
}

func (r memComments) ListByTicket(_ context.Context, ticketID int64) ([]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Comment{}
	for _, c := range r.s.data.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memAttachments struct{ s *MemStore }

func (r memAttachments) Create(_ context.Context, attachment *domain.Attachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailAttachmentCreate != nil {
		return r.s.FailAttachmentCreate
	}
	attachment.ID = r.s.id()
	r.s.data.attachments[attachment.ID] = *attachment
	return nil
}

func (r memAttachments) ListByComment(_ context.Context, commentID int64) ([]domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Attachment{}
	for _, a := range r.s.data.attachments {
		if a.CommentID == commentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAttachments) ListByTicket(_ context.Context, ticketID int64) ([]domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Attachment{}
	for _, a := range r.s.data.attachments {
		if c, ok := r.s.data.comments[a.CommentID]; ok && c.TicketID == ticketID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAttachments) ListByUser(_ context.Context, userID int64) ([]domain.Attachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Attachment{}
	for _, a := range r.s.data.attachments {
		c, ok := r.s.data.comments[a.CommentID]
		if !ok {
			continue
		}
		if t, ok := r.s.data.tickets[c.TicketID]; c.UserID == userID || (ok && t.UserID == userID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsStatus(list []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, p := range list {
		if p == v {
			return true
		}
	}
	return false
}
