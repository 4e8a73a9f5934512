package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/ticketsync-server/internal/store"
	"github.com/vovakirdan/ticketsync-server/internal/ticket"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestCreateAndGetTicket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateTicket(ctx, store.NewTicket{StudentID: "s1", ComplaintType: "housing", Description: "heater broken"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, ticket.StatusOpen, created.Status)
	assert.Empty(t, created.Comments)

	got, err := s.GetTicket(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "heater broken", got.Description)
	assert.Equal(t, "housing", got.ComplaintType)

	_, err = s.GetTicket(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateTicketValidates(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateTicket(context.Background(), store.NewTicket{StudentID: "s1"})
	assert.Error(t, err)
}

func TestUpdateTicketAppendsCommentWithServerTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	created, err := s.CreateTicket(ctx, store.NewTicket{StudentID: "s1", ComplaintType: "it", Description: "wifi"})
	require.NoError(t, err)

	s.now = func() time.Time { return fixed }
	updated, err := s.UpdateTicket(ctx, created.ID, ticket.Update{
		Comment: &ticket.NewComment{AuthorID: "u1", Content: "first"},
	})
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)
	assert.Equal(t, "first", updated.Comments[0].Content)
	assert.True(t, fixed.Equal(updated.Comments[0].CreatedAt), "createdAt comes from the store clock")

	s.now = func() time.Time { return fixed.Add(time.Minute) }
	updated, err = s.UpdateTicket(ctx, created.ID, ticket.Update{
		Comment: &ticket.NewComment{AuthorID: "admin", Content: "second", IsAdminComment: true},
	})
	require.NoError(t, err)
	require.Len(t, updated.Comments, 2)
	assert.Equal(t, "second", updated.Comments[1].Content)
	assert.True(t, updated.Comments[1].IsAdminComment)

	last, ok := updated.LastComment()
	require.True(t, ok)
	assert.Equal(t, "admin", last.AuthorID)
}

func TestUpdateTicketAllowListedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateTicket(ctx, store.NewTicket{StudentID: "s1", ComplaintType: "it", Description: "wifi"})
	require.NoError(t, err)

	status := ticket.StatusInProgress
	updated, err := s.UpdateTicket(ctx, created.ID, ticket.Update{
		Description:   strPtr("wifi down in dorm B"),
		ComplaintType: strPtr("network"),
		Status:        &status,
	})
	require.NoError(t, err)
	assert.Equal(t, ticket.StatusInProgress, updated.Status)
	assert.Equal(t, "wifi down in dorm B", updated.Description)
	assert.Equal(t, "network", updated.ComplaintType)
	assert.Equal(t, "s1", updated.StudentID, "student id is not updatable")

	bad := ticket.Status("closed")
	_, err = s.UpdateTicket(ctx, created.ID, ticket.Update{Status: &bad})
	assert.ErrorIs(t, err, ticket.ErrInvalidStatus)

	_, err = s.UpdateTicket(ctx, created.ID, ticket.Update{})
	assert.ErrorIs(t, err, ticket.ErrEmptyUpdate)

	_, err = s.UpdateTicket(ctx, "missing", ticket.Update{Status: &status})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListAndDeleteTickets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, student := range []string{"s1", "s2", "s1"} {
		at := base.Add(time.Duration(i) * time.Hour)
		s.now = func() time.Time { return at }
		_, err := s.CreateTicket(ctx, store.NewTicket{StudentID: student, ComplaintType: "general", Description: "d"})
		require.NoError(t, err)
	}

	all, err := s.ListTickets(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := s.ListTickets(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.True(t, mine[0].CreatedAt.After(mine[1].CreatedAt), "newest first")

	require.NoError(t, s.DeleteTicket(ctx, mine[0].ID))
	assert.ErrorIs(t, s.DeleteTicket(ctx, mine[0].ID), store.ErrNotFound)

	_, err = s.GetTicket(ctx, mine[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
