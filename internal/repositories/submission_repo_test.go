package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockify/contact-api/internal/database"
	"github.com/stockify/contact-api/internal/models"
	"github.com/stockify/contact-api/internal/repositories"
)

func newTestRepo(t *testing.T) *repositories.SubmissionRepository {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repositories.NewSubmissionRepository(db)
}

func testContact() models.ContactData {
	return models.ContactData{
		Name:    "Jane Doe",
		Email:   "jane.doe@example.com",
		Phone:   "+1555123456",
		Subject: "Pricing question",
		Message: "I would like to know more about your pricing tiers.",
	}
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sub, err := repo.Create(ctx, testContact())
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, models.StatusPendingVerification, sub.Status)

	got, err := repo.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, "jane.doe@example.com", got.Contact.Email)
	assert.False(t, got.Degraded)
}

func TestGetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateReplacesOutstandingSubmission(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Create(ctx, testContact())
	require.NoError(t, err)
	second, err := repo.Create(ctx, testContact())
	require.NoError(t, err)

	_, err = repo.Get(ctx, first.ID)
	assert.ErrorIs(t, err, models.ErrNotFound, "a new request replaces the outstanding submission")

	outstanding, err := repo.GetOutstandingByEmail(ctx, "jane.doe@example.com")
	require.NoError(t, err)
	assert.Equal(t, second.ID, outstanding.ID)
}

func TestCreateDoesNotReplaceTerminalSubmissions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	done, err := repo.Create(ctx, testContact())
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, done.ID, models.StatusVerified))
	require.NoError(t, repo.Transition(ctx, done.ID, models.StatusDispatched))

	_, err = repo.Create(ctx, testContact())
	require.NoError(t, err)

	// The dispatched submission survives
	got, err := repo.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDispatched, got.Status)
}

func TestTransitionForwardOnly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sub, err := repo.Create(ctx, testContact())
	require.NoError(t, err)

	// pending -> dispatched skips verification
	err = repo.Transition(ctx, sub.ID, models.StatusDispatched)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	require.NoError(t, repo.Transition(ctx, sub.ID, models.StatusVerified))

	// verified -> pending walks backwards
	err = repo.Transition(ctx, sub.ID, models.StatusPendingVerification)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	require.NoError(t, repo.Transition(ctx, sub.ID, models.StatusDispatched))

	// terminal states accept nothing
	err = repo.Transition(ctx, sub.ID, models.StatusFailed)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestTransitionNotFound(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Transition(context.Background(), "missing", models.StatusVerified)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetDegraded(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sub, err := repo.Create(ctx, testContact())
	require.NoError(t, err)

	require.NoError(t, repo.SetDegraded(ctx, sub.ID))

	got, err := repo.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, got.Degraded)

	assert.ErrorIs(t, repo.SetDegraded(ctx, "missing"), models.ErrNotFound)
}

func TestUpdateContact(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sub, err := repo.Create(ctx, testContact())
	require.NoError(t, err)

	updated := testContact()
	updated.Message = "Actually, I also need an enterprise quote."
	require.NoError(t, repo.UpdateContact(ctx, sub.ID, updated))

	got, err := repo.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Message, got.Contact.Message)
}

func TestCountAndRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	contacts := []string{"a@example.com", "b@example.com", "c@example.com"}
	for _, email := range contacts {
		c := testContact()
		c.Email = email
		_, err := repo.Create(ctx, c)
		require.NoError(t, err)
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestPruneAbandoned(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stale, err := repo.Create(ctx, testContact())
	require.NoError(t, err)

	fresh := testContact()
	fresh.Email = "fresh@example.com"
	kept, err := repo.Create(ctx, fresh)
	require.NoError(t, err)
	require.NoError(t, repo.Transition(ctx, kept.ID, models.StatusVerified))

	// Cutoff in the future catches the stale pending row but never
	// touches verified submissions
	pruned, err := repo.PruneAbandoned(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	_, err = repo.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = repo.Get(ctx, kept.ID)
	assert.NoError(t, err)
}
