package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DHvyas/votales-api/pkg/models"
)

type fakeStore struct {
	created     []models.Notification
	createErr   error
	markedRead  []string
	markedAll   []string
}

func (f *fakeStore) Create(ctx context.Context, n *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeStore) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.created {
		if n.UserID == userID && !n.IsRead {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkRead(ctx context.Context, userID, id string) error {
	f.markedRead = append(f.markedRead, id)
	return nil
}

func (f *fakeStore) MarkAllRead(ctx context.Context, userID string) error {
	f.markedAll = append(f.markedAll, userID)
	return nil
}

func newTestService() (*Service, *fakeStore) {
	store := &fakeStore{}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewService(store, logger), store
}

func TestNotify_WritesRow(t *testing.T) {
	svc, store := newTestService()

	taleID := "tale-1"
	err := svc.Notify(context.Background(), "author-1", "voter-1", "Sam", models.NotificationTypeVote, "Someone voted on your tale", &taleID)
	require.NoError(t, err)

	require.Len(t, store.created, 1)
	n := store.created[0]
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "author-1", n.UserID)
	assert.Equal(t, "voter-1", n.TriggeredByID)
	assert.Equal(t, "Sam", n.TriggeredByName)
	assert.Equal(t, models.NotificationTypeVote, n.Type)
	assert.Equal(t, "Someone voted on your tale", n.Message)
	require.NotNil(t, n.RelatedTaleID)
	assert.Equal(t, "tale-1", *n.RelatedTaleID)
	assert.False(t, n.IsRead)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestNotify_SelfNotificationSuppressed(t *testing.T) {
	svc, store := newTestService()

	err := svc.Notify(context.Background(), "author-1", "author-1", "Riley", models.NotificationTypeBranch, "Riley continued your story", nil)
	require.NoError(t, err)
	assert.Empty(t, store.created)
}

func TestNotify_StoreErrorSurfaces(t *testing.T) {
	svc, store := newTestService()
	store.createErr = errors.New("insert failed")

	err := svc.Notify(context.Background(), "author-1", "voter-1", "Sam", models.NotificationTypeVote, "Someone voted on your tale", nil)
	assert.Error(t, err)
}

func TestListUnread_OnlyCallersUnread(t *testing.T) {
	svc, _ := newTestService()

	require.NoError(t, svc.Notify(context.Background(), "user-1", "actor-1", "Sam", models.NotificationTypeVote, "Someone voted on your tale", nil))
	require.NoError(t, svc.Notify(context.Background(), "user-2", "actor-1", "Sam", models.NotificationTypeVote, "Someone voted on your tale", nil))

	unread, err := svc.ListUnread(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "user-1", unread[0].UserID)
}

func TestMarkRead_Delegates(t *testing.T) {
	svc, store := newTestService()

	require.NoError(t, svc.MarkRead(context.Background(), "user-1", "notif-1"))
	assert.Equal(t, []string{"notif-1"}, store.markedRead)

	require.NoError(t, svc.MarkAllRead(context.Background(), "user-1"))
	assert.Equal(t, []string{"user-1"}, store.markedAll)
}
