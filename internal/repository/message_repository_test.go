package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/review-sms/internal/models"
	"github.com/popeskul/review-sms/internal/repository"
)

func TestMessageRepository_Lookup(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewMessageRepository(db)
	ctx := context.Background()
	userID := insertTestUser(t, db, userOpts{})
	customerID := insertTestCustomer(t, db, userID, customerOpts{})

	id := insertTestMessage(t, db, userID, customerID, "SM1", statusPtr(models.DeliveryStatusQueued), time.Now())

	msg, err := repo.GetByCarrierID(ctx, "SM1")
	require.NoError(t, err)
	assert.Equal(t, id, msg.ID)
	require.NotNil(t, msg.DeliveryStatus)
	assert.Equal(t, models.DeliveryStatusQueued, *msg.DeliveryStatus)

	_, err = repo.GetByCarrierID(ctx, "SM-unknown")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMessageRepository_ListByCustomer(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewMessageRepository(db)
	ctx := context.Background()
	userID := insertTestUser(t, db, userOpts{})
	customerID := insertTestCustomer(t, db, userID, customerOpts{})
	otherCustomer := insertTestCustomer(t, db, userID, customerOpts{})

	base := time.Now().Add(-time.Hour)
	insertTestMessage(t, db, userID, customerID, "SM-a", nil, base)
	insertTestMessage(t, db, userID, customerID, "SM-b", nil, base.Add(time.Minute))
	insertTestMessage(t, db, userID, otherCustomer, "SM-c", nil, base)

	messages, err := repo.ListByCustomer(ctx, userID, customerID, 0, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "SM-b", messages[0].CarrierMessageID)
	assert.Nil(t, messages[1].DeliveryStatus)

	messages, err = repo.ListByCustomer(ctx, uuid.New(), customerID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMessageRepository_UpdateDeliveryStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewMessageRepository(db)
	ctx := context.Background()
	userID := insertTestUser(t, db, userOpts{})
	customerID := insertTestCustomer(t, db, userID, customerOpts{})

	legacy := insertTestMessage(t, db, userID, customerID, "SM-legacy", nil, time.Now())
	tracked := insertTestMessage(t, db, userID, customerID, "SM-tracked", statusPtr(models.DeliveryStatusQueued), time.Now())

	tests := []struct {
		name    string
		id      uuid.UUID
		prev    *models.DeliveryStatus
		update  models.DeliveryUpdate
		changed bool
	}{
		{
			name:    "legacy row with null status",
			id:      legacy,
			prev:    nil,
			update:  models.DeliveryUpdate{Status: models.DeliveryStatusDelivered},
			changed: true,
		},
		{
			name:    "stale previous status",
			id:      tracked,
			prev:    statusPtr(models.DeliveryStatusSent),
			update:  models.DeliveryUpdate{Status: models.DeliveryStatusDelivered},
			changed: false,
		},
		{
			name:    "matching previous status",
			id:      tracked,
			prev:    statusPtr(models.DeliveryStatusQueued),
			update:  models.DeliveryUpdate{Status: models.DeliveryStatusUndelivered, ErrorCode: "30005", ErrorMessage: "Unknown destination"},
			changed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed, err := repo.UpdateDeliveryStatus(ctx, tt.id, tt.prev, tt.update)
			require.NoError(t, err)
			assert.Equal(t, tt.changed, changed)
		})
	}

	msg, err := repo.GetByID(ctx, tracked)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusUndelivered, *msg.DeliveryStatus)
	assert.Equal(t, "30005", msg.DeliveryErrorCode.String)
	assert.Equal(t, "Unknown destination", msg.DeliveryErrorMessage.String)
}
