package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgStoreAppend(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	entityID := uuid.New()
	branchID := uuid.New()
	at := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	payload := json.RawMessage(`{"start":"10:00"}`)

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(AppointmentCreated, &entityID, &branchID, payload, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPgStore(mock)
	err = store.Append(context.Background(), Event{
		EventType: AppointmentCreated,
		EntityID:  &entityID,
		BranchID:  &branchID,
		Payload:   payload,
		CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreAppendStampsCreatedAt(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(ReferralCreated, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewPgStore(mock)
	err = store.Append(context.Background(), Event{EventType: ReferralCreated})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreChangesSince(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	branchID := uuid.New()
	entityID := uuid.New()
	createdAt := since.Add(2 * time.Hour)

	mock.ExpectQuery("SELECT id, event_type, entity_id, branch_id, payload, created_at").
		WithArgs(since, &branchID, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "event_type", "entity_id", "branch_id", "payload", "created_at"}).
			AddRow(int64(7), AppointmentApproved, &entityID, &branchID, json.RawMessage(`{"staff_id":"x"}`), createdAt))

	store := NewPgStore(mock)
	got, err := store.ChangesSince(context.Background(), since, &branchID, 50)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, AppointmentApproved, got[0].EventType)
	assert.Equal(t, &branchID, got[0].BranchID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgStoreChangesSinceClampsLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	since := time.Now().UTC()

	// Non-positive limits fall back to the default page size; oversized ones
	// are capped at the maximum, matching the handler's clamp.
	for _, tc := range []struct{ limit, effective int }{
		{0, 100}, {-5, 100}, {10000, 500}, {500, 500}, {50, 50},
	} {
		mock.ExpectQuery("SELECT id, event_type, entity_id, branch_id, payload, created_at").
			WithArgs(since, (*uuid.UUID)(nil), tc.effective).
			WillReturnRows(pgxmock.NewRows([]string{"id", "event_type", "entity_id", "branch_id", "payload", "created_at"}))

		_, err := NewPgStore(mock).ChangesSince(context.Background(), since, nil, tc.limit)
		require.NoError(t, err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
