package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travelhub/booking-engine/internal/models"
)

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var bookingRowColumns = []string{
	"id", "owner_id", "selections", "is_bundle", "stay_start", "stay_end",
	"total_amount", "currency", "warnings", "status",
	"paid_at", "cancelled_at", "created_at", "updated_at",
}

func TestBookingRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		checkIn := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		booking := &models.Booking{
			OwnerID:     uuid.New(),
			Selections:  models.Selections{{Kind: models.ServiceKindHotel, ServiceID: uuid.New()}},
			StayStart:   &checkIn,
			TotalAmount: 300,
			Currency:    "VND",
			Status:      models.BookingStatusPending,
		}

		mock.ExpectExec(`INSERT INTO bookings`).
			WithArgs(sqlmock.AnyArg(), booking.OwnerID, sqlmock.AnyArg(), false,
				sqlmock.AnyArg(), sqlmock.AnyArg(), 300.0, "VND", sqlmock.AnyArg(), models.BookingStatusPending,
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Create(ctx, booking)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, booking.ID)
		assert.False(t, booking.CreatedAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO bookings`).
			WillReturnError(fmt.Errorf("connection reset"))

		err := repo.Create(ctx, &models.Booking{OwnerID: uuid.New(), Status: models.BookingStatusPending})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create booking")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		id := uuid.New()
		owner := uuid.New()
		hotelID := uuid.New()
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1$`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(
				id.String(), owner.String(),
				[]byte(fmt.Sprintf(`[{"kind":"hotel","service_id":"%s"}]`, hotelID)), false,
				now, now.Add(72*time.Hour),
				300.0, "VND", []byte(`{}`), "pending",
				nil, nil, now, now,
			))

		booking, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, booking.ID)
		assert.Equal(t, owner, booking.OwnerID)
		require.Len(t, booking.Selections, 1)
		assert.Equal(t, models.ServiceKindHotel, booking.Selections[0].Kind)
		assert.Equal(t, hotelID, booking.Selections[0].ServiceID)
		assert.Equal(t, models.BookingStatusPending, booking.Status)
		assert.Equal(t, 300.0, booking.TotalAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id`).
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		booking, err := repo.GetByID(ctx, id)
		assert.Nil(t, booking)
		assert.ErrorIs(t, err, models.ErrBookingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_GetByIDForUpdate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBookingRepository(db)

	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByIDForUpdate(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrBookingNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_UpdateStatus(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	id := uuid.New()

	t.Run("Transitioned", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(id, models.BookingStatusPending, models.BookingStatusPaid).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.UpdateStatus(ctx, id, models.BookingStatusPending, models.BookingStatusPaid)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Status Already Changed", func(t *testing.T) {
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(id, models.BookingStatusPending, models.BookingStatusCancelled).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.UpdateStatus(ctx, id, models.BookingStatusPending, models.BookingStatusCancelled)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_ListByOwner(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBookingRepository(db)

	owner := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows(bookingRowColumns)
	for i := 0; i < 2; i++ {
		rows.AddRow(uuid.New().String(), owner.String(), []byte(`[]`), false, nil, nil,
			100.0, "VND", []byte(`{}`), "pending", nil, nil, now, now)
	}

	mock.ExpectQuery(`SELECT (.+) FROM bookings\s+WHERE owner_id = \$1`).
		WithArgs(owner, 20, 0).
		WillReturnRows(rows)

	bookings, err := repo.ListByOwner(context.Background(), owner, 20, 0)
	require.NoError(t, err)
	assert.Len(t, bookings, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
