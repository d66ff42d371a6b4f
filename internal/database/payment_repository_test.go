package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travelhub/booking-engine/internal/models"
)

var paymentRowColumns = []string{
	"id", "booking_id", "amount", "currency", "method", "correlation_key", "status",
	"gateway_response_code", "gateway_transaction_id", "completed_at",
	"created_at", "updated_at",
}

func TestPaymentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		payment := &models.Payment{
			BookingID:      uuid.New(),
			Amount:         300,
			Currency:       "VND",
			Method:         models.PaymentMethodCard,
			CorrelationKey: "01JABCDEFGHJKMNPQRSTVWXYZ0",
			Status:         models.PaymentStatusPending,
		}

		mock.ExpectExec(`INSERT INTO payments`).
			WithArgs(sqlmock.AnyArg(), payment.BookingID, 300.0, "VND",
				models.PaymentMethodCard, payment.CorrelationKey, models.PaymentStatusPending,
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, payment))
		assert.NotEqual(t, uuid.Nil, payment.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Duplicate Correlation Key", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO payments`).
			WillReturnError(&pq.Error{Code: "23505"})

		err := repo.Create(ctx, &models.Payment{BookingID: uuid.New(), CorrelationKey: "dup"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already in use")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_GetByCorrelationKeyForUpdate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	t.Run("Exact Match", func(t *testing.T) {
		id := uuid.New()
		bookingID := uuid.New()
		key := "01JABCDEFGHJKMNPQRSTVWXYZ0"
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE correlation_key = \$1 FOR UPDATE`).
			WithArgs(key).
			WillReturnRows(sqlmock.NewRows(paymentRowColumns).AddRow(
				id.String(), bookingID.String(), 300.0, "VND", "card", key, "pending",
				nil, nil, nil, now, now,
			))

		payment, err := repo.GetByCorrelationKeyForUpdate(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, id, payment.ID)
		assert.Equal(t, bookingID, payment.BookingID)
		assert.Equal(t, models.PaymentStatusPending, payment.Status)
		assert.Nil(t, payment.GatewayResponseCode)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM payments WHERE correlation_key`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		payment, err := repo.GetByCorrelationKeyForUpdate(ctx, "missing")
		assert.Nil(t, payment)
		assert.ErrorIs(t, err, models.ErrPaymentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_TransitionFromPending(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	id := uuid.New()
	code := "00"
	txn := "GW123"

	t.Run("Applied", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payments (.+) WHERE id = \$1 AND status = 'pending'`).
			WithArgs(id, models.PaymentStatusPaid, code, txn).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.TransitionFromPending(ctx, id, models.PaymentStatusPaid, &code, &txn)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Terminal", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payments`).
			WithArgs(id, models.PaymentStatusFailed, nil, nil).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.TransitionFromPending(ctx, id, models.PaymentStatusFailed, nil, nil)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Second Paid Payment", func(t *testing.T) {
		mock.ExpectExec(`UPDATE payments`).
			WillReturnError(&pq.Error{Code: "23505"})

		ok, err := repo.TransitionFromPending(ctx, id, models.PaymentStatusPaid, &code, &txn)
		assert.False(t, ok)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_ListByBooking(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPaymentRepository(db)

	bookingID := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM payments\s+WHERE booking_id = \$1`).
		WithArgs(bookingID).
		WillReturnRows(sqlmock.NewRows(paymentRowColumns).
			AddRow(uuid.New().String(), bookingID.String(), 300.0, "VND", "card", "k1", "failed", "24", nil, now, now, now).
			AddRow(uuid.New().String(), bookingID.String(), 300.0, "VND", "card", "k2", "pending", nil, nil, nil, now, now))

	payments, err := repo.ListByBooking(context.Background(), bookingID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, models.PaymentStatusFailed, payments[0].Status)
	require.NotNil(t, payments[0].GatewayResponseCode)
	assert.Equal(t, "24", *payments[0].GatewayResponseCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
