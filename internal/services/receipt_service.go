package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/travelhub/booking-engine/internal/models"
)

// ReceiptService renders PDF receipts for paid bookings
type ReceiptService struct {
	bookings *BookingService
	payments PaymentRepository
	issuer   string
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(bookings *BookingService, payments PaymentRepository, issuer string) *ReceiptService {
	return &ReceiptService{bookings: bookings, payments: payments, issuer: issuer}
}

// Render returns the receipt of a paid booking the actor may see
func (s *ReceiptService) Render(ctx context.Context, bookingID uuid.UUID, actor models.Actor) ([]byte, error) {
	booking, err := s.bookings.Get(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPaid {
		return nil, fmt.Errorf("%w: receipts are only issued for paid bookings", models.ErrInvalidTransition)
	}

	payments, err := s.payments.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	var paid *models.Payment
	for i := range payments {
		if payments[i].Status == models.PaymentStatusPaid {
			paid = &payments[i]
			break
		}
	}

	services, err := s.bookings.Services(ctx, booking)
	if err != nil {
		return nil, err
	}

	return s.render(booking, paid, services)
}

func (s *ReceiptService) render(booking *models.Booking, payment *models.Payment, services []models.ServiceReference) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(190, 10, s.issuer)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(190, 8, fmt.Sprintf("Booking: %s", booking.ID))
	pdf.Ln(8)
	if booking.PaidAt != nil {
		pdf.Cell(190, 8, fmt.Sprintf("Paid at: %s", booking.PaidAt.Format("2006-01-02 15:04:05")))
		pdf.Ln(8)
	}
	if booking.StayStart != nil {
		period := booking.StayStart.Format("2006-01-02")
		if booking.StayEnd != nil {
			period += " - " + booking.StayEnd.Format("2006-01-02")
		}
		pdf.Cell(190, 8, fmt.Sprintf("Stay: %s", period))
		pdf.Ln(8)
	}
	if payment != nil {
		pdf.Cell(190, 8, fmt.Sprintf("Payment reference: %s", payment.CorrelationKey))
		pdf.Ln(8)
		if payment.GatewayTransactionID != nil {
			pdf.Cell(190, 8, fmt.Sprintf("Transaction ID: %s", *payment.GatewayTransactionID))
			pdf.Ln(8)
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(40, 8, "Service", "1", 0, "L", false, 0, "")
	pdf.CellFormat(110, 8, "Description", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "Price", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, line := range receiptLines(booking, services) {
		pdf.CellFormat(40, 8, string(line.Kind), "1", 0, "L", false, 0, "")
		pdf.CellFormat(110, 8, line.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprintf("%.2f", line.Amount), "1", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(150, 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, fmt.Sprintf("%.2f %s", booking.TotalAmount, booking.Currency), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

type receiptLine struct {
	Kind        models.ServiceKind
	Description string
	Amount      float64
}

// receiptLines pairs each stored selection with its catalog entry. Amounts
// come from the booking, never from the current catalog price.
func receiptLines(booking *models.Booking, services []models.ServiceReference) []receiptLine {
	lines := make([]receiptLine, 0, len(booking.Selections))
	for i, sel := range booking.Selections {
		line := receiptLine{Kind: sel.Kind, Description: "(no longer available)", Amount: sel.Amount}
		if i < len(services) {
			if view := services[i].View(); view.Resolved {
				line.Description = view.Name
			}
		}
		lines = append(lines, line)
	}
	return lines
}
