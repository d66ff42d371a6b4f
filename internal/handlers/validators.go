package handlers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/travelhub/booking-engine/internal/models"
)

// RegisterValidators adds the enum validators used by request binding tags to
// gin's validator engine
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}

	rules := map[string]validator.Func{
		"service_kind": func(fl validator.FieldLevel) bool {
			return models.ServiceKind(fl.Field().String()).IsValid()
		},
		"booking_status": func(fl validator.FieldLevel) bool {
			return models.BookingStatus(fl.Field().String()).IsValid()
		},
		"payment_status": func(fl validator.FieldLevel) bool {
			return models.PaymentStatus(fl.Field().String()).IsValid()
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// validationDetails flattens binding errors into field -> message
func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, e := range validationErrors {
		details[e.Namespace()] = describeFieldError(e)
	}
	return details
}

func describeFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Must contain at least " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "service_kind":
		return "Must be one of: hotel flight tour"
	case "booking_status":
		return "Must be one of: pending paid cancelled"
	case "payment_status":
		return "Must be one of: pending paid failed"
	default:
		return "Invalid value"
	}
}
