package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MinModelYear is the earliest model year accepted from the registry.
const MinModelYear = 1950

// MaxModelYear is the latest accepted model year: next year's models are
// already on sale.
func MaxModelYear(now time.Time) int {
	return now.Year() + 1
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRecord checks the registry invariants of r.
func ValidateRecord(r VehicleRecord, now time.Time) error {
	if strings.TrimSpace(r.Brand) == "" {
		return NewValidationError("brand", r.Brand, ErrEmptyField)
	}
	if strings.TrimSpace(r.Model) == "" {
		return NewValidationError("model", r.Model, ErrEmptyField)
	}
	if r.Year < MinModelYear || r.Year > MaxModelYear(now) {
		return NewValidationError("year", strconv.Itoa(r.Year), ErrYearOutOfRange)
	}
	if r.EngineCC != nil && *r.EngineCC <= 0 {
		return NewValidationError("engine_cc", strconv.Itoa(*r.EngineCC), ErrInvalidDisplacement)
	}
	return nil
}

// ValidateQuery checks field bounds and that every range is ordered.
func ValidateQuery(q UserQuery) error {
	err := validate.Struct(q)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return NewValidationError(fe.Field(), fmt.Sprint(fe.Value()), fmt.Errorf("%w: failed %q", ErrInvalidQuery, fe.Tag()))
	}
	return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
}
