package policy

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/minelance/minelance-backend/pkg/enums"
	pkgerrors "github.com/minelance/minelance-backend/pkg/errors"
)

const (
	TitleMinLen         = 5
	TitleMaxLen         = 100
	DescriptionMinLen   = 20
	DescriptionMaxLen   = 2000
	CommentMaxLen       = 1000
	OfferMessageMinLen  = 10
	OfferMessageMaxLen  = 1000
	ReportReasonMinLen  = 10
	ReportReasonMaxLen  = 1000
	AdminCommentMaxLen  = 1000
	MinDeliveryDays     = 1
	MaxDeliveryDays     = 365
	MinRating           = 1
	MaxRating           = 5
	offerToBudgetFactor = 2
)

// MaxPrice is the ceiling for budgets and offer prices.
var MaxPrice = decimal.NewFromInt(1_000_000)

func validationError(field, reason string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, reason).
		WithDetails(map[string]string{field: reason})
}

func ValidateCategory(v string) (enums.OrderCategory, error) {
	category, err := enums.ParseOrderCategory(strings.TrimSpace(v))
	if err != nil {
		return "", validationError("category", fmt.Sprintf("unknown category %q", v))
	}
	return category, nil
}

// ValidateTitle trims v and checks its length in characters.
func ValidateTitle(v string) (string, error) {
	return checkLength("title", v, TitleMinLen, TitleMaxLen)
}

func ValidateDescription(v string) (string, error) {
	return checkLength("description", v, DescriptionMinLen, DescriptionMaxLen)
}

func ValidateOfferMessage(v string) (string, error) {
	return checkLength("message", v, OfferMessageMinLen, OfferMessageMaxLen)
}

func ValidateReportReason(v string) (string, error) {
	return checkLength("reason", v, ReportReasonMinLen, ReportReasonMaxLen)
}

// ValidateComment accepts nil and blank comments, returning nil for both.
func ValidateComment(v *string) (*string, error) {
	return optionalText("comment", v, CommentMaxLen)
}

func ValidateAdminComment(v *string) (*string, error) {
	return optionalText("admin_comment", v, AdminCommentMaxLen)
}

// ValidatePrice requires 0 < p <= 1,000,000 in whole cents.
func ValidatePrice(p decimal.Decimal) error {
	if !p.IsPositive() {
		return validationError("price", "price must be greater than 0")
	}
	if !p.Equal(p.Truncate(2)) {
		return validationError("price", "price must have at most 2 decimal places")
	}
	if p.GreaterThan(MaxPrice) {
		return validationError("price", "price must not exceed 1000000")
	}
	return nil
}

// ValidateOfferPrice applies the price bounds and rejects offers above twice
// the order budget.
func ValidateOfferPrice(offerPrice, orderBudget decimal.Decimal) error {
	if err := ValidatePrice(offerPrice); err != nil {
		return err
	}
	limit := orderBudget.Mul(decimal.NewFromInt(offerToBudgetFactor))
	if offerPrice.GreaterThan(limit) {
		return validationError("price", fmt.Sprintf("offer price %s exceeds twice the order budget %s", offerPrice.String(), orderBudget.String()))
	}
	return nil
}

// ValidateRating rounds r to the nearest integer (half away from zero) and
// requires the result to be between 1 and 5.
func ValidateRating(r float64) (int, error) {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, validationError("rating", "rating must be a number")
	}
	rounded := int(math.Round(r))
	if rounded < MinRating || rounded > MaxRating {
		return 0, validationError("rating", "rating must be between 1 and 5")
	}
	return rounded, nil
}

func ValidateDeliveryDays(days int) error {
	if days < MinDeliveryDays || days > MaxDeliveryDays {
		return validationError("delivery_days", fmt.Sprintf("delivery days must be between %d and %d", MinDeliveryDays, MaxDeliveryDays))
	}
	return nil
}

func checkLength(field, v string, min, max int) (string, error) {
	trimmed := strings.TrimSpace(v)
	n := utf8.RuneCountInString(trimmed)
	if n < min || n > max {
		return "", validationError(field, fmt.Sprintf("%s must be between %d and %d characters", field, min, max))
	}
	return trimmed, nil
}

func optionalText(field string, v *string, max int) (*string, error) {
	if v == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > max {
		return nil, validationError(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return &trimmed, nil
}
