package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/pkg/money"
)

// PricingInput holds everything the price of a booking depends on
type PricingInput struct {
	CostFrom           money.Money
	GuestCount         int
	DiscountPercentage *float64
	DiscountDeadline   *time.Time
	GuideCharge        money.Money
	Now                time.Time
}

// ComputePricing derives the booking breakdown. The discount applies only while
// Now is at or before the deadline. A guide fee larger than the discounted
// amount is flagged as an anomaly, not rejected.
func ComputePricing(in PricingInput) (models.Pricing, error) {
	if in.GuestCount <= 0 {
		return models.Pricing{}, apperrors.Validation("guest count must be at least 1")
	}
	if in.CostFrom <= 0 {
		return models.Pricing{}, apperrors.Validation("tour price must be positive")
	}
	if in.GuideCharge < 0 {
		return models.Pricing{}, apperrors.Validation("guide charge cannot be negative")
	}

	base := in.CostFrom.Mul(int64(in.GuestCount))
	p := models.Pricing{
		BaseAmount: base,
		GuideFee:   in.GuideCharge,
	}

	if in.DiscountDeadline != nil && in.DiscountPercentage != nil && !in.Now.After(*in.DiscountDeadline) {
		pct := *in.DiscountPercentage
		if pct < 0 || pct > 100 {
			return models.Pricing{}, apperrors.Validation("discount percentage must be between 0 and 100")
		}
		p.DiscountPercentage = pct
		p.DiscountAmount = base.Percent(decimal.NewFromFloat(pct))
		deadline := *in.DiscountDeadline
		p.DiscountDate = &deadline
	}

	p.AmountAfterDiscount = base - p.DiscountAmount
	p.CompanyEarning = p.AmountAfterDiscount - p.GuideFee
	p.Anomaly = p.CompanyEarning.IsNegative()
	return p, nil
}
