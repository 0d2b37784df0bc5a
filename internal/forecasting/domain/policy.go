package domain

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// ZForServiceLevel maps a service level alpha to the standard normal
// quantile. alpha must be strictly inside (0, 1).
func ZForServiceLevel(alpha float64) (float64, error) {
	if !(alpha > 0 && alpha < 1) {
		return 0, fmt.Errorf("service level %v out of (0,1)", alpha)
	}
	return stdNormal.Quantile(alpha), nil
}

// SigmaLeadTime estimates the std-dev of demand over the lead time.
//
// With sigmaL absent or zero the lead time is treated as deterministic:
// sqrt(L) * sigmaD. A positive sigmaL also accounts for lead-time
// variability: sqrt(L*sigmaD^2 + mu^2*sigmaL^2). Negative inputs are
// clamped to zero.
func SigmaLeadTime(mu, sigmaD, leadTime, sigmaL float64) float64 {
	sigmaD = math.Max(sigmaD, 0)
	leadTime = math.Max(leadTime, 0)
	if sigmaL <= 0 {
		return math.Sqrt(leadTime) * sigmaD
	}
	return math.Sqrt(leadTime*sigmaD*sigmaD + mu*mu*sigmaL*sigmaL)
}

// SafetyStock computes z(alpha) * sigma_lead_time.
func SafetyStock(mu, sigmaD, leadTime, alpha, sigmaL float64) (float64, error) {
	z, err := ZForServiceLevel(alpha)
	if err != nil {
		return 0, err
	}
	return z * SigmaLeadTime(mu, sigmaD, leadTime, sigmaL), nil
}

// ReorderPoint computes mu*L + safety stock, with negatives clamped.
func ReorderPoint(mu, safetyStock, leadTime float64) float64 {
	return mu*math.Max(leadTime, 0) + math.Max(safetyStock, 0)
}

// DaysToStockout returns current/mu, or +Inf when demand is effectively
// zero (mu below the epsilon guard).
func DaysToStockout(currentQty, mu, epsilon float64) float64 {
	eps := math.Max(epsilon, 1e-12)
	if mu < eps {
		return math.Inf(1)
	}
	return math.Max(currentQty, 0) / mu
}

// SuggestOrder returns the quantity needed to reach the target days of
// cover, rounded up, never negative.
//
// leadTime and safetyStock are accepted for a future reorder-point-aware
// policy but do not change the result of the target-days-of-cover rule.
func SuggestOrder(currentQty, mu, leadTime, safetyStock, targetDaysOfCover float64) int {
	_ = leadTime
	_ = safetyStock
	target := math.Max(targetDaysOfCover, 0) * math.Max(mu, 0)
	needed := target - math.Max(currentQty, 0)
	if needed <= 0 {
		return 0
	}
	return int(math.Ceil(needed))
}

// OrderDate decides when to place the suggested order.
//
// At or below the reorder point the order is due now. Otherwise, with a
// finite runway longer than the lead time, the order can wait until
// (days-to-stockout - L) days from now. With effectively zero demand no
// date is emitted.
func OrderDate(now time.Time, currentQty, reorderPoint, daysToStockout, leadTime float64) (time.Time, bool) {
	if currentQty <= reorderPoint {
		return floorDay(now), true
	}
	if !math.IsInf(daysToStockout, 1) && daysToStockout > leadTime {
		wait := time.Duration((daysToStockout - leadTime) * 24 * float64(time.Hour))
		return floorDay(now.Add(wait)), true
	}
	return time.Time{}, false
}

// Confidence scores an estimate by relative volatility: high sigma
// relative to mu means low confidence.
func Confidence(muHat, sigmaDHat float64) float64 {
	return 1 - math.Min(1, sigmaDHat/math.Max(muHat, 0.1))
}

// ItemPolicy is the per-item replenishment parameter set.
type ItemPolicy struct {
	ItemID          string
	Name            string
	SKU             string
	LeadTimeDays    float64
	SafetyStockDays float64
	ServiceLevel    float64
	LeadTimeStdDays float64
}

// PolicyConfig carries the policy-wide knobs.
type PolicyConfig struct {
	EpsilonMu  float64
	TargetDays float64
}

// Result is the full policy output for one item.
type Result struct {
	ItemID         string
	Z              float64
	SigmaLeadTime  float64
	SafetyStock    float64
	ReorderPoint   float64
	DaysToStockout float64 // +Inf when demand is effectively zero
	SuggestedQty   int
	OrderDate      time.Time
	HasOrderDate   bool
	Confidence     float64
}

// Evaluate applies the whole policy to one estimate.
func Evaluate(est Estimate, item ItemPolicy, currentQty float64, now time.Time, cfg PolicyConfig) (Result, error) {
	z, err := ZForServiceLevel(item.ServiceLevel)
	if err != nil {
		return Result{}, fmt.Errorf("policy for item %s: %w", est.ItemID, err)
	}
	sigmaLT := SigmaLeadTime(est.MuHat, est.SigmaDHat, item.LeadTimeDays, item.LeadTimeStdDays)
	ss := z * sigmaLT
	rop := ReorderPoint(est.MuHat, ss, item.LeadTimeDays)
	dso := DaysToStockout(currentQty, est.MuHat, cfg.EpsilonMu)
	qty := SuggestOrder(currentQty, est.MuHat, item.LeadTimeDays, ss, cfg.TargetDays)
	orderDate, hasDate := OrderDate(now, currentQty, rop, dso, item.LeadTimeDays)

	return Result{
		ItemID:         est.ItemID,
		Z:              z,
		SigmaLeadTime:  sigmaLT,
		SafetyStock:    ss,
		ReorderPoint:   rop,
		DaysToStockout: dso,
		SuggestedQty:   qty,
		OrderDate:      orderDate,
		HasOrderDate:   hasDate,
		Confidence:     Confidence(est.MuHat, est.SigmaDHat),
	}, nil
}
