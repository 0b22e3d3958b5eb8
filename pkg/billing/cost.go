package billing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/model"
	"github.com/ogulcanaydogan/neon-billing-alerts/pkg/pricing"
)

// DisplayPlaces is the precision of every value in an Estimate.
const DisplayPlaces = 2

var (
	secondsPerHour = decimal.NewFromInt(3600)
	bytesPerGB     = decimal.NewFromInt(1 << 30)
	hoursPerMonth  = decimal.NewFromInt(730)
)

// Estimate converts raw usage into CU-hours, GB-months and GB, and prices
// them with the given plan. Free allowances are deducted before pricing.
//
// Every returned value is rounded to DisplayPlaces. Threshold evaluation
// uses these rounded values so the number shown in an alert always agrees
// with the decision taken on it.
func Estimate(s model.UsageSnapshot, plan pricing.Plan) model.Estimate {
	cuHours := fromRaw(s.ComputeTimeSeconds).Div(secondsPerHour)
	gbMonth := fromRaw(s.StorageBytesHour).Div(bytesPerGB).Div(hoursPerMonth)
	egressGB := fromRaw(s.EgressBytes).Div(bytesPerGB)

	computeCost := billable(cuHours, plan.FreeComputeCUHour).Mul(plan.ComputeCUHour)
	storageCost := billable(gbMonth, plan.FreeStorageGBMonth).Mul(plan.StorageGBMonth)
	egressCost := billable(egressGB, plan.FreeEgressGB).Mul(plan.EgressGB)
	total := computeCost.Add(storageCost).Add(egressCost)

	return model.Estimate{
		Plan:           plan.Name,
		ComputeCUHours: cuHours.Round(DisplayPlaces),
		StorageGBMonth: gbMonth.Round(DisplayPlaces),
		EgressGB:       egressGB.Round(DisplayPlaces),
		ComputeCost:    computeCost.Round(DisplayPlaces),
		StorageCost:    storageCost.Round(DisplayPlaces),
		EgressCost:     egressCost.Round(DisplayPlaces),
		TotalCostUSD:   total.Round(DisplayPlaces),
	}
}

// fromRaw maps absent, negative or non-finite API values to zero.
func fromRaw(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func billable(used, free decimal.Decimal) decimal.Decimal {
	b := used.Sub(free)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}
