package finance

import (
	"worklenz/finance/internal/models"
	"worklenz/finance/internal/rates"
)

// costStrategy prices a number of labor hours at a member's rate.
type costStrategy interface {
	method() models.CalculationMethod
	cost(hours float64, rate rates.Rate) float64
	// manDays converts hours to man-days, or reports false when the
	// policy does not track effort in man-days.
	manDays(hours float64) (float64, bool)
}

type hourlyCost struct{}

func (hourlyCost) method() models.CalculationMethod { return models.MethodHourly }

func (hourlyCost) cost(hours float64, rate rates.Rate) float64 {
	return hours * rate.Hourly
}

func (hourlyCost) manDays(float64) (float64, bool) { return 0, false }

type manDayCost struct {
	hoursPerDay float64
}

func (manDayCost) method() models.CalculationMethod { return models.MethodManDays }

// cost falls back to the hourly rate when the role has no man-day rate.
func (m manDayCost) cost(hours float64, rate rates.Rate) float64 {
	if rate.ManDay == 0 {
		return hours * rate.Hourly
	}
	return hours / m.hoursPerDay * rate.ManDay
}

func (m manDayCost) manDays(hours float64) (float64, bool) {
	return hours / m.hoursPerDay, true
}

// strategyFor selects the costing strategy once per aggregation.
// Unknown methods are priced hourly.
func strategyFor(p models.Project) costStrategy {
	if p.CalculationMethod != models.MethodManDays {
		return hourlyCost{}
	}
	hpd := p.HoursPerDay
	if hpd <= 0 {
		hpd = models.DefaultHoursPerDay
	}
	return manDayCost{hoursPerDay: hpd}
}
