package facility

import "github.com/pthm-cable/canopy/environment"

// TickCosts is a zone's own view of what it booked during one tick. Amounts
// are float approximations of the ledger's decimal entries.
type TickCosts struct {
	Tick           int     `json:"tick" csv:"tick"`
	EnergyKWh      float64 `json:"energy_kwh" csv:"energy_kwh"`
	EnergyEUR      float64 `json:"energy_eur" csv:"energy_eur"`
	WaterL         float64 `json:"water_l" csv:"water_l"`
	WaterEUR       float64 `json:"water_eur" csv:"water_eur"`
	FertilizerEUR  float64 `json:"fertilizer_eur" csv:"fertilizer_eur"`
	MaintenanceEUR float64 `json:"maintenance_eur" csv:"maintenance_eur"`
	CapexEUR       float64 `json:"capex_eur" csv:"capex_eur"`
	SeedsEUR       float64 `json:"seeds_eur" csv:"seeds_eur"`
	RevenueEUR     float64 `json:"revenue_eur" csv:"revenue_eur"`
	BudsG          float64 `json:"buds_g" csv:"buds_g"`
}

// Expenses returns the summed cost categories.
func (c TickCosts) Expenses() float64 {
	return c.EnergyEUR + c.WaterEUR + c.FertilizerEUR + c.MaintenanceEUR + c.CapexEUR + c.SeedsEUR
}

// Net returns revenue minus expenses.
func (c TickCosts) Net() float64 {
	return c.RevenueEUR - c.Expenses()
}

// TickCosts returns the tally of a recent committed tick.
func (z *Zone) TickCosts(tick int) (TickCosts, bool) {
	c, ok := z.costs[tick]
	return c, ok
}

// CurrentCosts returns the tally of the tick in progress.
func (z *Zone) CurrentCosts() TickCosts {
	return z.tally
}

func (z *Zone) bookEnergy(source string, kWh float64) {
	if kWh <= 0 {
		return
	}
	z.tally.EnergyKWh += kWh
	if l := z.svc.Ledger; l != nil {
		z.tally.EnergyEUR += kWh * l.Prices().ElectricityPerKWh
		l.BookEnergy(source, kWh)
	}
}

func (z *Zone) bookWater(source string, liters float64) {
	if liters <= 0 {
		return
	}
	z.tally.WaterL += liters
	if l := z.svc.Ledger; l != nil {
		z.tally.WaterEUR += liters * l.Prices().WaterPerL
		l.BookWater(source, liters)
	}
}

func (z *Zone) bookFertilizer(nut environment.Nutrients) {
	if nut.Total() <= 0 {
		return
	}
	if l := z.svc.Ledger; l != nil {
		p := l.Prices()
		z.tally.FertilizerEUR += nut.N*p.FertilizerN + nut.P*p.FertilizerP + nut.K*p.FertilizerK
		l.BookFertilizer(z.ID, nut.N, nut.P, nut.K)
	}
}

func (z *Zone) bookMaintenance(source string, eur float64) {
	if eur <= 0 {
		return
	}
	z.tally.MaintenanceEUR += eur
	if l := z.svc.Ledger; l != nil {
		l.BookMaintenance(source, eur)
	}
}

func (z *Zone) bookCapex(source string, eur float64) {
	if eur <= 0 {
		return
	}
	z.tally.CapexEUR += eur
	if l := z.svc.Ledger; l != nil {
		l.BookCapex(source, eur)
	}
}

func (z *Zone) bookSeeds(eur float64) {
	if eur <= 0 {
		return
	}
	z.tally.SeedsEUR += eur
	if l := z.svc.Ledger; l != nil {
		l.BookOtherExpense(z.ID, eur)
	}
}

func (z *Zone) bookRevenue(plantID string, budG, eur float64) {
	z.tally.BudsG += budG
	if eur <= 0 {
		return
	}
	z.tally.RevenueEUR += eur
	if l := z.svc.Ledger; l != nil {
		l.BookRevenue(z.ID+"/"+plantID, eur)
	}
}
