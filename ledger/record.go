package ledger

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// Category classifies a ledger entry.
type Category string

const (
	CategoryEnergy       Category = "energy"
	CategoryWater        Category = "water"
	CategoryFertilizer   Category = "fertilizer"
	CategoryMaintenance  Category = "maintenance"
	CategoryCapex        Category = "capex"
	CategoryOtherExpense Category = "other_expense"
	CategoryRevenue      Category = "revenue"
)

// Entry is one itemized booking.
type Entry struct {
	Tick     int             `json:"tick"`
	Seq      int             `json:"seq"`
	Category Category        `json:"category"`
	Amount   decimal.Decimal `json:"amount_eur"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit,omitempty"`
	Source   string          `json:"source"`
}

// Totals holds per-category sums. Water and fertilizer money is part of
// OtherExpense; WaterL and EnergyKWh carry the physical quantities.
type Totals struct {
	Energy       decimal.Decimal `json:"energy_eur"`
	EnergyKWh    decimal.Decimal `json:"energy_kwh"`
	WaterL       decimal.Decimal `json:"water_l"`
	Maintenance  decimal.Decimal `json:"maintenance_eur"`
	Capex        decimal.Decimal `json:"capex_eur"`
	OtherExpense decimal.Decimal `json:"other_expense_eur"`
	Revenue      decimal.Decimal `json:"revenue_eur"`
}

// Expenses returns energy + maintenance + capex + other expense.
func (t Totals) Expenses() decimal.Decimal {
	return t.Energy.Add(t.Maintenance).Add(t.Capex).Add(t.OtherExpense)
}

// Net returns revenue minus expenses.
func (t Totals) Net() decimal.Decimal {
	return t.Revenue.Sub(t.Expenses())
}

// Add returns the category-wise sum of t and o.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Energy:       t.Energy.Add(o.Energy),
		EnergyKWh:    t.EnergyKWh.Add(o.EnergyKWh),
		WaterL:       t.WaterL.Add(o.WaterL),
		Maintenance:  t.Maintenance.Add(o.Maintenance),
		Capex:        t.Capex.Add(o.Capex),
		OtherExpense: t.OtherExpense.Add(o.OtherExpense),
		Revenue:      t.Revenue.Add(o.Revenue),
	}
}

// Equal reports exact equality of every category.
func (t Totals) Equal(o Totals) bool {
	return t.Energy.Equal(o.Energy) &&
		t.EnergyKWh.Equal(o.EnergyKWh) &&
		t.WaterL.Equal(o.WaterL) &&
		t.Maintenance.Equal(o.Maintenance) &&
		t.Capex.Equal(o.Capex) &&
		t.OtherExpense.Equal(o.OtherExpense) &&
		t.Revenue.Equal(o.Revenue)
}

func (t *Totals) apply(e Entry) {
	switch e.Category {
	case CategoryEnergy:
		t.Energy = t.Energy.Add(e.Amount)
		t.EnergyKWh = t.EnergyKWh.Add(e.Quantity)
	case CategoryWater:
		t.OtherExpense = t.OtherExpense.Add(e.Amount)
		t.WaterL = t.WaterL.Add(e.Quantity)
	case CategoryFertilizer, CategoryOtherExpense:
		t.OtherExpense = t.OtherExpense.Add(e.Amount)
	case CategoryMaintenance:
		t.Maintenance = t.Maintenance.Add(e.Amount)
	case CategoryCapex:
		t.Capex = t.Capex.Add(e.Amount)
	case CategoryRevenue:
		t.Revenue = t.Revenue.Add(e.Amount)
	}
}

// SetupTick is the tick index of records settled outside any tick.
const SetupTick = -1

// Record is the journal of one tick. It is immutable once committed.
type Record struct {
	Tick           int             `json:"tick"`
	OpeningBalance decimal.Decimal `json:"opening_balance_eur"`
	ClosingBalance decimal.Decimal `json:"closing_balance_eur"`
	Totals         Totals          `json:"totals"`
	Entries        []Entry         `json:"entries,omitempty"`
	Committed      bool            `json:"committed"`
}

// Net returns the record's revenue minus expenses.
func (r Record) Net() decimal.Decimal {
	return r.Totals.Net()
}

func (r Record) clone() Record {
	out := r
	if r.Entries != nil {
		out.Entries = append([]Entry(nil), r.Entries...)
	}
	return out
}

// LogValue implements slog.LogValuer for structured logging.
func (r Record) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("tick", r.Tick),
		slog.String("opening", r.OpeningBalance.StringFixed(2)),
		slog.String("closing", r.ClosingBalance.StringFixed(2)),
		slog.String("energy", r.Totals.Energy.StringFixed(2)),
		slog.String("energy_kwh", r.Totals.EnergyKWh.StringFixed(3)),
		slog.String("water_l", r.Totals.WaterL.StringFixed(2)),
		slog.String("maintenance", r.Totals.Maintenance.StringFixed(2)),
		slog.String("capex", r.Totals.Capex.StringFixed(2)),
		slog.String("other", r.Totals.OtherExpense.StringFixed(2)),
		slog.String("revenue", r.Totals.Revenue.StringFixed(2)),
		slog.String("net", r.Net().StringFixed(2)),
	)
}
