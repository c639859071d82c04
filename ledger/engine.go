// Package ledger implements the tick-scoped cost engine that turns physical
// consumption and harvests into money.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoOpenTick is returned by CommitTick when StartTick was not called.
	ErrNoOpenTick = errors.New("ledger: no open tick")
	// ErrTickOpen is returned by StartTick while another tick is open.
	ErrTickOpen = errors.New("ledger: tick already open")
	// ErrTickCommitted is returned when a tick index has already been sealed.
	ErrTickCommitted = errors.New("ledger: tick already committed")
)

// Prices converts physical quantities to euros.
type Prices struct {
	ElectricityPerKWh float64
	WaterPerL         float64
	FertilizerN       float64 // €/g
	FertilizerP       float64
	FertilizerK       float64
}

// Options configures a CostEngine.
type Options struct {
	// Detailed keeps itemized entries in every record.
	Detailed bool
	Logger   *slog.Logger
}

// CostEngine is the ledger. All methods are safe for concurrent use; sums
// are exact decimals so booking order does not change any total.
type CostEngine struct {
	mu       sync.Mutex
	prices   Prices
	detailed bool
	logger   *slog.Logger

	balance    decimal.Decimal
	grand      Totals
	current    *Record
	history    []Record
	byTick     map[int]int
	lastTick   int
	seq        int
	dropped    int
	hasStarted bool
}

// New creates a ledger holding initialCapital.
func New(initialCapital float64, prices Prices, opts Options) *CostEngine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CostEngine{
		prices:   prices,
		detailed: opts.Detailed,
		logger:   logger,
		balance:  decimal.NewFromFloat(initialCapital),
		byTick:   make(map[int]int),
	}
}

// Prices returns the configured price set.
func (c *CostEngine) Prices() Prices {
	return c.prices
}

// StartTick freezes the opening balance and opens a zeroed record.
func (c *CostEngine) StartTick(tick int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return fmt.Errorf("%w: %d", ErrTickOpen, c.current.Tick)
	}
	if _, ok := c.byTick[tick]; ok || (c.hasStarted && tick <= c.lastTick) {
		return fmt.Errorf("%w: %d", ErrTickCommitted, tick)
	}
	c.current = &Record{Tick: tick, OpeningBalance: c.balance}
	return nil
}

// CommitTick seals the open record: closing = opening + revenue − expenses.
// Grand totals and the balance are updated and the record is returned.
func (c *CostEngine) CommitTick() (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Record{}, ErrNoOpenTick
	}
	rec := c.current
	c.current = nil
	c.seal(rec)
	c.hasStarted = true
	c.lastTick = rec.Tick
	return rec.clone(), nil
}

// seal closes rec into the history. Caller holds mu.
func (c *CostEngine) seal(rec *Record) {
	rec.ClosingBalance = rec.OpeningBalance.Add(rec.Totals.Net())
	rec.Committed = true
	if len(rec.Entries) > 0 {
		sort.SliceStable(rec.Entries, func(i, j int) bool {
			if rec.Entries[i].Source != rec.Entries[j].Source {
				return rec.Entries[i].Source < rec.Entries[j].Source
			}
			return rec.Entries[i].Seq < rec.Entries[j].Seq
		})
		for i := range rec.Entries {
			rec.Entries[i].Seq = i
		}
	}
	c.balance = rec.ClosingBalance
	c.grand = c.grand.Add(rec.Totals)
	if rec.Tick != SetupTick {
		c.byTick[rec.Tick] = len(c.history)
	}
	c.history = append(c.history, *rec)
}

// book records an entry. A booking whose magnitude (the kWh, liters, grams
// or euros the caller passed) is not positive is dropped: the ledger has no
// refunds or reversals. The euro amount is kept exact, so a positive
// magnitude at a zero price still records its quantity. Outside an open
// tick the entry settles at once into a sealed setup record.
func (c *CostEngine) book(cat Category, source string, magnitude float64, amount, quantity decimal.Decimal, unit string) {
	if !(magnitude > 0) {
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		c.logger.Debug("dropped non-positive booking", "category", cat, "source", source, "magnitude", magnitude)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e := Entry{Category: cat, Amount: amount, Quantity: quantity, Unit: unit, Source: source, Seq: c.seq}
	c.seq++

	if c.current == nil {
		rec := &Record{Tick: SetupTick, OpeningBalance: c.balance}
		e.Tick = SetupTick
		rec.Totals.apply(e)
		if c.detailed {
			rec.Entries = append(rec.Entries, e)
		}
		c.seal(rec)
		return
	}

	e.Tick = c.current.Tick
	c.current.Totals.apply(e)
	if c.detailed {
		c.current.Entries = append(c.current.Entries, e)
	}
}

// BookEnergy books kWh at the electricity price.
func (c *CostEngine) BookEnergy(source string, kWh float64) {
	q := decimal.NewFromFloat(kWh)
	c.book(CategoryEnergy, source, kWh, q.Mul(decimal.NewFromFloat(c.prices.ElectricityPerKWh)), q, "kWh")
}

// BookWater books liters at the water price.
func (c *CostEngine) BookWater(source string, liters float64) {
	q := decimal.NewFromFloat(liters)
	c.book(CategoryWater, source, liters, q.Mul(decimal.NewFromFloat(c.prices.WaterPerL)), q, "L")
}

// BookFertilizer books grams of N, P and K at their prices.
func (c *CostEngine) BookFertilizer(source string, n, p, k float64) {
	n, p, k = max(0, n), max(0, p), max(0, k)
	cost := decimal.NewFromFloat(n).Mul(decimal.NewFromFloat(c.prices.FertilizerN)).
		Add(decimal.NewFromFloat(p).Mul(decimal.NewFromFloat(c.prices.FertilizerP))).
		Add(decimal.NewFromFloat(k).Mul(decimal.NewFromFloat(c.prices.FertilizerK)))
	c.book(CategoryFertilizer, source, n+p+k, cost, decimal.NewFromFloat(n+p+k), "g")
}

// BookMaintenance books a maintenance amount in euros.
func (c *CostEngine) BookMaintenance(source string, eur float64) {
	c.book(CategoryMaintenance, source, eur, decimal.NewFromFloat(eur), decimal.Zero, "")
}

// BookCapex books a capital expenditure in euros.
func (c *CostEngine) BookCapex(source string, eur float64) {
	c.book(CategoryCapex, source, eur, decimal.NewFromFloat(eur), decimal.Zero, "")
}

// BookOtherExpense books a miscellaneous expense in euros.
func (c *CostEngine) BookOtherExpense(source string, eur float64) {
	c.book(CategoryOtherExpense, source, eur, decimal.NewFromFloat(eur), decimal.Zero, "")
}

// BookRevenue books income in euros.
func (c *CostEngine) BookRevenue(source string, eur float64) {
	c.book(CategoryRevenue, source, eur, decimal.NewFromFloat(eur), decimal.Zero, "")
}

// Totals returns a snapshot of the open tick's totals, zero when no tick
// is open. Repeated calls without a commit return equal snapshots.
func (c *CostEngine) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Totals{}
	}
	return c.current.Totals
}

// GrandTotals returns lifetime totals over every sealed record.
func (c *CostEngine) GrandTotals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grand
}

// Balance returns the balance after the last sealed record.
func (c *CostEngine) Balance() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance
}

// OpeningBalance returns the opening balance of the open tick.
func (c *CostEngine) OpeningBalance() (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return decimal.Zero, false
	}
	return c.current.OpeningBalance, true
}

// Record returns the committed record of tick.
func (c *CostEngine) Record(tick int) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byTick[tick]
	if !ok {
		return Record{}, false
	}
	return c.history[i].clone(), true
}

// History returns every sealed record, setup records included, in order.
func (c *CostEngine) History() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.history))
	for i, r := range c.history {
		out[i] = r.clone()
	}
	return out
}

// Dropped returns how many non-positive bookings were discarded.
func (c *CostEngine) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
