package ledger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrices() Prices {
	return Prices{
		ElectricityPerKWh: 0.3,
		WaterPerL:         0.002,
		FertilizerN:       0.05,
		FertilizerP:       0.08,
		FertilizerK:       0.04,
	}
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCommitBalance(t *testing.T) {
	c := New(1000, testPrices(), Options{})
	require.NoError(t, c.StartTick(0))

	c.BookEnergy("z1", 10)           // 3.00
	c.BookWater("z1", 500)           // 1.00
	c.BookFertilizer("z1", 10, 0, 0) // 0.50
	c.BookMaintenance("z1", 2)
	c.BookCapex("z1", 100)
	c.BookOtherExpense("z1", 4)
	c.BookRevenue("z1", 50)

	rec, err := c.CommitTick()
	require.NoError(t, err)

	assert.True(t, rec.Committed)
	assert.True(t, rec.OpeningBalance.Equal(d("1000")))
	assert.True(t, rec.Totals.Energy.Equal(d("3")), "energy %s", rec.Totals.Energy)
	assert.True(t, rec.Totals.EnergyKWh.Equal(d("10")))
	assert.True(t, rec.Totals.WaterL.Equal(d("500")))
	assert.True(t, rec.Totals.OtherExpense.Equal(d("5.5")), "other %s", rec.Totals.OtherExpense)
	assert.True(t, rec.Totals.Expenses().Equal(d("110.5")))
	assert.True(t, rec.ClosingBalance.Equal(d("939.5")), "closing %s", rec.ClosingBalance)
	assert.True(t, c.Balance().Equal(rec.OpeningBalance.Add(rec.Totals.Revenue).Sub(rec.Totals.Expenses())))
}

func TestTotalsIdempotent(t *testing.T) {
	c := New(1000, testPrices(), Options{})
	require.NoError(t, c.StartTick(0))
	c.BookEnergy("z", 1.5)
	c.BookRevenue("z", 12)

	first := c.Totals()
	for i := 0; i < 5; i++ {
		assert.True(t, first.Equal(c.Totals()))
	}
	assert.True(t, c.Balance().Equal(d("1000")), "balance moves only on commit")
}

func TestNonPositiveBookingsDropped(t *testing.T) {
	c := New(1000, testPrices(), Options{Detailed: true})
	require.NoError(t, c.StartTick(0))
	c.BookRevenue("z", 0)
	c.BookRevenue("z", -10)
	c.BookCapex("z", -5)
	c.BookEnergy("z", 0)
	c.BookMaintenance("z", 1)

	rec, err := c.CommitTick()
	require.NoError(t, err)
	assert.Len(t, rec.Entries, 1)
	assert.True(t, rec.Totals.Revenue.IsZero())
	assert.True(t, rec.Totals.Capex.IsZero())
	assert.Equal(t, 4, c.Dropped())
	assert.True(t, rec.ClosingBalance.Equal(d("999")))
}

func TestSmallPositiveBookingsKept(t *testing.T) {
	c := New(1000, Prices{ElectricityPerKWh: 0, WaterPerL: 0.002}, Options{Detailed: true})
	require.NoError(t, c.StartTick(0))
	c.BookWater("z", 0.0002)
	c.BookEnergy("z", 5)

	rec, err := c.CommitTick()
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dropped())
	assert.Len(t, rec.Entries, 2)
	assert.True(t, rec.Totals.WaterL.Equal(d("0.0002")), "water %s", rec.Totals.WaterL)
	assert.True(t, rec.Totals.EnergyKWh.Equal(d("5")), "energy %s", rec.Totals.EnergyKWh)
	assert.True(t, rec.Totals.Energy.IsZero())
	assert.True(t, rec.Totals.OtherExpense.Equal(d("0.0000004")), "water cost %s", rec.Totals.OtherExpense)
	assert.True(t, rec.ClosingBalance.Equal(d("999.9999996")))
}

func TestSetupCapexSettlesImmediately(t *testing.T) {
	c := New(1000, testPrices(), Options{Detailed: true})

	c.BookCapex("zone-1/split-ac", 440)
	assert.True(t, c.Balance().Equal(d("560")))

	hist := c.History()
	require.Len(t, hist, 1)
	assert.Equal(t, SetupTick, hist[0].Tick)
	require.Len(t, hist[0].Entries, 1)
	assert.True(t, hist[0].Entries[0].Amount.Equal(d("440")))

	require.NoError(t, c.StartTick(0))
	opening, ok := c.OpeningBalance()
	require.True(t, ok)
	assert.True(t, opening.Equal(d("560")))
	assert.True(t, c.GrandTotals().Capex.Equal(d("440")))
}

func TestTickSequencing(t *testing.T) {
	c := New(0, testPrices(), Options{})

	_, err := c.CommitTick()
	assert.ErrorIs(t, err, ErrNoOpenTick)

	require.NoError(t, c.StartTick(0))
	assert.ErrorIs(t, c.StartTick(1), ErrTickOpen)
	_, err = c.CommitTick()
	require.NoError(t, err)

	_, err = c.CommitTick()
	assert.ErrorIs(t, err, ErrNoOpenTick)
	assert.ErrorIs(t, c.StartTick(0), ErrTickCommitted)
	assert.NoError(t, c.StartTick(1))
}

func TestCommittedRecordImmutable(t *testing.T) {
	c := New(100, testPrices(), Options{Detailed: true})
	require.NoError(t, c.StartTick(0))
	c.BookRevenue("z", 10)
	rec, err := c.CommitTick()
	require.NoError(t, err)

	rec.Entries[0].Amount = d("9999")
	rec.Totals.Revenue = d("9999")

	stored, ok := c.Record(0)
	require.True(t, ok)
	assert.True(t, stored.Totals.Revenue.Equal(d("10")))
	assert.True(t, stored.Entries[0].Amount.Equal(d("10")))

	// Later bookings land in the next tick, never in tick 0.
	require.NoError(t, c.StartTick(1))
	c.BookRevenue("z", 5)
	_, err = c.CommitTick()
	require.NoError(t, err)
	stored, _ = c.Record(0)
	assert.True(t, stored.Totals.Revenue.Equal(d("10")))
}

func TestConcurrentBookingOrderIndependent(t *testing.T) {
	run := func(parallel bool) Record {
		c := New(1000, testPrices(), Options{Detailed: true})
		require.NoError(t, c.StartTick(0))
		book := func(z int) {
			src := fmt.Sprintf("zone-%02d", z)
			for i := 0; i < 50; i++ {
				c.BookEnergy(src, 0.1*float64(i+z))
				c.BookWater(src, 0.37*float64(i))
				c.BookRevenue(src, 1.1)
			}
		}
		if parallel {
			var wg sync.WaitGroup
			for z := 0; z < 8; z++ {
				wg.Add(1)
				go func(z int) {
					defer wg.Done()
					book(z)
				}(z)
			}
			wg.Wait()
		} else {
			for z := 7; z >= 0; z-- {
				book(z)
			}
		}
		rec, err := c.CommitTick()
		require.NoError(t, err)
		return rec
	}

	a, b := run(false), run(true)
	assert.True(t, a.Totals.Equal(b.Totals))
	assert.True(t, a.ClosingBalance.Equal(b.ClosingBalance))
	require.Equal(t, len(a.Entries), len(b.Entries))
	for i := range a.Entries {
		assert.Equal(t, a.Entries[i].Source, b.Entries[i].Source)
		assert.True(t, a.Entries[i].Amount.Equal(b.Entries[i].Amount))
	}
}

func TestGrandTotalsAccumulate(t *testing.T) {
	c := New(0, testPrices(), Options{})
	for tick := 0; tick < 3; tick++ {
		require.NoError(t, c.StartTick(tick))
		c.BookRevenue("z", 10)
		c.BookMaintenance("z", 1)
		_, err := c.CommitTick()
		require.NoError(t, err)
	}
	g := c.GrandTotals()
	assert.True(t, g.Revenue.Equal(d("30")))
	assert.True(t, g.Maintenance.Equal(d("3")))
	assert.True(t, c.Balance().Equal(d("27")))
	assert.Len(t, c.History(), 3)
}
