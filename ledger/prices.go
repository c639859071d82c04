package ledger

import "github.com/pthm-cable/canopy/config"

// PricesFromConfig returns the economics prices scaled by the active
// difficulty profile.
func PricesFromConfig(cfg *config.Config) Prices {
	e := cfg.Economics
	d := cfg.Derived.Difficulty
	return Prices{
		ElectricityPerKWh: e.ElectricityPrice * d.EnergyPriceMultiplier,
		WaterPerL:         e.WaterPrice * d.WaterPriceMultiplier,
		FertilizerN:       e.FertilizerPrice.N,
		FertilizerP:       e.FertilizerPrice.P,
		FertilizerK:       e.FertilizerPrice.K,
	}
}
