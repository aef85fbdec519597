package fare

// DefaultTiers returns the built-in provider table.
func DefaultTiers() []PriceTier {
	return []PriceTier{
		{Service: "Uber", BaseFare: 50, PerKm: 10, Icon: "🚗"},
		{Service: "Ola", BaseFare: 45, PerKm: 11, Icon: "🚕"},
		{Service: "Rapido", BaseFare: 30, PerKm: 13, Icon: "🛵"},
	}
}
