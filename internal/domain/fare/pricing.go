package fare

import (
	"fmt"
	"math"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/geo"
)

// PriceTier is the static fare configuration for one ride-hailing provider.
type PriceTier struct {
	Service  string  `json:"service" mapstructure:"service"`
	BaseFare float64 `json:"base_fare" mapstructure:"base_fare"`
	PerKm    float64 `json:"per_km" mapstructure:"per_km"`
	Icon     string  `json:"icon" mapstructure:"icon"`
}

// Offer is a computed fare for one tier at a specific trip distance.
type Offer struct {
	PriceTier
	TotalFare float64 `json:"total_fare"`
}

// IsCheapest compares by value, so any offer tied with cheapest qualifies.
func (o Offer) IsCheapest(cheapest Offer) bool {
	return o.TotalFare == cheapest.TotalFare
}

// DisplayTotal renders the total fare with two decimals.
func (o Offer) DisplayTotal() string {
	return FormatAmount(o.TotalFare)
}

// PricingStrategy defines the interface for quoting every tier at a distance.
type PricingStrategy interface {
	// Quote returns one offer per configured tier, in tier order.
	Quote(distanceKm float64) ([]Offer, error)

	// Tiers returns the configured tiers.
	Tiers() []PriceTier
}

// TableStrategy prices trips from a fixed tier table.
type TableStrategy struct {
	tiers []PriceTier
}

// NewTableStrategy creates a TableStrategy after validating the tier table.
func NewTableStrategy(tiers []PriceTier) (*TableStrategy, error) {
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	copied := make([]PriceTier, len(tiers))
	copy(copied, tiers)
	return &TableStrategy{tiers: copied}, nil
}

// Tiers returns a copy of the configured tiers.
func (s *TableStrategy) Tiers() []PriceTier {
	out := make([]PriceTier, len(s.tiers))
	copy(out, s.tiers)
	return out
}

// Quote guards the calculator preconditions and computes offers.
func (s *TableStrategy) Quote(distanceKm float64) ([]Offer, error) {
	if math.IsNaN(distanceKm) || distanceKm <= 0 {
		return nil, domain.NewValidationError(fmt.Sprintf("distance must be positive, got %v", distanceKm))
	}
	if len(s.tiers) == 0 {
		return nil, domain.NewValidationError("no price tiers configured")
	}
	return ComputeOffers(distanceKm, s.tiers), nil
}

// ComputeOffers prices each tier at distanceKm, preserving tier order.
//
// Pricing formula:
//   - totalFare = baseFare + perKm * distanceKm
//
// Callers must pass a positive distance and a non-empty tier list.
func ComputeOffers(distanceKm float64, tiers []PriceTier) []Offer {
	offers := make([]Offer, len(tiers))
	for i, tier := range tiers {
		offers[i] = Offer{
			PriceTier: tier,
			TotalFare: tier.BaseFare + tier.PerKm*distanceKm,
		}
	}
	return offers
}

// FindCheapest returns the offer with the lowest total fare.
func FindCheapest(offers []Offer) (Offer, bool) {
	if len(offers) == 0 {
		return Offer{}, false
	}
	cheapest := offers[0]
	for _, o := range offers[1:] {
		if o.TotalFare < cheapest.TotalFare {
			cheapest = o
		}
	}
	return cheapest, true
}

// FormatAmount renders a currency amount with two decimals.
func FormatAmount(v float64) string {
	return geo.FormatFixed2(v)
}

// ValidateTiers checks a tier table loaded from configuration.
func ValidateTiers(tiers []PriceTier) error {
	if len(tiers) == 0 {
		return domain.NewValidationError("at least one price tier is required")
	}
	seen := make(map[string]struct{}, len(tiers))
	for i, t := range tiers {
		if t.Service == "" {
			return domain.NewValidationError(fmt.Sprintf("tier %d: service name is required", i))
		}
		if _, dup := seen[t.Service]; dup {
			return domain.NewValidationError(fmt.Sprintf("duplicate tier: %s", t.Service))
		}
		seen[t.Service] = struct{}{}
		if t.BaseFare < 0 || math.IsNaN(t.BaseFare) {
			return domain.NewValidationError(fmt.Sprintf("tier %s: base fare cannot be negative", t.Service))
		}
		if t.PerKm < 0 || math.IsNaN(t.PerKm) {
			return domain.NewValidationError(fmt.Sprintf("tier %s: per-km rate cannot be negative", t.Service))
		}
	}
	return nil
}
