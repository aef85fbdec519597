package comparison

import (
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/fare"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/geo"
)

// OfferView is an offer as handed to the presentation layer.
type OfferView struct {
	fare.Offer
	DisplayTotal string `json:"display_total"`
	Cheapest     bool   `json:"cheapest"`
}

// View is everything the presentation layer needs to render one session.
type View struct {
	RunID           uint64           `json:"run_id"`
	Stage           Stage            `json:"stage"`
	Pickup          string           `json:"pickup"`
	Drop            string           `json:"drop"`
	DistanceKm      *float64         `json:"distance_km,omitempty"`
	DistanceDisplay string           `json:"distance_display,omitempty"`
	Path            []geo.Coordinate `json:"path"`
	Center          *geo.Coordinate  `json:"center,omitempty"`
	Offers          []OfferView      `json:"offers"`
	Cheapest        *OfferView       `json:"cheapest,omitempty"`
	Failure         *FailureKind     `json:"failure,omitempty"`
	Message         string           `json:"message,omitempty"`
}

// IsFailed returns true if the view reports a failed run.
func (v View) IsFailed() bool {
	return v.Stage == StageFailed
}

// View projects the state for presentation. The cheapest offer is derived
// from the current offers every time.
func (s State) View() View {
	v := View{
		RunID:   s.runID,
		Stage:   s.stage,
		Pickup:  s.pickup,
		Drop:    s.drop,
		Path:    []geo.Coordinate{},
		Offers:  []OfferView{},
		Message: s.Message(),
	}
	if s.failure != nil {
		kind := s.failure.Kind
		v.Failure = &kind
	}
	if s.route == nil {
		return v
	}

	distance := s.route.DistanceKm
	v.DistanceKm = &distance
	v.DistanceDisplay = geo.FormatKm(distance)
	v.Path = append(v.Path, s.route.Path...)
	center := s.route.Midpoint()
	v.Center = &center

	cheapest, ok := fare.FindCheapest(s.offers)
	for _, o := range s.offers {
		v.Offers = append(v.Offers, OfferView{
			Offer:        o,
			DisplayTotal: o.DisplayTotal(),
			Cheapest:     ok && o.IsCheapest(cheapest),
		})
	}
	if ok {
		v.Cheapest = &OfferView{
			Offer:        cheapest,
			DisplayTotal: cheapest.DisplayTotal(),
			Cheapest:     true,
		}
	}
	return v
}
