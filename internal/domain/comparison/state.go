package comparison

import (
	"fmt"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/fare"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/geo"
)

// State is the per-session pipeline state. Every method returns a new value;
// a State is never modified in place once handed out.
type State struct {
	runID   uint64
	stage   Stage
	pickup  string
	drop    string
	route   *geo.RouteResult
	offers  []fare.Offer
	failure *Failure
	notice  string
}

// NewIdleState returns the state of a session that has not compared anything yet.
func NewIdleState() State {
	return State{stage: StageIdle}
}

// Begin discards everything from earlier runs and enters validating for runID.
func (s State) Begin(runID uint64, pickup, drop string) State {
	return State{
		runID:  runID,
		stage:  StageValidating,
		pickup: pickup,
		drop:   drop,
	}
}

// Advance moves the run to the next working stage.
func (s State) Advance(to Stage) (State, error) {
	if to == StageFailed || to == StageDone {
		return s, fmt.Errorf("use Fail or Complete to enter %s", to)
	}
	if !s.stage.CanTransitionTo(to) {
		return s, domain.NewValidationError(fmt.Sprintf("cannot transition comparison from %s to %s", s.stage, to))
	}
	next := s
	next.stage = to
	return next, nil
}

// Fail moves the run to failed with the given failure kind.
func (s State) Fail(kind FailureKind) (State, error) {
	if !s.stage.CanTransitionTo(StageFailed) {
		return s, domain.NewValidationError(fmt.Sprintf("cannot fail comparison from %s", s.stage))
	}
	next := s
	next.stage = StageFailed
	next.route = nil
	next.offers = nil
	next.failure = NewFailure(kind)
	return next, nil
}

// Complete publishes the route and offers. Offers are only accepted together with a valid route.
func (s State) Complete(route geo.RouteResult, offers []fare.Offer) (State, error) {
	if !s.stage.CanTransitionTo(StageDone) {
		return s, domain.NewValidationError(fmt.Sprintf("cannot complete comparison from %s", s.stage))
	}
	if route.DistanceKm <= 0 || len(route.Path) < 2 {
		return s, domain.NewValidationError("offers require a resolved route")
	}
	if len(offers) == 0 {
		return s, domain.NewValidationError("at least one offer is required")
	}

	copied := make([]fare.Offer, len(offers))
	copy(copied, offers)

	next := s
	next.stage = StageDone
	next.route = &route
	next.offers = copied
	next.failure = nil
	return next, nil
}

// WithPickupFromLocation records the outcome of a current-location lookup.
// A nil failure means address replaces the pickup.
func (s State) WithPickupFromLocation(address string, failure *Failure) State {
	next := s
	if failure != nil {
		next.notice = failure.Message
		return next
	}
	next.pickup = address
	next.notice = MessageLocationResolved
	return next
}

// RunID returns the identifier of the run that produced this state.
func (s State) RunID() uint64 { return s.runID }

// Stage returns the current stage.
func (s State) Stage() Stage { return s.stage }

// Pickup returns the pickup address.
func (s State) Pickup() string { return s.pickup }

// Drop returns the drop address.
func (s State) Drop() string { return s.drop }

// Route returns the resolved route, if any.
func (s State) Route() *geo.RouteResult { return s.route }

// Failure returns the failure of a failed run.
func (s State) Failure() *Failure { return s.failure }

// Offers returns a copy of the priced offers.
func (s State) Offers() []fare.Offer {
	out := make([]fare.Offer, len(s.offers))
	copy(out, s.offers)
	return out
}

// Message returns the text the widget should show, if any.
func (s State) Message() string {
	if s.failure != nil {
		return s.failure.Message
	}
	return s.notice
}
