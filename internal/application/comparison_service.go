package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/comparison"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain/fare"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/geocoding"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/location"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/observability"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/routing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSuperseded is returned to a run whose results were dropped because a newer run started.
	ErrSuperseded = domain.NewConflictError("comparison superseded by a newer request")

	// ErrComparisonInFlight rejects a location update while a run owns the session state.
	ErrComparisonInFlight = domain.NewConflictError("a comparison is in progress for this session")
)

// CompareRequest holds the two addresses to compare fares for.
type CompareRequest struct {
	Pickup string `json:"pickup"`
	Drop   string `json:"drop"`
}

// LocationRequest carries the position the browser obtained, if any.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// LocationResult is the outcome of filling the pickup from the device position.
type LocationResult struct {
	Pickup  string                  `json:"pickup"`
	Failure *comparison.FailureKind `json:"failure,omitempty"`
	Message string                  `json:"message"`
}

// Publisher receives the final view of every run that was not superseded.
type Publisher interface {
	Publish(ctx context.Context, sessionID uuid.UUID, view comparison.View) error
}

// ComparisonService holds the collaborators shared by every session's comparator.
type ComparisonService struct {
	geocoder   geocoding.Geocoder
	router     routing.Router
	pricing    fare.PricingStrategy
	publishers []Publisher
	metrics    *observability.Collector
	logger     *zap.Logger
	now        func() time.Time
}

// NewComparisonService creates a new ComparisonService.
func NewComparisonService(
	geocoder geocoding.Geocoder,
	router routing.Router,
	pricing fare.PricingStrategy,
	publishers []Publisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *ComparisonService {
	return &ComparisonService{
		geocoder:   geocoder,
		router:     router,
		pricing:    pricing,
		publishers: publishers,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Tiers returns the provider table offers are computed from.
func (s *ComparisonService) Tiers() []fare.PriceTier {
	return s.pricing.Tiers()
}

// NewComparator creates the comparator that owns one session's pipeline state.
func (s *ComparisonService) NewComparator(sessionID uuid.UUID) *Comparator {
	return &Comparator{
		id:         sessionID,
		svc:        s,
		logger:     s.logger.With(zap.String("session_id", sessionID.String())),
		state:      comparison.NewIdleState(),
		lastActive: s.now(),
	}
}

// Comparator runs the fare comparison pipeline for one session.
//
// Every run is tagged with a monotonically increasing run ID. A run may only
// replace the session state while its ID is the latest one; a newer Submit
// cancels the older run and anything it produces afterwards is dropped.
// Final states are committed and published under publishMu, so publishers
// see runs in commit order and never a stale run after a newer one.
type Comparator struct {
	id     uuid.UUID
	svc    *ComparisonService
	logger *zap.Logger

	publishMu sync.Mutex

	mu         sync.Mutex
	latestRun  uint64
	cancelRun  context.CancelFunc
	state      comparison.State
	lastActive time.Time
}

// ID returns the session identifier.
func (c *Comparator) ID() uuid.UUID {
	return c.id
}

// Snapshot returns the current view of the session.
func (c *Comparator) Snapshot() comparison.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = c.svc.now()
	return c.state.View()
}

// Submit runs one comparison. Failures are reported in the returned view, not as
// errors; the error is non-nil only if the run was superseded (ErrSuperseded).
func (c *Comparator) Submit(ctx context.Context, req CompareRequest) (comparison.View, error) {
	st, runCtx, release := c.begin(ctx, req)
	defer release()

	log := c.logger.With(zap.Uint64("run_id", st.RunID()))
	log.Info("comparison started")

	// Validating
	pickup := strings.TrimSpace(req.Pickup)
	drop := strings.TrimSpace(req.Drop)
	if pickup == "" || drop == "" {
		return c.fail(ctx, st, comparison.FailureMissingInput)
	}

	// Geocode pickup
	st, ok, err := c.advance(st, comparison.StageGeocodingPickup)
	if err != nil || !ok {
		return c.abandoned(st, err)
	}
	pickupCoord, err := c.svc.geocoder.Resolve(runCtx, pickup)
	if err != nil {
		logStepFailure(runCtx, log, "pickup geocoding failed", err)
		return c.fail(ctx, st, geocodingFailure(err, comparison.FailureInvalidPickupAddress))
	}

	// Geocode drop, only once the pickup is known
	st, ok, err = c.advance(st, comparison.StageGeocodingDrop)
	if err != nil || !ok {
		return c.abandoned(st, err)
	}
	dropCoord, err := c.svc.geocoder.Resolve(runCtx, drop)
	if err != nil {
		logStepFailure(runCtx, log, "drop geocoding failed", err)
		return c.fail(ctx, st, geocodingFailure(err, comparison.FailureInvalidDropAddress))
	}

	// Route
	st, ok, err = c.advance(st, comparison.StageRouting)
	if err != nil || !ok {
		return c.abandoned(st, err)
	}
	route, err := c.svc.router.Route(runCtx, pickupCoord, dropCoord)
	if err != nil {
		logStepFailure(runCtx, log, "routing failed", err)
		return c.fail(ctx, st, comparison.FailureRoutingError)
	}

	// Price
	st, ok, err = c.advance(st, comparison.StagePricing)
	if err != nil || !ok {
		return c.abandoned(st, err)
	}
	offers, err := c.svc.pricing.Quote(route.DistanceKm)
	if err != nil {
		log.Error("pricing failed", zap.Float64("distance_km", route.DistanceKm), zap.Error(err))
		return c.fail(ctx, st, comparison.FailureRoutingError)
	}

	done, err := st.Complete(route, offers)
	if err != nil {
		return comparison.View{}, fmt.Errorf("failed to complete comparison: %w", err)
	}
	return c.finish(ctx, done)
}

// ResolveCurrentLocation fills the session's pickup from the device position.
// An unavailable device short-circuits without any upstream call. While a
// comparison is running it returns ErrComparisonInFlight and changes nothing.
func (c *Comparator) ResolveCurrentLocation(ctx context.Context, locator location.Locator) (LocationResult, error) {
	if c.inFlight() {
		return LocationResult{}, ErrComparisonInFlight
	}

	coord, err := locator.Locate(ctx)
	if err != nil {
		c.logger.Info("device location unavailable", zap.Error(err))
		return c.applyLocation("", comparison.NewFailure(comparison.FailureLocationUnavailable))
	}

	address, err := c.svc.geocoder.Reverse(ctx, coord)
	if err != nil {
		c.logger.Warn("reverse geocoding failed",
			zap.String("coordinate", coord.String()),
			zap.Error(err),
		)
		return c.applyLocation("", comparison.NewFailure(comparison.FailureLocationLookup))
	}
	return c.applyLocation(address, nil)
}

func (c *Comparator) inFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Stage().IsInFlight()
}

// idleSince returns when the session was last used.
func (c *Comparator) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// close cancels any in-flight run.
func (c *Comparator) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
	c.latestRun++
}

func (c *Comparator) begin(ctx context.Context, req CompareRequest) (comparison.State, context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelRun != nil {
		c.cancelRun()
	}
	c.latestRun++
	c.cancelRun = cancel
	c.lastActive = c.svc.now()
	c.state = c.state.Begin(c.latestRun, req.Pickup, req.Drop)

	return c.state, runCtx, cancel
}

func (c *Comparator) commit(st comparison.State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st.RunID() != c.latestRun {
		return false
	}
	c.state = st
	c.lastActive = c.svc.now()
	return true
}

func (c *Comparator) advance(st comparison.State, to comparison.Stage) (comparison.State, bool, error) {
	next, err := st.Advance(to)
	if err != nil {
		return st, false, err
	}
	return next, c.commit(next), nil
}

func (c *Comparator) fail(ctx context.Context, st comparison.State, kind comparison.FailureKind) (comparison.View, error) {
	failed, err := st.Fail(kind)
	if err != nil {
		return comparison.View{}, fmt.Errorf("failed to record %s: %w", kind, err)
	}
	return c.finish(ctx, failed)
}

func (c *Comparator) finish(ctx context.Context, st comparison.State) (comparison.View, error) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	if !c.commit(st) {
		return c.abandoned(st, nil)
	}

	view := st.View()
	outcome := string(comparison.StageDone)
	if view.Failure != nil {
		outcome = view.Failure.String()
	}
	c.svc.metrics.IncComparison(outcome)
	c.logger.Info("comparison finished",
		zap.Uint64("run_id", st.RunID()),
		zap.String("outcome", outcome),
	)

	for _, p := range c.svc.publishers {
		if err := p.Publish(ctx, c.id, view); err != nil {
			c.logger.Error("failed to publish comparison",
				zap.Uint64("run_id", st.RunID()),
				zap.Error(err),
			)
		}
	}
	return view, nil
}

func (c *Comparator) abandoned(st comparison.State, err error) (comparison.View, error) {
	if err != nil {
		return comparison.View{}, fmt.Errorf("comparison state error: %w", err)
	}
	c.svc.metrics.IncStaleResult()
	c.logger.Info("dropping superseded comparison result",
		zap.Uint64("run_id", st.RunID()),
		zap.String("stage", st.Stage().String()),
	)
	return comparison.View{}, ErrSuperseded
}

func (c *Comparator) applyLocation(address string, failure *comparison.Failure) (LocationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Stage().IsInFlight() {
		return LocationResult{}, ErrComparisonInFlight
	}
	c.state = c.state.WithPickupFromLocation(address, failure)
	c.lastActive = c.svc.now()

	result := LocationResult{Pickup: c.state.Pickup(), Message: c.state.Message()}
	if failure != nil {
		kind := failure.Kind
		result.Failure = &kind
	}
	return result, nil
}

// logStepFailure keeps failures of cancelled runs out of the warning log.
func logStepFailure(runCtx context.Context, log *zap.Logger, msg string, err error) {
	if runCtx.Err() != nil {
		log.Debug(msg, zap.Error(err))
		return
	}
	log.Warn(msg, zap.Error(err))
}

// geocodingFailure maps a geocoder error to the address-specific or generic failure.
func geocodingFailure(err error, notFound comparison.FailureKind) comparison.FailureKind {
	switch {
	case errors.Is(err, geocoding.ErrNotFound), errors.Is(err, geocoding.ErrEmptyAddress):
		return notFound
	default:
		return comparison.FailureTransportError
	}
}
