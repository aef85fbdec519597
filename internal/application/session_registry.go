package application

import (
	"context"
	"sync"
	"time"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/domain"
	"github.com/Kilat-Pet-Delivery/service-fare/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionRegistry keeps one Comparator per widget session, in memory only.
type SessionRegistry struct {
	service *ComparisonService
	idleTTL time.Duration
	metrics *observability.Collector
	logger  *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Comparator
}

// NewSessionRegistry creates a new SessionRegistry. A non-positive idleTTL disables expiry.
func NewSessionRegistry(service *ComparisonService, idleTTL time.Duration, metrics *observability.Collector, logger *zap.Logger) *SessionRegistry {
	return &SessionRegistry{
		service:  service,
		idleTTL:  idleTTL,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[uuid.UUID]*Comparator),
	}
}

// Service returns the comparison service sessions are built from.
func (r *SessionRegistry) Service() *ComparisonService {
	return r.service
}

// Create starts a new session.
func (r *SessionRegistry) Create() *Comparator {
	c := r.service.NewComparator(uuid.New())

	r.mu.Lock()
	r.sessions[c.ID()] = c
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	r.logger.Debug("session created", zap.String("session_id", c.ID().String()))
	return c
}

// Get returns the comparator for id.
func (r *SessionRegistry) Get(id uuid.UUID) (*Comparator, error) {
	r.mu.RLock()
	c, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NewNotFoundError("Session", id.String())
	}
	return c, nil
}

// Delete ends a session and drops any run still in flight.
func (r *SessionRegistry) Delete(id uuid.UUID) error {
	r.mu.Lock()
	c, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return domain.NewNotFoundError("Session", id.String())
	}
	c.close()
	r.metrics.SetActiveSessions(n)
	return nil
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many were removed.
func (r *SessionRegistry) Sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}

	var expired []*Comparator
	r.mu.Lock()
	for id, c := range r.sessions {
		if now.Sub(c.idleSince()) > r.idleTTL {
			delete(r.sessions, id)
			expired = append(expired, c)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, c := range expired {
		c.close()
	}
	if len(expired) > 0 {
		r.metrics.SetActiveSessions(n)
		r.logger.Info("expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

const minSweepInterval = time.Second

// Run sweeps idle sessions until ctx is cancelled.
func (r *SessionRegistry) Run(ctx context.Context) {
	if r.idleTTL <= 0 {
		return
	}
	interval := r.idleTTL / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}
