package envstate

import (
	"log"
	"sync"

	"github.com/generativebots/swarm/internal/core"
)

// RateLimiter enforces the per-archetype, per-action quota: quotas are
// looked up by (archetype, action), counters are kept per agent and reset
// each epoch. Windows are keyed by epoch index rather than wall-clock
// time, since no kernel behavior may depend on real time.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[limitKey]core.RateLimitSpec
	windows map[agentKey]*epochWindow
	logger  *log.Logger
}

type limitKey struct {
	archetype core.Archetype
	action    core.ActionKind
}

type agentKey struct {
	agentID string
	action  core.ActionKind
}

type epochWindow struct {
	epoch int
	count int
}

// NewRateLimiter builds a limiter from the scenario's configured specs.
// An (archetype, action) pair with no matching spec is unlimited.
func NewRateLimiter(specs []core.RateLimitSpec) *RateLimiter {
	limits := make(map[limitKey]core.RateLimitSpec, len(specs))
	for _, s := range specs {
		limits[limitKey{s.Archetype, s.Action}] = s
	}
	return &RateLimiter{
		limits:  limits,
		windows: make(map[agentKey]*epochWindow),
		logger:  log.New(log.Writer(), "[RATELIMIT] ", log.LstdFlags),
	}
}

// Allow reports whether agentID (of the given archetype) may emit another
// action of this kind during this epoch, and increments its counter as a
// side effect when allowed. Actions with no configured limit always pass.
func (rl *RateLimiter) Allow(agentID string, archetype core.Archetype, action core.ActionKind, epoch int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	spec, limited := rl.limits[limitKey{archetype, action}]
	if !limited || spec.MaxPerEpoch <= 0 {
		return true
	}

	key := agentKey{agentID, action}
	w, ok := rl.windows[key]
	if !ok || w.epoch != epoch {
		w = &epochWindow{epoch: epoch}
		rl.windows[key] = w
	}

	burst := spec.BurstPerEpoch
	if burst < spec.MaxPerEpoch {
		burst = spec.MaxPerEpoch
	}

	if w.count >= burst {
		rl.logger.Printf("rate limit exceeded: agent=%s action=%s epoch=%d count=%d burst=%d",
			agentID, action, epoch, w.count, burst)
		return false
	}

	w.count++
	return true
}
