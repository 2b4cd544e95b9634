package agents

import (
	"context"
	"time"

	"github.com/generativebots/swarm/internal/core"
)

// DefaultProxyTimeout bounds an external-agent callback; a call that
// overruns it becomes a PASS.
const DefaultProxyTimeout = 5 * time.Second

// DefaultQuarantineThreshold is the number of consecutive proxy failures
// (timeout or malformed response) at which the Orchestrator should
// quarantine the proxy for the remainder of the run.
const DefaultQuarantineThreshold = 3

// Callback is the out-of-process decision function an external-proxy agent
// delegates to.
type Callback func(ctx context.Context, obs Observation) (core.Action, error)

// ExternalProxy delegates Act to Callback under a hard timeout. On timeout
// or error it returns PASS. This is the only suspension point in the
// kernel: the proxy returns a value, never a future that escapes the step.
type ExternalProxy struct {
	Timeout  time.Duration
	Callback Callback

	consecutiveFailures int
}

func NewExternalProxy(cb Callback, timeout time.Duration) *ExternalProxy {
	if timeout <= 0 {
		timeout = DefaultProxyTimeout
	}
	return &ExternalProxy{Timeout: timeout, Callback: cb}
}

func (p *ExternalProxy) Act(obs Observation) core.Action {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	type result struct {
		action core.Action
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		a, err := p.Callback(ctx, obs)
		ch <- result{a, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			p.consecutiveFailures++
			return core.Pass(obs.Self.ID)
		}
		p.consecutiveFailures = 0
		return r.action
	case <-ctx.Done():
		p.consecutiveFailures++
		return core.Pass(obs.Self.ID)
	}
}

// ShouldQuarantine reports whether consecutive failures have reached the
// configured threshold, signaling the Orchestrator to quarantine this
// proxy for the remainder of the run.
func (p *ExternalProxy) ShouldQuarantine(threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultQuarantineThreshold
	}
	return p.consecutiveFailures >= threshold
}

// Accept does not consult Callback: it accepts when the proposal's
// estimated p is at least 0.4, evaluated under the same Timeout as Act.
// A timeout counts as a consecutive failure and defaults to rejection.
func (p *ExternalProxy) Accept(obs Observation, proposed core.SoftInteraction) bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	type result struct {
		accept bool
	}
	ch := make(chan result, 1)
	go func() {
		estimated := proposed.P >= 0.4
		ch <- result{estimated}
	}()

	select {
	case r := <-ch:
		return r.accept
	case <-ctx.Done():
		p.consecutiveFailures++
		return false
	}
}

func (p *ExternalProxy) OnResult(res Result) {
	if res.Failure != core.FailureNone {
		p.consecutiveFailures++
		return
	}
	p.consecutiveFailures = 0
}
