// Package agent is the control-plane side of a dataplane instance's
// configuration generations (spec §3/§4.4, C9): it owns the single
// config.Config writer handle and turns a desired module/pipeline/device
// state into a sequence of published generations, the way
// controlplane/internal/gateway drives modules/*/controlplane updates in
// the teacher.
package agent

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/sakateka/yanet2-sub001/internal/config"
)

// DesiredState is the full configuration an agent wants published as the
// next generation chain: modules, then the pipelines that reference them,
// then the devices that route to those pipelines (spec §4.4's publish
// order: modules before pipelines before devices).
type DesiredState struct {
	Modules   []config.Module
	Pipelines []config.Pipeline
	Devices   []config.DeviceBinding
}

// Agent is the single writer publishing generations for one dataplane
// instance's config.Config.
type Agent struct {
	id  string
	cfg *config.Config
	log *zap.SugaredLogger
}

// New constructs an Agent bound to an instance's Config. id identifies
// the agent in log lines and error messages (spec §3 "AgentID").
func New(id string, cfg *config.Config, log *zap.SugaredLogger) *Agent {
	return &Agent{id: id, cfg: cfg, log: log}
}

// Publish applies state's three registries in dependency order. Each step
// runs through backoff.Retry, but every error a step can return (config's
// validation errors, such as an unknown module/pipeline reference, and
// ctx expiry) is marked permanent, so a failed step is not retried and
// aborts the whole publish immediately.
func (a *Agent) Publish(ctx context.Context, state DesiredState) (*config.Generation, error) {
	if _, err := a.publishStep(ctx, "modules", func() (*config.Generation, error) {
		return a.cfg.UpdateModules(state.Modules)
	}); err != nil {
		return nil, err
	}

	if _, err := a.publishStep(ctx, "pipelines", func() (*config.Generation, error) {
		return a.cfg.UpdatePipelines(state.Pipelines)
	}); err != nil {
		return nil, err
	}

	gen, err := a.publishStep(ctx, "devices", func() (*config.Generation, error) {
		return a.cfg.UpdateDevices(state.Devices)
	})
	if err != nil {
		return nil, err
	}

	a.log.Infow("published configuration generation", "agent", a.id, "gen", gen.Gen)
	return gen, nil
}

// publishStep runs one Update* call under ctx; any error it gets is
// returned as permanent, so the call is made once. The call itself blocks on config.Config's quiescence barrier
// (every worker must observe the new generation), so it runs in its own
// goroutine and publishStep gives up on ctx expiry rather than waiting on
// a worker that may never catch up; the abandoned goroutine's Update call
// is left to finish on its own, since config.Config has no mechanism to
// cancel a publish already in flight.
func (a *Agent) publishStep(ctx context.Context, step string, fn func() (*config.Generation, error)) (*config.Generation, error) {
	gen, err := backoff.Retry(ctx, func() (*config.Generation, error) {
		type result struct {
			gen *config.Generation
			err error
		}
		done := make(chan result, 1)
		go func() {
			g, err := fn()
			done <- result{g, err}
		}()

		select {
		case <-ctx.Done():
			return nil, backoff.Permanent(fmt.Errorf("agent %s: publish %s: %w", a.id, step, ctx.Err()))
		case r := <-done:
			if r.err != nil {
				return nil, backoff.Permanent(fmt.Errorf("agent %s: publish %s: %w", a.id, step, r.err))
			}
			return r.gen, nil
		}
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))

	if err != nil {
		a.log.Errorw("publish step failed", "agent", a.id, "step", step, zap.Error(err))
		return nil, err
	}
	return gen, nil
}
