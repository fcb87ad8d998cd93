package supervisor

import (
	"context"
	"time"

	"github.com/cardano-foundation/node-supervisor/internal/telemetry"
)

// ControlAdapter implements broadcast.ControlHandlers over a Supervisor,
// supplying the background context the HTTP transport has no request
// lifetime to derive one from. Metrics is optional; when set, each
// control call's wall-clock duration is recorded against it.
type ControlAdapter struct {
	S       *Supervisor
	Metrics *telemetry.Telemetry
}

func (c ControlAdapter) observe(operation string, start time.Time) {
	if c.Metrics == nil {
		return
	}
	c.Metrics.ObserveDuration(context.Background(), operation, time.Since(start))
}

func (c ControlAdapter) Stop() error {
	start := time.Now()
	defer c.observe("stop", start)
	return c.S.Stop(context.Background())
}

func (c ControlAdapter) Kill() error {
	start := time.Now()
	defer c.observe("kill", start)
	return c.S.Kill(context.Background())
}

func (c ControlAdapter) Restart(forced bool) error {
	start := time.Now()
	defer c.observe("restart", start)
	return c.S.Restart(context.Background(), forced)
}
