package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/insaansher/sherpos-terminal/internal/connectivity"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
)

// CacheRefresher freshens the local product cache once the backend is
// reachable again.
type CacheRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

type ReconnectParams struct {
	Monitor   *connectivity.Monitor
	Engine    *Engine
	Refresher CacheRefresher
	Logger    *logger.Logger
	Timeout   time.Duration
}

// WireReconnect subscribes the drain engine to the monitor's offline-to-online
// edge. Reconnect is the sole automatic sync trigger; it also freshens the
// product cache since the terminal may have been selling blind. The drain runs
// off the notifying goroutine so a slow backend never blocks the monitor, and
// it is bounded by Timeout under the given base context.
func WireReconnect(ctx context.Context, params ReconnectParams) error {
	if params.Monitor == nil {
		return errors.New("monitor is required")
	}
	if params.Engine == nil {
		return errors.New("engine is required")
	}
	if params.Logger == nil {
		return errors.New("logger is required")
	}
	if params.Timeout <= 0 {
		params.Timeout = 5 * time.Minute
	}

	params.Monitor.Subscribe(func(state connectivity.State) {
		if state != connectivity.StateOnline {
			return
		}
		go func() {
			drainCtx, cancel := context.WithTimeout(ctx, params.Timeout)
			defer cancel()
			if _, err := params.Engine.Drain(drainCtx, DrainOptions{}); err != nil &&
				!errors.Is(err, ErrDrainInProgress) {
				params.Logger.Error(drainCtx, "reconnect drain failed", err)
			}
			if params.Refresher == nil {
				return
			}
			if _, err := params.Refresher.Refresh(drainCtx); err != nil {
				params.Logger.Warn(drainCtx, "reconnect cache refresh failed")
			}
		}()
	})
	return nil
}
