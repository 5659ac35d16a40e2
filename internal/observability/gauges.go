package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PollGauge sets g from read right away and then every interval until ctx
// is done. A failed read keeps the previous value.
func PollGauge(ctx context.Context, every time.Duration, g prometheus.Gauge, read func(context.Context) (float64, error)) {
	update := func() {
		v, err := read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("poll gauge", "error", err)
			}
			return
		}
		g.Set(v)
	}

	update()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
