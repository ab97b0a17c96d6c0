package indexer

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
)

// HealthCheck reports the served index. An empty index is degraded, not
// down: queries still answer, with no hits.
func (e *Engine) HealthCheck() health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		snap := e.Snapshot()
		if snap.Index.Empty() {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "serving empty index"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d, %d documents", snap.Generation, snap.Index.TotalDocs()),
		}
	}
}
