package tokens

import (
	"context"
	"time"

	"github.com/starkhealth/backend/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// refreshJobWindow: credentials expiring inside this window get refreshed
// proactively by the scheduled run.
const refreshJobWindow = 30 * time.Minute

type RefreshJobResult struct {
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// RunRefreshJob refreshes all credentials that expire soon. Refreshes run
// sequentially: the job is triggered by a scheduler, not a user, and a
// slow run beats hammering provider token endpoints. A failure for one
// credential never aborts the rest.
func (m *Manager) RunRefreshJob(ctx context.Context) (_ RefreshJobResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "tokens.manager.refreshJob")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	expiring, err := m.repo.GetExpiringWithin(ctx, refreshJobWindow)
	if err != nil {
		return RefreshJobResult{}, err
	}

	result := RefreshJobResult{Total: len(expiring)}
	for _, token := range expiring {
		if _, err := m.ensureFresh(ctx, token.UserID, token.Provider, refreshJobWindow); err != nil {
			result.Failed++
			log.Errorf(
				"[tokens] refresh job: user %s provider %s: %s",
				token.UserID, token.Provider, err,
			)
			continue
		}
		result.Refreshed++
	}

	span.SetAttributes(
		attribute.Int("refreshed", result.Refreshed),
		attribute.Int("failed", result.Failed),
	)
	log.Debugf(
		"[tokens] refresh job done: %d refreshed, %d failed, %d total",
		result.Refreshed, result.Failed, result.Total,
	)

	return result, nil
}
