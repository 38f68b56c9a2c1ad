package tasks

import (
	"context"
	"fmt"

	"zapdesk/internal/domain"
)

// newStaleSendAuditTask builds the job that reports how many outbound
// messages never received a delivery receipt. It only observes: delivery
// state advances exclusively through provider receipts, so the audit
// must never promote or retry anything itself.
func newStaleSendAuditTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "stale_send_audit")

	return func(ctx context.Context) error {
		counts, err := deps.Store.CountMessagesByStatus(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Stale send audit failed", "error", err)
			return fmt.Errorf("stale send audit failed: %w", err)
		}

		pending := counts[string(domain.StatusSent)]
		failed := counts[string(domain.StatusError)]
		if pending == 0 && failed == 0 {
			log.DebugContext(ctx, "No stale or failed sends")
			return nil
		}
		log.WarnContext(ctx, "Outbound messages without delivery confirmation",
			"awaiting_receipt", pending, "failed", failed)
		return nil
	}
}
