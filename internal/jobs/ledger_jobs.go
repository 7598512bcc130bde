package jobs

import (
	"context"
	"errors"
	"fmt"

	"bookshare-backend/internal/domain"
	"bookshare-backend/internal/logger"
	"bookshare-backend/internal/repository"
)

const auditPageSize = 100

// AuditLedgerInvariants reloads every live ledger with its copies and logs
// the ones whose counters disagree with the copies held.
func (jr *JobRunner) AuditLedgerInvariants() {
	jr.runWithRecovery("AuditLedgerInvariants", func(ctx context.Context) error {
		_, err := jr.auditLedgerInvariants(ctx)
		return err
	})
}

// auditLedgerInvariants returns the ids of inconsistent ledgers.
func (jr *JobRunner) auditLedgerInvariants(ctx context.Context) ([]int64, error) {
	var broken []int64
	checked := 0
	for page := int32(1); ; page++ {
		ledgers, total, err := jr.ledgers.List(ctx, repository.LedgerFilter{Page: page, PageSize: auditPageSize})
		if err != nil {
			return broken, fmt.Errorf("failed to list ledgers: %w", err)
		}
		for _, summary := range ledgers {
			ledger, err := jr.ledgers.GetByID(ctx, summary.ID)
			if errors.Is(err, domain.ErrLedgerNotFound) {
				// deleted since the page was read
				continue
			}
			if err != nil {
				return broken, fmt.Errorf("failed to load ledger %d: %w", summary.ID, err)
			}
			checked++
			if err := ledger.CheckInvariants(); err != nil {
				logger.Error("Ledger invariant violated", "ledger_id", ledger.ID, "error", err)
				broken = append(broken, ledger.ID)
			}
		}
		if len(ledgers) == 0 || int(page)*auditPageSize >= int(total) {
			break
		}
	}
	logger.Info("Ledger audit finished", "checked", checked, "violations", len(broken))
	return broken, nil
}
