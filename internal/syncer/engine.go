package syncer

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/insaansher/sherpos-terminal/internal/backend"
	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	"github.com/insaansher/sherpos-terminal/pkg/enums"
	pkgerrors "github.com/insaansher/sherpos-terminal/pkg/errors"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
	"github.com/insaansher/sherpos-terminal/pkg/metrics"
)

// ErrDrainInProgress is returned when a drain is requested while another is
// still running. The in-flight drain covers the same records, so the caller
// has nothing to do.
var ErrDrainInProgress = pkgerrors.New(pkgerrors.CodeConflict, "a sync drain is already running")

const (
	fallbackErrorMessage = "network error"
	strandedErrorMessage = "sync interrupted before completion"
)

// QueueRepository is the durable queue surface the engine drives.
type QueueRepository interface {
	ListByStatus(ctx context.Context, status enums.SaleStatus) ([]models.OfflineSale, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next enums.SaleStatus, errorMessage string, serverData *models.SyncedSaleData) error
	CountByStatus(ctx context.Context, status enums.SaleStatus) (int64, error)
}

// Submitter posts one record to the backend's reconciliation endpoint.
type Submitter interface {
	SyncOfflineSale(ctx context.Context, req backend.OfflineSaleRequest) (*backend.SaleResult, error)
}

// DrainOptions control which records a pass picks up. Automatic drains take
// queued records only; RetryFailed is the operator's explicit retry.
type DrainOptions struct {
	RetryFailed bool
}

// DrainResult summarizes one pass.
type DrainResult struct {
	Submitted int `json:"submitted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
}

// Engine drains the offline sale queue against the backend, one record at a
// time, oldest first. Resubmission is safe because the backend dedupes on
// the local sale id.
type Engine struct {
	queue    QueueRepository
	submit   Submitter
	logg     *logger.Logger
	metrics  *metrics.TerminalMetrics
	inFlight atomic.Bool
}

type EngineParams struct {
	Queue     QueueRepository
	Submitter Submitter
	Logger    *logger.Logger
	Metrics   *metrics.TerminalMetrics
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Queue == nil {
		return nil, errors.New("queue repository is required")
	}
	if params.Submitter == nil {
		return nil, errors.New("submitter is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Engine{
		queue:   params.Queue,
		submit:  params.Submitter,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Drain processes all eligible records sequentially. One record's submission
// failure marks it failed and moves on; a local-storage failure aborts the
// pass because the store is the correctness anchor. Concurrent calls are
// rejected, and records another pass already holds in syncing are skipped by
// the status compare-and-set.
func (e *Engine) Drain(ctx context.Context, opts DrainOptions) (DrainResult, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return DrainResult{}, ErrDrainInProgress
	}
	defer e.inFlight.Store(false)

	start := time.Now()
	defer func() {
		e.metrics.ObserveDrainDuration(time.Since(start))
		e.updateDepthGauges(ctx)
	}()

	if _, err := e.recoverStranded(ctx); err != nil {
		return DrainResult{}, err
	}

	records, err := e.eligible(ctx, opts)
	if err != nil {
		return DrainResult{}, err
	}
	if len(records) == 0 {
		return DrainResult{}, nil
	}

	drainCtx := e.logg.WithField(ctx, "records", len(records))
	e.logg.Info(drainCtx, "sync drain started")

	var result DrainResult
	var storageErr error
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			storageErr = multierr.Append(storageErr, err)
			break
		}

		claimErr := e.queue.UpdateStatus(ctx, record.LocalSaleID, enums.SaleStatusSyncing, "", nil)
		if claimErr != nil {
			if pkgerrors.CodeOf(claimErr) == pkgerrors.CodeStateConflict {
				// Another pass holds it, or it reached a terminal state.
				continue
			}
			storageErr = multierr.Append(storageErr, claimErr)
			break
		}

		result.Submitted++
		if err := e.submitOne(ctx, record, &result); err != nil {
			storageErr = multierr.Append(storageErr, err)
			break
		}
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"submitted": result.Submitted,
		"synced":    result.Synced,
		"failed":    result.Failed,
	}), "sync drain finished")
	return result, storageErr
}

// submitOne posts a single record and persists its outcome. The returned
// error is a storage error only; submission failures are folded into the
// record's failed status.
func (e *Engine) submitOne(ctx context.Context, record models.OfflineSale, result *DrainResult) error {
	saleCtx := e.logg.WithSaleID(ctx, record.LocalSaleID.String())

	serverResult, err := e.submit.SyncOfflineSale(ctx, backend.OfflineSaleRequest{
		LocalSaleID:     record.LocalSaleID,
		CreatedAt:       record.CreatedAt,
		Items:           record.Items,
		DiscountAmount:  record.DiscountAmount,
		PaymentMethod:   record.PaymentMethod,
		PaymentReceived: record.PaymentReceived,
	})
	if err != nil {
		message := failureMessage(err)
		if updateErr := e.queue.UpdateStatus(ctx, record.LocalSaleID, enums.SaleStatusFailed, message, nil); updateErr != nil {
			return updateErr
		}
		result.Failed++
		e.metrics.IncDrainRecord("failed")
		e.logg.Warn(e.logg.WithField(saleCtx, "error", message), "offline sale sync failed")
		return nil
	}

	serverData := &models.SyncedSaleData{
		InvoiceNumber: serverResult.InvoiceNumber,
		FinalAmount:   serverResult.FinalAmount,
	}
	if updateErr := e.queue.UpdateStatus(ctx, record.LocalSaleID, enums.SaleStatusSynced, "", serverData); updateErr != nil {
		return updateErr
	}
	result.Synced++
	e.metrics.IncDrainRecord("synced")
	e.logg.Info(e.logg.WithField(saleCtx, "invoice", serverResult.InvoiceNumber), "offline sale synced")
	return nil
}

// Recover moves records a previous pass left in syncing back to failed so a
// RetryFailed drain can pick them up. A crash or storage failure between
// claiming a record and writing its outcome strands it in syncing, a status
// no pass ever lists for submission. Runs on startup and, internally, at the
// top of every drain.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return 0, ErrDrainInProgress
	}
	defer e.inFlight.Store(false)
	return e.recoverStranded(ctx)
}

// recoverStranded must only run while inFlight is held: a record in syncing
// is only legitimate under a live drain, which this process serializes.
func (e *Engine) recoverStranded(ctx context.Context) (int, error) {
	stranded, err := e.queue.ListByStatus(ctx, enums.SaleStatusSyncing)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, record := range stranded {
		err := e.queue.UpdateStatus(ctx, record.LocalSaleID, enums.SaleStatusFailed, strandedErrorMessage, nil)
		if err != nil {
			if pkgerrors.CodeOf(err) == pkgerrors.CodeStateConflict {
				continue
			}
			return recovered, err
		}
		recovered++
		e.metrics.IncDrainRecord("recovered")
		e.logg.Warn(e.logg.WithSaleID(ctx, record.LocalSaleID.String()),
			"recovered sale stranded in syncing")
	}
	return recovered, nil
}

// eligible returns the records this pass should submit, oldest createdAt
// first across both statuses.
func (e *Engine) eligible(ctx context.Context, opts DrainOptions) ([]models.OfflineSale, error) {
	records, err := e.queue.ListByStatus(ctx, enums.SaleStatusQueued)
	if err != nil {
		return nil, err
	}
	if opts.RetryFailed {
		failed, err := e.queue.ListByStatus(ctx, enums.SaleStatusFailed)
		if err != nil {
			return nil, err
		}
		records = append(records, failed...)
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		})
	}
	return records, nil
}

func (e *Engine) updateDepthGauges(ctx context.Context) {
	for _, status := range []enums.SaleStatus{
		enums.SaleStatusQueued,
		enums.SaleStatusSyncing,
		enums.SaleStatusSynced,
		enums.SaleStatusFailed,
	} {
		count, err := e.queue.CountByStatus(ctx, status)
		if err != nil {
			continue
		}
		e.metrics.SetQueueDepth(string(status), int(count))
	}
}

// failureMessage prefers the server-provided error text and falls back to a
// generic network message.
func failureMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return fallbackErrorMessage
}
