package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insaansher/sherpos-terminal/internal/backend"
	"github.com/insaansher/sherpos-terminal/internal/cart"
	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	pkgerrors "github.com/insaansher/sherpos-terminal/pkg/errors"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
	"github.com/insaansher/sherpos-terminal/pkg/metrics"
)

// ProvisionalPrefix marks receipts synthesized for queued offline sales so a
// cashier can always tell them from server invoices.
const ProvisionalPrefix = "OFF"

// Receipt is what every successful dispatch hands back, server-confirmed or
// provisional.
type Receipt struct {
	InvoiceNumber string          `json:"invoice_number"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	Provisional   bool            `json:"provisional"`
	LocalSaleID   *uuid.UUID      `json:"local_sale_id,omitempty"`
}

// SaleCreator is the direct create-sale call on the backend.
type SaleCreator interface {
	CreateSale(ctx context.Context, req backend.SaleRequest) (*backend.SaleResult, error)
}

// Connectivity reports the monitor's current state.
type Connectivity interface {
	Online() bool
}

// Enqueuer inserts a sale into the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, sale *models.OfflineSale) error
}

// CacheRefresher refreshes the product cache after an online sale so
// browsing reflects the new stock.
type CacheRefresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Dispatcher turns a finalized cart snapshot into either a confirmed server
// sale or a durably queued offline sale, and always returns a receipt-shaped
// result to the cashier.
type Dispatcher struct {
	backend   SaleCreator
	queue     Enqueuer
	monitor   Connectivity
	refresher CacheRefresher
	logg      *logger.Logger
	metrics   *metrics.TerminalMetrics
	now       func() time.Time
	newID     func() uuid.UUID
}

type DispatcherParams struct {
	Backend   SaleCreator
	Queue     Enqueuer
	Monitor   Connectivity
	Refresher CacheRefresher
	Logger    *logger.Logger
	Metrics   *metrics.TerminalMetrics
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Backend == nil {
		return nil, errors.New("backend client is required")
	}
	if params.Queue == nil {
		return nil, errors.New("sale queue is required")
	}
	if params.Monitor == nil {
		return nil, errors.New("connectivity monitor is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Dispatcher{
		backend:   params.Backend,
		queue:     params.Queue,
		monitor:   params.Monitor,
		refresher: params.Refresher,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       time.Now,
		newID:     uuid.New,
	}, nil
}

// Dispatch runs the checkout decision tree. Known offline skips the network
// entirely; an online attempt that fails on transport (or 5xx) falls back to
// the queue; an application-level rejection propagates and is never queued.
func (d *Dispatcher) Dispatch(ctx context.Context, snapshot *cart.Snapshot) (*Receipt, error) {
	if snapshot == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "nil snapshot")
	}

	if !d.monitor.Online() {
		return d.enqueue(ctx, snapshot)
	}

	result, err := d.backend.CreateSale(ctx, backend.SaleRequest{
		Items:           snapshot.Items,
		DiscountAmount:  snapshot.DiscountAmount,
		PaymentMethod:   snapshot.PaymentMethod,
		PaymentReceived: snapshot.PaymentReceived,
	})
	if err == nil {
		d.metrics.IncCheckout("online")
		d.logg.Info(d.logg.WithField(ctx, "invoice", result.InvoiceNumber), "sale confirmed online")
		d.refreshCache()
		return &Receipt{
			InvoiceNumber: result.InvoiceNumber,
			FinalAmount:   result.FinalAmount,
		}, nil
	}
	if pkgerrors.IsConnectivity(err) {
		d.logg.Warn(ctx, "online sale failed on transport, queuing offline")
		return d.enqueue(ctx, snapshot)
	}

	// Application-level rejection (stock conflict, validation). Queuing it
	// would only fail again at sync time.
	d.metrics.IncCheckout("rejected")
	return nil, err
}

// enqueue durably records the sale and synthesizes a provisional receipt.
// A storage failure propagates loudly: a sale must never silently vanish.
func (d *Dispatcher) enqueue(ctx context.Context, snapshot *cart.Snapshot) (*Receipt, error) {
	localSaleID := d.newID()
	createdAt := d.now()

	sale := &models.OfflineSale{
		LocalSaleID:     localSaleID,
		CreatedAt:       createdAt,
		Items:           snapshot.Items,
		DiscountAmount:  snapshot.DiscountAmount,
		PaymentMethod:   snapshot.PaymentMethod,
		PaymentReceived: snapshot.PaymentReceived,
		GrandTotal:      snapshot.GrandTotal,
	}
	if err := d.queue.Enqueue(ctx, sale); err != nil {
		d.metrics.IncCheckout("storage_error")
		return nil, err
	}

	d.metrics.IncCheckout("queued")
	saleCtx := d.logg.WithSaleID(ctx, localSaleID.String())
	d.logg.Info(saleCtx, "sale queued for offline sync")

	// The cached stock is deliberately NOT decremented here: the backend owns
	// stock truth, and a local decrement would double-count once the queued
	// sale posts.
	return &Receipt{
		InvoiceNumber: provisionalInvoiceNumber(localSaleID, createdAt),
		FinalAmount:   snapshot.GrandTotal,
		Provisional:   true,
		LocalSaleID:   &localSaleID,
	}, nil
}

func (d *Dispatcher) refreshCache() {
	if d.refresher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := d.refresher.Refresh(ctx); err != nil {
			d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()),
				"post-sale cache refresh failed")
		}
	}()
}

func provisionalInvoiceNumber(localSaleID uuid.UUID, createdAt time.Time) string {
	return fmt.Sprintf("%s-%s-%s",
		ProvisionalPrefix,
		createdAt.Format("20060102"),
		localSaleID.String()[:8],
	)
}
