package checkout

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insaansher/sherpos-terminal/internal/backend"
	"github.com/insaansher/sherpos-terminal/internal/cart"
	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	"github.com/insaansher/sherpos-terminal/pkg/enums"
	pkgerrors "github.com/insaansher/sherpos-terminal/pkg/errors"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
)

type stubBackend struct {
	createFn func(ctx context.Context, req backend.SaleRequest) (*backend.SaleResult, error)
	calls    int
}

func (s *stubBackend) CreateSale(ctx context.Context, req backend.SaleRequest) (*backend.SaleResult, error) {
	s.calls++
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return &backend.SaleResult{InvoiceNumber: "INV-1", FinalAmount: decimal.Zero}, nil
}

type stubMonitor struct {
	online bool
}

func (s *stubMonitor) Online() bool { return s.online }

type stubQueue struct {
	enqueueFn func(ctx context.Context, sale *models.OfflineSale) error
	enqueued  []*models.OfflineSale
}

func (s *stubQueue) Enqueue(ctx context.Context, sale *models.OfflineSale) error {
	if s.enqueueFn != nil {
		if err := s.enqueueFn(ctx, sale); err != nil {
			return err
		}
	}
	s.enqueued = append(s.enqueued, sale)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testSnapshot() *cart.Snapshot {
	return &cart.Snapshot{
		Items:           []models.SaleItem{{ProductID: uuid.New(), Quantity: 1}},
		DiscountAmount:  decimal.Zero,
		PaymentMethod:   enums.PaymentMethodCash,
		PaymentReceived: decimal.RequireFromString("10.00"),
		GrandTotal:      decimal.RequireFromString("10.00"),
	}
}

func newTestDispatcher(t *testing.T, be SaleCreator, monitor Connectivity, queue Enqueuer) *Dispatcher {
	t.Helper()

	d, err := NewDispatcher(DispatcherParams{
		Backend: be,
		Queue:   queue,
		Monitor: monitor,
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return d
}

func TestDispatchOnlineSuccess(t *testing.T) {
	be := &stubBackend{createFn: func(ctx context.Context, req backend.SaleRequest) (*backend.SaleResult, error) {
		return &backend.SaleResult{
			InvoiceNumber: "INV-42",
			FinalAmount:   decimal.RequireFromString("9.50"),
		}, nil
	}}
	queue := &stubQueue{}
	d := newTestDispatcher(t, be, &stubMonitor{online: true}, queue)

	receipt, err := d.Dispatch(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Provisional {
		t.Fatal("online receipt must not be provisional")
	}
	if receipt.InvoiceNumber != "INV-42" {
		t.Fatalf("expected server invoice, got %q", receipt.InvoiceNumber)
	}
	if !receipt.FinalAmount.Equal(decimal.RequireFromString("9.50")) {
		t.Fatalf("expected server amount, got %s", receipt.FinalAmount)
	}
	if len(queue.enqueued) != 0 {
		t.Fatal("successful online sale must not be queued")
	}
}

func TestDispatchOfflineSkipsNetwork(t *testing.T) {
	be := &stubBackend{}
	queue := &stubQueue{}
	d := newTestDispatcher(t, be, &stubMonitor{online: false}, queue)

	fixedID := uuid.MustParse("a1b2c3d4-0000-0000-0000-000000000000")
	fixedTime := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
	d.newID = func() uuid.UUID { return fixedID }
	d.now = func() time.Time { return fixedTime }

	receipt, err := d.Dispatch(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if be.calls != 0 {
		t.Fatal("known-offline dispatch must not hit the backend")
	}
	if !receipt.Provisional {
		t.Fatal("queued receipt must be provisional")
	}
	if receipt.InvoiceNumber != "OFF-20260901-a1b2c3d4" {
		t.Fatalf("unexpected provisional invoice %q", receipt.InvoiceNumber)
	}
	if receipt.LocalSaleID == nil || *receipt.LocalSaleID != fixedID {
		t.Fatal("receipt must carry the local sale id")
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected one queued sale, got %d", len(queue.enqueued))
	}
	if !queue.enqueued[0].CreatedAt.Equal(fixedTime) {
		t.Fatal("queued sale must carry the dispatch time")
	}
}

func TestDispatchQueuesOnConnectivityError(t *testing.T) {
	be := &stubBackend{createFn: func(ctx context.Context, req backend.SaleRequest) (*backend.SaleResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeConnectivity, "backend error (502)")
	}}
	queue := &stubQueue{}
	d := newTestDispatcher(t, be, &stubMonitor{online: true}, queue)

	receipt, err := d.Dispatch(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("expected fallback to queue, got %v", err)
	}
	if !receipt.Provisional {
		t.Fatal("fallback receipt must be provisional")
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected one queued sale, got %d", len(queue.enqueued))
	}
}

func TestDispatchPropagatesApplicationRejection(t *testing.T) {
	be := &stubBackend{createFn: func(ctx context.Context, req backend.SaleRequest) (*backend.SaleResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")
	}}
	queue := &stubQueue{}
	d := newTestDispatcher(t, be, &stubMonitor{online: true}, queue)

	_, err := d.Dispatch(context.Background(), testSnapshot())
	if err == nil {
		t.Fatal("expected rejection to propagate")
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(queue.enqueued) != 0 {
		t.Fatal("application rejection must never be queued")
	}
}

func TestDispatchSurfacesEnqueueFailure(t *testing.T) {
	queue := &stubQueue{enqueueFn: func(ctx context.Context, sale *models.OfflineSale) error {
		return pkgerrors.New(pkgerrors.CodeStorage, "disk full")
	}}
	d := newTestDispatcher(t, &stubBackend{}, &stubMonitor{online: false}, queue)

	_, err := d.Dispatch(context.Background(), testSnapshot())
	if err == nil {
		t.Fatal("expected storage failure to surface")
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestProvisionalInvoiceNumberFormat(t *testing.T) {
	id := uuid.MustParse("deadbeef-0000-0000-0000-000000000000")
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	got := provisionalInvoiceNumber(id, created)
	if got != "OFF-20260105-deadbeef" {
		t.Fatalf("unexpected invoice number %q", got)
	}
}
