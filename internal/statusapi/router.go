package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insaansher/sherpos-terminal/internal/cart"
	"github.com/insaansher/sherpos-terminal/internal/checkout"
	"github.com/insaansher/sherpos-terminal/internal/connectivity"
	"github.com/insaansher/sherpos-terminal/internal/syncer"
	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	"github.com/insaansher/sherpos-terminal/pkg/enums"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
)

// CatalogService serves cached product browsing and refresh.
type CatalogService interface {
	Browse(ctx context.Context, filter string) ([]models.CachedProduct, error)
	Lookup(ctx context.Context, id uuid.UUID) (*models.CachedProduct, error)
	Refresh(ctx context.Context) (int, error)
}

// CheckoutService runs one guarded checkout end to end.
type CheckoutService interface {
	CheckoutCart(ctx context.Context) (*checkout.Receipt, error)
}

// SyncEngine is the manual "sync now" trigger, the same drain the monitor
// fires automatically on reconnect.
type SyncEngine interface {
	Drain(ctx context.Context, opts syncer.DrainOptions) (syncer.DrainResult, error)
}

// SaleQueue is the read/prune surface over the offline sale queue.
type SaleQueue interface {
	ListAll(ctx context.Context) ([]models.OfflineSale, error)
	PruneSynced(ctx context.Context, olderThan time.Time) (int64, error)
	CountByStatus(ctx context.Context, status enums.SaleStatus) (int64, error)
}

// Pinger checks that the local store is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterParams struct {
	Logger   *logger.Logger
	Store    Pinger
	Monitor  *connectivity.Monitor
	Cart     *cart.Cart
	Catalog  CatalogService
	Checkout CheckoutService
	Sync     SyncEngine
	Queue    SaleQueue
	Registry *prometheus.Registry
}

// NewRouter builds the terminal's local HTTP surface: the operator status
// endpoints, the cashier-facing cart/checkout API and metrics.
func NewRouter(params RouterParams) http.Handler {
	logg := params.Logger
	h := &handlers{
		logg:     logg,
		store:    params.Store,
		monitor:  params.Monitor,
		cart:     params.Cart,
		catalog:  params.Catalog,
		checkout: params.Checkout,
		sync:     params.Sync,
		queue:    params.Queue,
	}

	r := chi.NewRouter()
	r.Use(
		recoverer(logg),
		requestID(logg),
		logging(logg),
	)

	r.Get("/healthz", h.health)
	if params.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Post("/connectivity", h.reportConnectivity)

		r.Get("/sales", h.listSales)
		r.Post("/sales/prune", h.pruneSales)
		r.Post("/sync", h.syncNow)

		r.Get("/products", h.listProducts)
		r.Post("/catalog/refresh", h.refreshCatalog)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Put("/items/{productID}", h.setCartItemQuantity)
			r.Delete("/items/{productID}", h.removeCartItem)
			r.Post("/discount", h.setCartDiscount)
			r.Post("/payment", h.setCartPayment)
			r.Post("/checkout", h.checkoutCart)
		})
	})

	return r
}
