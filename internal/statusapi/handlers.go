package statusapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insaansher/sherpos-terminal/internal/cart"
	"github.com/insaansher/sherpos-terminal/internal/connectivity"
	"github.com/insaansher/sherpos-terminal/internal/syncer"
	"github.com/insaansher/sherpos-terminal/pkg/enums"
	pkgerrors "github.com/insaansher/sherpos-terminal/pkg/errors"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
)

type handlers struct {
	logg     *logger.Logger
	store    Pinger
	monitor  *connectivity.Monitor
	cart     *cart.Cart
	catalog  CatalogService
	checkout CheckoutService
	sync     SyncEngine
	queue    SaleQueue
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.store.Ping(ctx); err != nil {
		writeError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "local store unavailable"))
		return
	}
	writeSuccess(w, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Online       bool  `json:"online"`
	PendingCount int64 `json:"pending_count"`
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pending, err := h.queue.CountByStatus(ctx, enums.SaleStatusQueued)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, statusResponse{
		Online:       h.monitor.Online(),
		PendingCount: pending,
	})
}

type connectivityRequest struct {
	Online bool `json:"online"`
}

// reportConnectivity is the push entrypoint for platform reachability
// signals (the UI shell forwards browser online/offline events here).
func (h *handlers) reportConnectivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req connectivityRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	h.monitor.Report(req.Online)
	writeSuccess(w, map[string]bool{"online": h.monitor.Online()})
}

func (h *handlers) listSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sales, err := h.queue.ListAll(ctx)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, sales)
}

type pruneRequest struct {
	OlderThanDays int `json:"older_than_days" validate:"required,min=1"`
}

func (h *handlers) pruneSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req pruneRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	cutoff := time.Now().AddDate(0, 0, -req.OlderThanDays)
	pruned, err := h.queue.PruneSynced(ctx, cutoff)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, map[string]int64{"pruned": pruned})
}

type syncRequest struct {
	RetryFailed bool `json:"retry_failed"`
}

func (h *handlers) syncNow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req syncRequest
	if r.ContentLength > 0 {
		if err := decodeJSONBody(r, &req); err != nil {
			writeError(ctx, h.logg, w, err)
			return
		}
	}
	result, err := h.sync.Drain(ctx, syncer.DrainOptions{RetryFailed: req.RetryFailed})
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, result)
}

func (h *handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	products, err := h.catalog.Browse(ctx, r.URL.Query().Get("search"))
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, products)
}

func (h *handlers) refreshCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.catalog.Refresh(ctx)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, map[string]int{"products": count})
}

func (h *handlers) getCart(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.cart.View())
}

func (h *handlers) clearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear()
	writeSuccess(w, h.cart.View())
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

func (h *handlers) addCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
		return
	}
	product, err := h.catalog.Lookup(ctx, productID)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	if err := h.cart.AddItem(*product); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, h.cart.View())
}

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func (h *handlers) setCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
		return
	}
	var req setQuantityRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	if err := h.cart.SetQuantity(productID, req.Quantity); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, h.cart.View())
}

func (h *handlers) removeCartItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
		return
	}
	if err := h.cart.RemoveItem(productID); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, h.cart.View())
}

type discountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *handlers) setCartDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req discountRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	if err := h.cart.SetDiscount(req.Amount); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, h.cart.View())
}

type paymentRequest struct {
	Method   string          `json:"method" validate:"required"`
	Received decimal.Decimal `json:"received"`
}

func (h *handlers) setCartPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req paymentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	method, err := enums.ParsePaymentMethod(req.Method)
	if err != nil {
		writeError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
		return
	}
	if err := h.cart.SetPayment(method, req.Received); err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccess(w, h.cart.View())
}

func (h *handlers) checkoutCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	receipt, err := h.checkout.CheckoutCart(ctx)
	if err != nil {
		writeError(ctx, h.logg, w, err)
		return
	}
	writeSuccessStatus(w, http.StatusCreated, receipt)
}
