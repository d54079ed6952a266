package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/insaansher/sherpos-terminal/pkg/config"
	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	"github.com/insaansher/sherpos-terminal/pkg/enums"
	pkgerrors "github.com/insaansher/sherpos-terminal/pkg/errors"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
)

// SaleRequest is the payload for a direct (online) sale.
type SaleRequest struct {
	Items           []models.SaleItem   `json:"items"`
	DiscountAmount  decimal.Decimal     `json:"discount_amount"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentReceived decimal.Decimal     `json:"payment_received"`
}

// OfflineSaleRequest is the reconciliation payload. LocalSaleID is the
// idempotency token the backend dedupes on; CreatedAt carries the real sale
// time since the server may receive it much later.
type OfflineSaleRequest struct {
	LocalSaleID     uuid.UUID           `json:"local_sale_id"`
	CreatedAt       time.Time           `json:"created_at"`
	Items           []models.SaleItem   `json:"items"`
	DiscountAmount  decimal.Decimal     `json:"discount_amount"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentReceived decimal.Decimal     `json:"payment_received"`
}

// SaleResult is the backend's authoritative answer for a posted sale.
type SaleResult struct {
	InvoiceNumber string          `json:"invoice_number"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Client talks to the SaaS backend's POS endpoints. Every call carries a
// bounded timeout; a request that never resolves classifies the same as a
// transport failure.
type Client struct {
	baseURL        string
	token          string
	httpClient     *http.Client
	refreshRetries uint64
	logg           *logger.Logger
}

func NewClient(cfg config.BackendConfig, logg *logger.Logger) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		token:          cfg.Token,
		httpClient:     &http.Client{Timeout: cfg.RequestTimeout},
		refreshRetries: cfg.RefreshRetries,
		logg:           logg,
	}
}

// FetchProducts pulls the live catalog. Transient failures are retried with
// exponential backoff since a catalog read is harmless to replay.
func (c *Client) FetchProducts(ctx context.Context, search string) ([]models.CachedProduct, error) {
	path := "/pos/products"
	if search != "" {
		path += "?search=" + url.QueryEscape(search)
	}

	var products []models.CachedProduct
	backoff := retry.WithMaxRetries(c.refreshRetries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		products = products[:0]
		if err := c.do(ctx, http.MethodGet, path, nil, &products); err != nil {
			if pkgerrors.IsConnectivity(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// CreateSale posts a direct sale. No retry here: without an idempotency key a
// replayed create could double-charge, and the offline queue already covers
// the failure path.
func (c *Client) CreateSale(ctx context.Context, req SaleRequest) (*SaleResult, error) {
	var result SaleResult
	if err := c.do(ctx, http.MethodPost, "/pos/sales", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SyncOfflineSale posts one queued sale to the reconciliation endpoint. Safe
// to resubmit: the backend is idempotent on LocalSaleID.
func (c *Client) SyncOfflineSale(ctx context.Context, req OfflineSaleRequest) (*SaleResult, error) {
	var result SaleResult
	if err := c.do(ctx, http.MethodPost, "/pos/offline-sync/sales", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ping is a lightweight reachability probe for the connectivity monitor.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/pos/ping", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// No response at all: DNS failure, refused connection, timeout.
		return pkgerrors.Wrap(pkgerrors.CodeConnectivity, err, "backend unreachable")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.New(pkgerrors.CodeConnectivity,
			fmt.Sprintf("backend error (%d)", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return classifyApplicationError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeConnectivity, err, "decoding backend response")
	}
	return nil
}

// classifyApplicationError maps a 4xx into a non-retryable coded error
// carrying the server's message. These must never be queued.
func classifyApplicationError(resp *http.Response) error {
	message := http.StatusText(resp.StatusCode)
	var parsed errorBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil && parsed.Error != "" {
		message = parsed.Error
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	case http.StatusConflict:
		return pkgerrors.New(pkgerrors.CodeConflict, message)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, message)
	}
}
