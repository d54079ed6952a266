package cart

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insaansher/sherpos-terminal/pkg/db/models"
	"github.com/insaansher/sherpos-terminal/pkg/enums"
	pkgerrors "github.com/insaansher/sherpos-terminal/pkg/errors"
)

// Line is one cart row. StockMax is the last-known stock figure for the
// product; quantity can never pass it.
type Line struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	StockMax  int             `json:"stock_max"`
}

// Totals are the client-computed amounts shown to the cashier. They feed the
// provisional receipt; the backend total stays authoritative.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	ChangeDue  decimal.Decimal `json:"change_due"`
}

// View is a read snapshot of the cart for the UI.
type View struct {
	Lines           []Line              `json:"lines"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentReceived decimal.Decimal     `json:"payment_received"`
	Totals          Totals              `json:"totals"`
}

// Snapshot is the finalized, immutable checkout input. Once produced it is
// the sole input to the dispatcher; the cart clears only after the dispatcher
// reports success.
type Snapshot struct {
	Items           []models.SaleItem
	DiscountAmount  decimal.Decimal
	PaymentMethod   enums.PaymentMethod
	PaymentReceived decimal.Decimal
	GrandTotal      decimal.Decimal
}

// Cart accumulates one in-progress transaction. State changes go through the
// closed operation set below, never through direct field access, and a
// submitting guard refuses a second concurrent checkout.
type Cart struct {
	mu              sync.Mutex
	lines           []Line
	discount        decimal.Decimal
	paymentMethod   enums.PaymentMethod
	paymentReceived decimal.Decimal
	submitting      bool
}

func New() *Cart {
	return &Cart{paymentMethod: enums.PaymentMethodCash}
}

// AddItem adds one unit of the product, or increments an existing line.
func (c *Cart) AddItem(product models.CachedProduct) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ProductID == product.ID {
			if c.lines[i].Quantity >= c.lines[i].StockMax {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("only %d in stock for %s", c.lines[i].StockMax, c.lines[i].Name))
			}
			c.lines[i].Quantity++
			return nil
		}
	}

	if product.StockQuantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("%s is out of stock", product.Name))
	}
	c.lines = append(c.lines, Line{
		ProductID: product.ID,
		Name:      product.Name,
		SKU:       product.SKU,
		UnitPrice: product.Price,
		Quantity:  1,
		StockMax:  product.StockQuantity,
	})
	return nil
}

// RemoveItem drops the line for the product.
func (c *Cart) RemoveItem(productID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
}

// SetQuantity sets a line's quantity, clamped to the stock ceiling. A
// quantity below one is rejected; use RemoveItem to drop a line.
func (c *Cart) SetQuantity(productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			if quantity > c.lines[i].StockMax {
				quantity = c.lines[i].StockMax
			}
			c.lines[i].Quantity = quantity
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart")
}

// SetDiscount sets the whole-sale discount amount.
func (c *Cart) SetDiscount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.discount = amount
	return nil
}

// SetPayment records the tender method and amount received.
func (c *Cart) SetPayment(method enums.PaymentMethod, received decimal.Decimal) error {
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment method %q", method))
	}
	if received.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment received cannot be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymentMethod = method
	c.paymentReceived = received
	return nil
}

// Clear resets the cart to its initial state.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Cart) reset() {
	c.lines = nil
	c.discount = decimal.Zero
	c.paymentMethod = enums.PaymentMethodCash
	c.paymentReceived = decimal.Zero
}

// View returns a copy of the cart state with computed totals.
func (c *Cart) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]Line, len(c.lines))
	copy(lines, c.lines)
	return View{
		Lines:           lines,
		PaymentMethod:   c.paymentMethod,
		PaymentReceived: c.paymentReceived,
		Totals:          c.totals(),
	}
}

func (c *Cart) totals() Totals {
	subtotal := decimal.Zero
	for _, line := range c.lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	grand := subtotal.Sub(c.discount)
	if grand.IsNegative() {
		grand = decimal.Zero
	}
	change := c.paymentReceived.Sub(grand)
	if change.IsNegative() {
		change = decimal.Zero
	}
	return Totals{
		Subtotal:   subtotal,
		Discount:   c.discount,
		GrandTotal: grand,
		ChangeDue:  change,
	}
}

// Snapshot finalizes the cart into an immutable checkout input. It refuses an
// empty cart or insufficient tender; the cart itself is left untouched.
func (c *Cart) Snapshot() (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	totals := c.totals()
	if c.paymentReceived.LessThan(totals.GrandTotal) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment received is below the total")
	}

	items := make([]models.SaleItem, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, models.SaleItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	return &Snapshot{
		Items:           items,
		DiscountAmount:  c.discount,
		PaymentMethod:   c.paymentMethod,
		PaymentReceived: c.paymentReceived,
		GrandTotal:      totals.GrandTotal,
	}, nil
}

// BeginSubmit marks the cart as mid-checkout. A second checkout while one is
// in flight is refused.
func (c *Cart) BeginSubmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitting {
		return pkgerrors.New(pkgerrors.CodeConflict, "a checkout is already in progress")
	}
	c.submitting = true
	return nil
}

// EndSubmit releases the checkout guard, clearing the cart when the dispatch
// succeeded (online or queued).
func (c *Cart) EndSubmit(clear bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.submitting = false
	if clear {
		c.reset()
	}
}
