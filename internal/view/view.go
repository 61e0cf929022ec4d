// Package view renders the storefront as terminal pages. Every page reads
// from and acts through a *storefront.Storefront; user-facing failures are
// reported as toasts or, for pages whose data could not be loaded, as a
// full error state.
package view

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"text/template"
	"time"

	"github.com/example/sweetshop-storefront/internal/domain/cart"
	"github.com/example/sweetshop-storefront/internal/domain/inventory"
	"github.com/example/sweetshop-storefront/internal/domain/order"
	"github.com/example/sweetshop-storefront/internal/shopapi"
	"github.com/example/sweetshop-storefront/internal/storefront"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").
	Funcs(template.FuncMap{
		"money": renderMoney,
		"stock": renderStock,
		"state": renderState,
		"date":  renderDate,
		"mul": func(price decimal.Decimal, qty int) decimal.Decimal {
			return price.Mul(decimal.NewFromInt(int64(qty)))
		},
	}).ParseFS(templateFS, "templates/*.tmpl"))

type View struct {
	sf     *storefront.Storefront
	out    io.Writer
	notify Notifier
	log    logrus.FieldLogger
}

func New(sf *storefront.Storefront, out io.Writer, notify Notifier, log logrus.FieldLogger) *View {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &View{sf: sf, out: out, notify: notify, log: log.WithField("component", "view")}
}

// Catalog pages

func (v *View) Products(ctx context.Context) error {
	products, err := v.sf.Catalog.ListProducts(ctx)
	if err != nil {
		return v.renderError(err, msgProductsLoad)
	}
	return v.render("products", map[string]any{"Products": products})
}

func (v *View) Product(ctx context.Context, id string) error {
	p, err := v.sf.Catalog.GetProduct(ctx, id)
	if err != nil {
		return v.renderError(err, "Failed to load product")
	}
	return v.render("product", map[string]any{
		"Product":    p,
		"Image":      ImageURL(v.sf.BackendURL, p.Image),
		"InCart":     v.sf.Cart.Quantity(p.ID),
		"OutOfStock": p.CountInStock < 1,
	})
}

// Cart pages

// AddToCart adds qty units of a product, as the product page's button does.
func (v *View) AddToCart(ctx context.Context, id string, qty int) error {
	if qty < 1 {
		err := fmt.Errorf("quantity must be at least 1, got %d", qty)
		v.notify.Error("Quantity must be at least 1.")
		return err
	}
	p, err := v.sf.Catalog.GetProduct(ctx, id)
	if err != nil {
		v.notify.Error(Message(err, "Failed to load product"))
		return err
	}
	if p.CountInStock < 1 {
		v.notify.Error(msgOutOfStock)
		return &inventory.CapacityError{ProductID: p.ID, Requested: qty, Available: 0}
	}
	inCart := v.sf.Cart.Quantity(p.ID)
	if err := v.sf.CartActions.AddOrIncrement(ctx, *p, qty); err != nil {
		v.notifyCartError(err, inCart)
		return err
	}
	v.notify.Success(fmt.Sprintf("Added %d × %s to your cart.", qty, p.Name))
	return nil
}

// ChangeQuantity steps a cart line up or down, as the cart page's +/- do.
// Stepping below one unit removes the line. The line's stored snapshot
// stands in for the product.
func (v *View) ChangeQuantity(ctx context.Context, id string, delta int) error {
	line, ok := v.line(id)
	if !ok {
		v.notify.Error("That product is not in your cart.")
		return fmt.Errorf("product %s is not in the cart", id)
	}
	if line.Quantity+delta < 1 {
		return v.RemoveFromCart(ctx, id)
	}
	product := shopapi.Product{ID: line.ProductID, Name: line.Name, Price: line.Price, Image: line.Image}
	if err := v.sf.CartActions.AddOrIncrement(ctx, product, delta); err != nil {
		v.notifyCartError(err, line.Quantity)
		return err
	}
	return v.Cart()
}

func (v *View) RemoveFromCart(ctx context.Context, id string) error {
	line, ok := v.line(id)
	if err := v.sf.CartActions.Remove(ctx, id); err != nil {
		v.notify.Error(Message(err, "Failed to save your cart."))
		return err
	}
	if ok {
		v.notify.Success(line.Name + " removed from your cart.")
	}
	return v.Cart()
}

func (v *View) ClearCart(ctx context.Context) error {
	if err := v.sf.CartActions.Clear(ctx); err != nil {
		v.notify.Error(Message(err, "Failed to save your cart."))
		return err
	}
	v.notify.Success("Cart cleared.")
	return nil
}

func (v *View) Cart() error {
	return v.render("cart", map[string]any{
		"Items": v.sf.Cart.Items(),
		"Count": v.sf.Cart.Count(),
		"Total": v.sf.Cart.Total(),
	})
}

func (v *View) line(id string) (cart.LineItem, bool) {
	for _, item := range v.sf.Cart.Items() {
		if item.ProductID == id {
			return item, true
		}
	}
	return cart.LineItem{}, false
}

// notifyError toasts the error and, when the user is signed out, tells
// them how to sign in.
func (v *View) notifyError(err error, fallback string) {
	v.notify.Error(Message(err, fallback))
	if needsLogin(err) {
		v.notify.Error(msgLoginHint)
	}
}

func (v *View) notifyCartError(err error, inCart int) {
	var capacity *inventory.CapacityError
	if errors.As(err, &capacity) {
		v.notify.Error(addLimitMessage(capacity, inCart))
		return
	}
	v.notify.Error(Message(err, "Failed to update your cart."))
}

// Checkout pages

// Checkout places the order for the current cart and shows the receipt.
// A receipt is rendered even when only the payment step failed, so the
// user learns the order id to retry with.
func (v *View) Checkout(ctx context.Context, addr shopapi.ShippingAddress) error {
	receipt, err := v.sf.Orders.Submit(ctx, addr)

	var partial *order.PartialFailureError
	switch {
	case errors.As(err, &partial):
		v.notify.Success("Order created successfully!")
		v.notify.Error(paymentFailureMessage(partial.Err))
	case err != nil:
		v.notifyError(err, msgOrderFailed)
		return err
	default:
		v.notify.Success("Order created successfully!")
		v.notify.Success("Payment Successful!")
	}

	if rerr := v.renderReceipt(receipt); rerr != nil {
		return rerr
	}
	return err
}

func (v *View) renderReceipt(r *order.Receipt) error {
	if r == nil {
		return nil
	}
	return v.render("confirmation", map[string]any{
		"OrderID":    r.OrderID,
		"Total":      r.Total,
		"State":      r.State,
		"NeedsRetry": r.State == order.StateConfirmationFailed,
	})
}

func paymentFailureMessage(err error) string {
	if errors.Is(err, order.ErrPaymentDeclined) {
		return msgPaymentDeclined
	}
	if errors.Is(err, order.ErrPaymentNotRecorded) {
		return msgPaymentNotSaved
	}
	return Message(err, "Your order was created but payment could not be completed.")
}

// Order pages

func (v *View) Orders(ctx context.Context) error {
	summaries, err := v.sf.Tracking.History(ctx)
	if err != nil {
		return v.renderError(err, msgOrdersLoad)
	}
	return v.render("orders", map[string]any{"Orders": summaries})
}

func (v *View) Order(ctx context.Context, id string) error {
	detail, err := v.sf.Tracking.Track(ctx, id)
	if err != nil {
		return v.renderError(err, msgOrderLoad)
	}
	return v.render("order", map[string]any{
		"Order":      detail.Order,
		"Receipt":    detail.Receipt,
		"NeedsRetry": detail.Receipt.State != order.StatePaid,
	})
}

func (v *View) RetryPayment(ctx context.Context, id string) error {
	receipt, err := v.sf.Tracking.RetryPayment(ctx, id)
	if err != nil {
		var partial *order.PartialFailureError
		if errors.As(err, &partial) {
			v.notify.Error(paymentFailureMessage(partial.Err))
		} else {
			v.notifyError(err, msgOrderLoad)
		}
		if rerr := v.renderReceipt(receipt); rerr != nil {
			return rerr
		}
		return err
	}
	v.notify.Success("Payment Successful!")
	return v.renderReceipt(receipt)
}

// Account pages

func (v *View) Login(ctx context.Context, email, password string) error {
	identity, err := v.sf.Session.Login(ctx, email, password)
	if err != nil {
		v.notify.Error(Message(err, "Login failed. Please check your credentials."))
		return err
	}
	name := identity.Name
	if name == "" {
		name = identity.Email
	}
	v.notify.Success("Welcome back, " + name + "!")
	return nil
}

func (v *View) Logout(ctx context.Context) error {
	if err := v.sf.Session.Logout(ctx); err != nil {
		v.notify.Error(Message(err, "Failed to log out."))
		return err
	}
	v.notify.Success("You have been logged out.")
	return nil
}

func (v *View) Profile(ctx context.Context) error {
	p, err := v.sf.Session.Profile(ctx)
	if err != nil {
		v.notify.Error(msgProfileLoad)
		return err
	}
	return v.render("profile", p)
}

func (v *View) UpdateProfile(ctx context.Context, name, email, password, confirm string) error {
	p, err := v.sf.Session.UpdateProfile(ctx, name, email, password, confirm)
	if err != nil {
		v.notify.Error(Message(err, "Failed to update profile."))
		return err
	}
	v.notify.Success("Profile updated successfully!")
	return v.render("profile", p)
}

// Rendering

func (v *View) render(name string, data any) error {
	tw := tabwriter.NewWriter(v.out, 0, 4, 2, ' ', 0)
	if err := templates.ExecuteTemplate(tw, name, data); err != nil {
		v.log.WithError(err).WithField("template", name).Error("failed to render page")
		return err
	}
	return tw.Flush()
}

// renderError replaces a page whose data could not be loaded.
func (v *View) renderError(err error, fallback string) error {
	v.log.WithError(err).Warn("page failed to load")
	hint := msgRetryHint
	if needsLogin(err) {
		hint = msgLoginHint
	}
	if rerr := v.render("error", map[string]any{
		"Message": Message(err, fallback),
		"Hint":    hint,
	}); rerr != nil {
		return rerr
	}
	return err
}

func renderMoney(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}

func renderStock(count int) string {
	if count < 1 {
		return "Out of Stock"
	}
	return fmt.Sprint(count)
}

func renderState(s order.State) string {
	switch s {
	case order.StatePaid:
		return "Paid"
	case order.StateConfirmationFailed:
		return "Payment not confirmed"
	default:
		return "Created"
	}
}

func renderDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
