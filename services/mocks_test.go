package services_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	"checkout-service/apperrors"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// harness wires every collaborator to fakes that append to one shared call
// log, so tests can assert on ordering across collaborators.
type harness struct {
	log []string

	tx        *fakeTx
	carts     *fakeCarts
	inventory *fakeInventory
	coupons   *fakeCoupons
	orders    *fakeOrders
	payments  *fakePayments
	events    *fakeEvents
	journal   *fakeJournal
	metrics   *fakeMetrics

	txCreated int
}

func newHarness() *harness {
	h := &harness{}
	h.tx = &fakeTx{h: h, maxRetries: 2}
	h.carts = &fakeCarts{h: h}
	h.inventory = &fakeInventory{h: h, outOfStock: map[uint]bool{}, deductErr: map[uint]error{}, addErr: map[uint]error{}}
	h.coupons = &fakeCoupons{h: h, markErr: map[uint]error{}, revertErr: map[uint]error{}}
	h.orders = &fakeOrders{h: h}
	h.payments = &fakePayments{h: h}
	h.events = &fakeEvents{}
	h.journal = &fakeJournal{}
	h.metrics = &fakeMetrics{}
	return h
}

func (h *harness) deps() services.Dependencies {
	return services.Dependencies{
		Carts:     h.carts,
		Inventory: h.inventory,
		Coupons:   h.coupons,
		Orders:    h.orders,
		Payments:  h.payments,
		NewTransaction: func() services.TransactionCoordinator {
			h.txCreated++
			return h.tx
		},
		Events:  h.events,
		Journal: h.journal,
		Metrics: h.metrics,
		Logger:  zap.NewNop(),
	}
}

func (h *harness) call(format string, args ...interface{}) {
	h.log = append(h.log, fmt.Sprintf(format, args...))
}

// calls returns the logged calls whose name starts with prefix.
func (h *harness) calls(prefix string) []string {
	var out []string
	for _, c := range h.log {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

var mutatingCalls = []string{
	"Begin", "CreateFromCart", "ConfirmDeduction", "MarkUsed", "ClearCart", "RestoreCart",
	"AddStock", "RevertUsage", "UpdateStatus", "Refund", "Commit",
}

func (h *harness) mutations() []string {
	var out []string
	for _, prefix := range mutatingCalls {
		out = append(out, h.calls(prefix)...)
	}
	return out
}

// ---- transaction ----

type fakeTx struct {
	h          *harness
	maxRetries int
	beginErrs  []error
	commitErr  error
	savepoints int
}

func (t *fakeTx) BeginTransaction(ctx context.Context) (context.Context, error) {
	t.h.call("Begin")
	if len(t.beginErrs) > 0 {
		err := t.beginErrs[0]
		t.beginErrs = t.beginErrs[1:]
		if err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

func (t *fakeTx) Commit(_ context.Context) error {
	t.h.call("Commit")
	return t.commitErr
}

func (t *fakeTx) Rollback(_ context.Context) error {
	t.h.call("Rollback")
	return nil
}

func (t *fakeTx) WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	t.savepoints++
	return fn(ctx)
}

func (t *fakeTx) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
	}
	return err
}

// ---- cart ----

type fakeCarts struct {
	h          *harness
	cart       *models.Cart
	getErr     error
	clearErr   error
	restoreErr error
	restored   *models.Cart
}

func (c *fakeCarts) GetActiveCart(_ context.Context, cartID uint) (*models.Cart, error) {
	c.h.call("GetActiveCart:%d", cartID)
	if c.getErr != nil {
		return nil, c.getErr
	}
	if c.cart == nil {
		return nil, apperrors.ErrNotFound
	}
	return c.cart, nil
}

func (c *fakeCarts) ClearCart(_ context.Context, cartID, userID uint, sessionID string) error {
	c.h.call("ClearCart:%d:%d:%s", cartID, userID, sessionID)
	return c.clearErr
}

func (c *fakeCarts) RestoreCart(_ context.Context, cart *models.Cart, sessionID string) error {
	c.h.call("RestoreCart:%d:%d:%s", cart.ID, cart.UserID, sessionID)
	if c.restoreErr != nil {
		return c.restoreErr
	}
	c.restored = cart
	return nil
}

// ---- inventory ----

type fakeInventory struct {
	h          *harness
	outOfStock map[uint]bool
	probePanic string
	deductErr  map[uint]error
	addErr     map[uint]error
	notes      []string
}

func (i *fakeInventory) IsInStock(_ context.Context, productID uint, quantity int) (bool, error) {
	i.h.call("IsInStock:%d:%d", productID, quantity)
	if i.probePanic != "" {
		panic(i.probePanic)
	}
	return !i.outOfStock[productID], nil
}

func (i *fakeInventory) ConfirmDeduction(_ context.Context, productID uint, quantity int, orderID uint, source string) error {
	i.h.call("ConfirmDeduction:%d:%d:%d:%s", productID, quantity, orderID, source)
	return i.deductErr[productID]
}

func (i *fakeInventory) AddStock(_ context.Context, productID uint, quantity int, note string, performedBy uint) error {
	i.h.call("AddStock:%d:%d:%d", productID, quantity, performedBy)
	i.notes = append(i.notes, note)
	return i.addErr[productID]
}

// ---- coupons ----

type fakeCoupons struct {
	h         *harness
	markErr   map[uint]error
	revertErr map[uint]error
	usedIDs   []uint
	lookupErr error
}

func (c *fakeCoupons) MarkUsed(_ context.Context, userID, couponID, orderID uint) error {
	c.h.call("MarkUsed:%d:%d:%d", userID, couponID, orderID)
	return c.markErr[couponID]
}

func (c *fakeCoupons) RevertUsage(_ context.Context, userID, couponID, orderID uint) error {
	c.h.call("RevertUsage:%d:%d:%d", userID, couponID, orderID)
	return c.revertErr[couponID]
}

func (c *fakeCoupons) GetCouponIDsUsedInOrder(_ context.Context, orderID uint) ([]uint, error) {
	c.h.call("GetCouponIDsUsedInOrder:%d", orderID)
	return c.usedIDs, c.lookupErr
}

// ---- orders ----

type fakeOrders struct {
	h           *harness
	order       *models.Order
	getErr      error
	createErr   error
	createPanic string
	updateErr   error
	nextID      uint
}

func (o *fakeOrders) CreateFromCart(_ context.Context, cart *models.Cart, draft *models.OrderDraft, userID uint) (*models.Order, error) {
	o.h.call("CreateFromCart:%d:%d", cart.ID, userID)
	if o.createPanic != "" {
		panic(o.createPanic)
	}
	if o.createErr != nil {
		return nil, o.createErr
	}
	o.nextID++
	items := make([]models.OrderItem, 0, len(cart.CartItems))
	for _, item := range cart.CartItems {
		items = append(items, models.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return &models.Order{
		ID:              100 + o.nextID,
		ReferenceNumber: "ORD-TEST",
		UserID:          userID,
		CartID:          cart.ID,
		Status:          models.OrderStatusPending,
		SubTotal:        cart.SubTotal(),
		ShippingAddress: draft.ShippingAddress,
		Total:           cart.SubTotal(),
		OrderItems:      items,
	}, nil
}

func (o *fakeOrders) GetByID(_ context.Context, id uint) (*models.Order, error) {
	o.h.call("GetByID:%d", id)
	if o.getErr != nil {
		return nil, o.getErr
	}
	if o.order == nil || o.order.ID != id {
		return nil, apperrors.ErrNotFound
	}
	return o.order, nil
}

func (o *fakeOrders) UpdateStatus(_ context.Context, id uint, status models.OrderStatus) error {
	o.h.call("UpdateStatus:%d:%s", id, status)
	return o.updateErr
}

// ---- payments ----

type fakePayments struct {
	h         *harness
	payment   *models.Payment
	getErr    error
	resp      *models.RefundResponse
	refundErr error
	amount    decimal.Decimal
}

func (p *fakePayments) GetByOrderID(_ context.Context, orderID uint) (*models.Payment, error) {
	p.h.call("GetByOrderID:%d", orderID)
	if p.getErr != nil {
		return nil, p.getErr
	}
	if p.payment == nil {
		return nil, apperrors.ErrNotFound
	}
	return p.payment, nil
}

func (p *fakePayments) Refund(_ context.Context, paymentID uuid.UUID, amount decimal.Decimal, reason string) (*models.RefundResponse, error) {
	p.h.call("Refund:%s:%s", amount.StringFixed(2), reason)
	p.amount = amount
	if p.refundErr != nil {
		return nil, p.refundErr
	}
	if p.resp != nil {
		return p.resp, nil
	}
	return &models.RefundResponse{
		IsSuccess: true,
		Data:      models.RefundData{Success: true, RefundID: "re_test", Amount: amount, Status: "succeeded"},
	}, nil
}

// ---- events, journal, metrics ----

type fakeEvents struct {
	published []models.OrderEvent
	err       error
	deadlines []time.Duration
}

func (e *fakeEvents) Publish(ctx context.Context, event models.OrderEvent) error {
	if deadline, ok := ctx.Deadline(); ok {
		e.deadlines = append(e.deadlines, time.Until(deadline))
	}
	e.published = append(e.published, event)
	return e.err
}

type fakeJournal struct {
	entries []*models.SagaLog
}

func (j *fakeJournal) Append(_ context.Context, entry *models.SagaLog) error {
	j.entries = append(j.entries, entry)
	return nil
}

type fakeMetrics struct {
	names []string
}

func (m *fakeMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.names = append(m.names, name)
	return nil
}

// ---- fixtures ----

func activeCart() *models.Cart {
	return &models.Cart{
		ID:        1,
		UserID:    9,
		SessionID: "sess-1",
		Status:    models.CartStatusActive,
		CartItems: []models.CartItem{
			{ProductID: 10, Quantity: 2, UnitPrice: decimal.RequireFromString("5.00")},
			{ProductID: 20, Quantity: 3, UnitPrice: decimal.RequireFromString("10.00")},
		},
		CartCoupons: []models.CartCoupon{
			{CouponID: 7, Code: "SAVE5", DiscountAmount: decimal.RequireFromString("5.00")},
		},
	}
}

func placedOrder(status models.OrderStatus) *models.Order {
	return &models.Order{
		ID:              42,
		ReferenceNumber: "ORD-20260101-120000-abcd1234",
		UserID:          9,
		Status:          status,
		Total:           decimal.RequireFromString("100.00"),
		OrderItems: []models.OrderItem{
			{ProductID: 10, Quantity: 2},
			{ProductID: 20, Quantity: 1},
		},
	}
}

func completedPayment(amount string) *models.Payment {
	return &models.Payment{
		ID:      uuid.New(),
		OrderID: 42,
		Amount:  decimal.RequireFromString(amount),
		Status:  models.PaymentStatusCompleted,
	}
}
