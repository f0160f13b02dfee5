package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func newQueryFixture(t *testing.T) (*engineFixture, *Query) {
	t.Helper()
	f := newEngineFixture(t, 100)
	return f, NewQuery(f.store.Orders(), f.timeline, nil)
}

func TestQueryGetOrder(t *testing.T) {
	f, query := newQueryFixture(t)

	created, err := f.engine.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: testCustomerID,
		ProductID:  testProductID,
		Qty:        2,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	view, err := query.GetOrder(created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}

	if view.OrderID != created.ID {
		t.Errorf("expected order id %q, got %q", created.ID, view.OrderID)
	}
	if view.CustomerID != testCustomerID {
		t.Errorf("expected customer id %q, got %q", testCustomerID, view.CustomerID)
	}
	if view.Status != "CREATED" {
		t.Errorf("expected status CREATED, got %q", view.Status)
	}
	if view.PaymentMethod != domain.PaymentLabelUnpaid {
		t.Errorf("expected payment UNPAID, got %q", view.PaymentMethod)
	}
	if len(view.OrderItems) != 1 {
		t.Fatalf("expected 1 item, got %d", len(view.OrderItems))
	}
	item := view.OrderItems[0]
	if item.ProductID != testProductID || item.ProductName != "Keyboard" {
		t.Errorf("unexpected item projection: %+v", item)
	}
	if item.Price != 100 {
		t.Errorf("expected integer price 100, got %d", item.Price)
	}
	if item.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", item.Quantity)
	}

	parsed, err := time.Parse(domain.OrderDateLayout, view.OrderDate)
	if err != nil {
		t.Fatalf("order date %q does not match layout: %v", view.OrderDate, err)
	}
	if parsed.IsZero() {
		t.Error("expected non-zero order date")
	}
}

func TestQueryGetOrder_PaymentLabel(t *testing.T) {
	f, query := newQueryFixture(t)

	created, err := f.engine.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID:         testCustomerID,
		ProductID:          testProductID,
		Qty:                1,
		PaymentMethodLabel: "CREDITCARD",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	view, err := query.GetOrder(created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if view.Status != "COMPLETED" {
		t.Errorf("expected status COMPLETED, got %q", view.Status)
	}
	if view.PaymentMethod != "CREDITCARD" {
		t.Errorf("expected payment CREDITCARD, got %q", view.PaymentMethod)
	}
}

func TestQueryGetOrder_NotFound(t *testing.T) {
	_, query := newQueryFixture(t)

	_, err := query.GetOrder("missing")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
}

func TestQueryListOrders(t *testing.T) {
	f, query := newQueryFixture(t)

	first, err := f.engine.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: testCustomerID,
		ProductID:  testProductID,
		Qty:        1,
	})
	if err != nil {
		t.Fatalf("create first order: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := f.engine.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: testCustomerID,
		ProductID:  testProductID,
		Qty:        2,
	})
	if err != nil {
		t.Fatalf("create second order: %v", err)
	}

	views, err := query.ListOrders(testCustomerID)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(views))
	}
	if views[0].OrderID != first.ID || views[1].OrderID != second.ID {
		t.Errorf("expected chronological order [%s %s], got [%s %s]",
			first.ID, second.ID, views[0].OrderID, views[1].OrderID)
	}
}

func TestQueryListOrders_Empty(t *testing.T) {
	_, query := newQueryFixture(t)

	views, err := query.ListOrders("customer-without-orders")
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("expected empty list, got %d orders", len(views))
	}
}

func TestQueryGetTimeline(t *testing.T) {
	f, query := newQueryFixture(t)

	created, err := f.engine.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: testCustomerID,
		ProductID:  testProductID,
		Qty:        1,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := f.engine.CancelOrder(context.Background(), created.ID); err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	events, err := query.GetTimeline(created.ID)
	if err != nil {
		t.Fatalf("get timeline: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 timeline events, got %d", len(events))
	}
	if events[0].Type != "order.created" || events[1].Type != "order.cancelled" {
		t.Errorf("unexpected event order: %+v", events)
	}
	for _, event := range events {
		if _, err := time.Parse(domain.OrderDateLayout, event.Occurred); err != nil {
			t.Errorf("occurred %q does not match layout: %v", event.Occurred, err)
		}
	}
}

func TestQueryGetTimeline_OrderNotFound(t *testing.T) {
	_, query := newQueryFixture(t)

	_, err := query.GetTimeline("missing")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
}
