package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func buildIntegrationOrder(customerID string, product *domain.Product, qty int32) (domain.Order, error) {
	if err := product.DecreaseStock(qty); err != nil {
		return domain.Order{}, err
	}
	now := time.Now().UTC()
	orderID := uuid.NewString()
	return domain.Order{
		ID:         orderID,
		CustomerID: customerID,
		Status:     domain.OrderStatusCreated,
		Items: []domain.OrderItem{
			{
				ID:          uuid.NewString(),
				OrderID:     orderID,
				ProductID:   product.ID,
				ProductName: product.Name,
				UnitPrice:   product.Price,
				Qty:         qty,
				CreatedAt:   now,
			},
		},
		OrderDate: now,
		UpdatedAt: now,
	}, nil
}

func TestUnitOfWork_PostgresCreateOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCustomerForIntegrationTest(t, store, "customer-1")
	seedProductForIntegrationTest(t, store, "product-1", 100)

	uow := NewUnitOfWork(store)
	err := uow.CreateOrder(context.Background(), "product-1", func(p *domain.Product) (domain.Order, error) {
		return buildIntegrationOrder("customer-1", p, 3)
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	product, err := NewProductRepository(store).Get("product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 97 {
		t.Fatalf("expected quantity 97, got %d", product.Quantity)
	}
}

func TestUnitOfWork_PostgresCreateOrder_ProductNotFound(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	uow := NewUnitOfWork(store)
	err := uow.CreateOrder(context.Background(), "missing", func(p *domain.Product) (domain.Order, error) {
		t.Fatal("build must not run for a missing product")
		return domain.Order{}, nil
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestUnitOfWork_PostgresCreateOrder_RollbackOnInsufficientStock(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCustomerForIntegrationTest(t, store, "customer-1")
	seedProductForIntegrationTest(t, store, "product-1", 1)

	uow := NewUnitOfWork(store)
	err := uow.CreateOrder(context.Background(), "product-1", func(p *domain.Product) (domain.Order, error) {
		return buildIntegrationOrder("customer-1", p, 2)
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	product, err := NewProductRepository(store).Get("product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 1 {
		t.Fatalf("expected quantity 1 after rollback, got %d", product.Quantity)
	}

	orders, err := NewOrderRepository(store).ListByCustomer("customer-1")
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders after rollback, got %d", len(orders))
	}
}

// Остаток не уходит в минус при конкурентных заказах одного товара.
func TestUnitOfWork_PostgresCreateOrder_ConcurrentStockNeverNegative(t *testing.T) {
	const (
		initialStock = 5
		callers      = 20
	)

	store := openPostgresStoreForIntegrationTest(t)
	seedCustomerForIntegrationTest(t, store, "customer-1")
	seedProductForIntegrationTest(t, store, "product-1", initialStock)

	uow := NewUnitOfWork(store)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succeeded  int
		outOfStock int
		unexpected []error
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := uow.CreateOrder(context.Background(), "product-1", func(p *domain.Product) (domain.Order, error) {
				return buildIntegrationOrder("customer-1", p, 1)
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				outOfStock++
			default:
				unexpected = append(unexpected, fmt.Errorf("caller %d: %w", n, err))
			}
		}(i)
	}
	wg.Wait()

	for _, err := range unexpected {
		t.Errorf("unexpected error: %v", err)
	}
	if succeeded != initialStock {
		t.Fatalf("expected exactly %d successful orders, got %d", initialStock, succeeded)
	}
	if outOfStock != callers-initialStock {
		t.Fatalf("expected %d out-of-stock failures, got %d", callers-initialStock, outOfStock)
	}

	product, err := NewProductRepository(store).Get("product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 0 {
		t.Fatalf("expected final quantity 0, got %d", product.Quantity)
	}
}

func TestUnitOfWork_PostgresCancelOrder_RestoresStock(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCustomerForIntegrationTest(t, store, "customer-1")
	seedProductForIntegrationTest(t, store, "product-1", 10)

	uow := NewUnitOfWork(store)

	var orderID string
	err := uow.CreateOrder(context.Background(), "product-1", func(p *domain.Product) (domain.Order, error) {
		order, err := buildIntegrationOrder("customer-1", p, 4)
		orderID = order.ID
		return order, err
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	err = uow.CancelOrder(context.Background(), orderID, func(order *domain.Order, product *domain.Product) error {
		order.Cancel()
		product.IncreaseStock(order.Items[0].Qty)
		return nil
	})
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	product, err := NewProductRepository(store).Get("product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Quantity != 10 {
		t.Fatalf("expected quantity 10 after cancel, got %d", product.Quantity)
	}

	order, err := NewOrderRepository(store).Get(orderID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", order.Status)
	}
}

func TestUnitOfWork_PostgresCancelOrder_NotFound(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)

	uow := NewUnitOfWork(store)
	err := uow.CancelOrder(context.Background(), "missing", func(order *domain.Order, product *domain.Product) error {
		t.Fatal("apply must not run for a missing order")
		return nil
	})
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestPgErrorClassification(t *testing.T) {
	t.Parallel()

	if !isLockNotAvailable(&pgconn.PgError{Code: "55P03"}) {
		t.Fatal("expected lock-not-available for code 55P03")
	}
	if isLockNotAvailable(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique violation must not classify as lock-not-available")
	}
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}
