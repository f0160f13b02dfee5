package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// unitOfWork выполняет мутации заказа и остатка как одну атомарную операцию.
// Эксклюзивность по товару обеспечивает productLocks: пока один вызов держит
// ключ, второй ждёт commit или rollback первого, затем видит уже списанный
// остаток.
type unitOfWork struct {
	store *Store
}

// CreateOrder захватывает товар, вызывает build и атомарно сохраняет заказ
// вместе с изменённым остатком. Любая ошибка из build откатывает всё.
func (u *unitOfWork) CreateOrder(ctx context.Context, productID string, build func(product *domain.Product) (domain.Order, error)) error {
	if err := u.store.locks.acquire(ctx, productID, u.store.lockTimeout); err != nil {
		return err
	}
	defer u.store.locks.release(productID)

	u.store.mu.RLock()
	product, ok := u.store.products[productID]
	u.store.mu.RUnlock()
	if !ok {
		return domain.ErrProductNotFound
	}

	order, err := build(&product)
	if err != nil {
		return err
	}

	// Commit: заказ и новый остаток становятся видимыми одновременно.
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	if _, exists := u.store.orders[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	product.UpdatedAt = time.Now().UTC()
	u.store.products[productID] = product
	u.store.orders[order.ID] = cloneOrder(order)
	return nil
}

// CancelOrder захватывает товар первой позиции заказа и атомарно сохраняет
// изменённый заказ вместе с возвращённым остатком.
func (u *unitOfWork) CancelOrder(ctx context.Context, orderID string, apply func(order *domain.Order, product *domain.Product) error) error {
	u.store.mu.RLock()
	stored, ok := u.store.orders[orderID]
	u.store.mu.RUnlock()
	if !ok {
		return domain.ErrOrderNotFound
	}
	if len(stored.Items) == 0 {
		return domain.ErrOrderNotCancellable
	}
	productID := stored.Items[0].ProductID

	if err := u.store.locks.acquire(ctx, productID, u.store.lockTimeout); err != nil {
		return err
	}
	defer u.store.locks.release(productID)

	// Перечитываем под блокировкой: состояние могло измениться во время ожидания.
	u.store.mu.RLock()
	order, ok := u.store.orders[orderID]
	if !ok {
		u.store.mu.RUnlock()
		return domain.ErrOrderNotFound
	}
	order = cloneOrder(order)
	product, productExists := u.store.products[productID]
	u.store.mu.RUnlock()
	if !productExists {
		return domain.ErrProductNotFound
	}

	baseVersion := order.Version

	if err := apply(&order, &product); err != nil {
		return err
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	// Заказ не защищён блокировкой товара, поэтому страхуемся версией.
	if current, ok := u.store.orders[orderID]; !ok || current.Version != baseVersion {
		return domain.ErrOrderVersionConflict
	}
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	product.UpdatedAt = order.UpdatedAt
	u.store.orders[orderID] = cloneOrder(order)
	u.store.products[productID] = product
	return nil
}

var _ domain.OrderUnitOfWork = (*unitOfWork)(nil)
