package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// orderRepository — in-memory реализация OrderRepository поверх Store.
type orderRepository struct {
	store *Store
}

// Get возвращает копию заказа или ErrOrderNotFound, если его нет.
func (r *orderRepository) Get(id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByCustomer возвращает заказы клиента в порядке оформления.
func (r *orderRepository) ListByCustomer(customerID string) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.store.orders {
		if order.CustomerID != customerID {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OrderDate.Equal(result[j].OrderDate) {
			return result[i].OrderDate.Before(result[j].OrderDate)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepository) Save(order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	r.store.orders[order.ID] = cloneOrder(order)
	return nil
}

// cloneOrder копирует заказ вместе с позициями, чтобы избежать
// непредсказуемых мутаций извне.
func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Items = append([]domain.OrderItem(nil), order.Items...)
	if order.PaymentMethod != nil {
		method := *order.PaymentMethod
		clone.PaymentMethod = &method
	}
	return clone
}

var _ domain.OrderRepository = (*orderRepository)(nil)
