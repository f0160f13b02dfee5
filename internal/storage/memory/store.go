package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const defaultLockTimeout = 3 * time.Second

// Store — in-memory хранилище каталога и заказов для локальной разработки и
// тестов. Всё разделяемое состояние живёт здесь и мутируется только внутри
// unit of work; вне его данные читаются по копиям.
type Store struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]domain.Order

	locks       *productLocks
	lockTimeout time.Duration
}

// NewStore создаёт пустое in-memory хранилище с таймаутом ожидания
// блокировки товара по умолчанию.
func NewStore() *Store {
	return NewStoreWithLockTimeout(defaultLockTimeout)
}

// NewStoreWithLockTimeout создаёт хранилище с явным таймаутом ожидания блокировки.
func NewStoreWithLockTimeout(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &Store{
		customers:   make(map[string]domain.Customer),
		products:    make(map[string]domain.Product),
		orders:      make(map[string]domain.Order),
		locks:       newProductLocks(),
		lockTimeout: lockTimeout,
	}
}

// PutCustomer сохраняет клиента. Запись клиентов — зона внешнего сервиса,
// метод нужен для seed-данных и тестов.
func (s *Store) PutCustomer(customer domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[customer.ID] = customer
}

// PutProduct сохраняет товар каталога (seed-данные и тесты).
func (s *Store) PutProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
}

// Customers возвращает read-only представление клиентов.
func (s *Store) Customers() domain.CustomerRepository {
	return customerView{store: s}
}

// Products возвращает lock-free представление товаров для отображения.
func (s *Store) Products() domain.ProductRepository {
	return productView{store: s}
}

// Orders возвращает репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepository{store: s}
}

// UnitOfWork возвращает атомарную единицу работы над заказами и складом.
func (s *Store) UnitOfWork() domain.OrderUnitOfWork {
	return &unitOfWork{store: s}
}

type customerView struct {
	store *Store
}

// Get возвращает клиента или ErrCustomerNotFound.
func (v customerView) Get(id string) (domain.Customer, error) {
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()

	customer, ok := v.store.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

type productView struct {
	store *Store
}

// Get возвращает товар без блокировки строки (committed read).
func (v productView) Get(id string) (domain.Product, error) {
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()

	product, ok := v.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// productLocks реализует эксклюзивную блокировку по ключу товара с ограниченным
// ожиданием. Семафор ёмкости 1 на ключ: второй конкурентный вызов блокируется
// до release или до истечения таймаута.
type productLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newProductLocks() *productLocks {
	return &productLocks{slots: make(map[string]chan struct{})}
}

func (l *productLocks) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	return slot
}

// acquire блокирует ключ или возвращает ErrLockWaitTimeout / ошибку контекста.
func (l *productLocks) acquire(ctx context.Context, key string, timeout time.Duration) error {
	slot := l.slot(key)

	select {
	case slot <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return domain.ErrLockWaitTimeout
	}
}

func (l *productLocks) release(key string) {
	<-l.slot(key)
}

var (
	_ domain.CustomerRepository = customerView{}
	_ domain.ProductRepository  = productView{}
)
