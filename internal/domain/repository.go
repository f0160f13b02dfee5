package domain

// CustomerRepository описывает чтение клиентов. Запись выполняет внешний сервис.
type CustomerRepository interface {
	// Get возвращает клиента по идентификатору или ErrCustomerNotFound.
	Get(id string) (Customer, error)
}

// ProductRepository описывает чтение товаров без блокировок (для отображения).
// Эксклюзивное чтение под запись выполняется только внутри OrderUnitOfWork.
type ProductRepository interface {
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(id string) (Product, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByCustomer возвращает заказы клиента в хронологическом порядке.
	// Пустой список не является ошибкой.
	ListByCustomer(customerID string) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}
