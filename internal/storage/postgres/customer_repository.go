package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB()}
}

func (r *customerRepository) Get(id string) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var customer domain.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, password, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.UserID, &customer.Password, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}

	return customer, nil
}

// Put добавляет или обновляет клиента. Используется сидированием и тестами.
func (r *customerRepository) Put(customer domain.Customer) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, user_id, password, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    password = EXCLUDED.password
	`, customer.ID, customer.UserID, customer.Password, customer.CreatedAt); err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}

	return nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
