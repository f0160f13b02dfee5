package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

const (
	pgCodeLockNotAvailable = "55P03"
	pgCodeUniqueViolation  = "23505"
)

// unitOfWork выполняет создание и отмену заказа одной транзакцией.
// Строка товара берётся через SELECT ... FOR UPDATE, конкурирующие
// запросы на тот же товар выстраиваются в очередь на уровне БД.
type unitOfWork struct {
	db              *sql.DB
	lockWaitTimeout time.Duration
}

// NewUnitOfWork создаёт PostgreSQL-реализацию OrderUnitOfWork.
func NewUnitOfWork(store *Store) domain.OrderUnitOfWork {
	return &unitOfWork{
		db:              store.DB(),
		lockWaitTimeout: store.LockWaitTimeout(),
	}
}

func (u *unitOfWork) CreateOrder(ctx context.Context, productID string, build func(product *domain.Product) (domain.Order, error)) error {
	return u.inTx(ctx, func(tx *sql.Tx) error {
		product, err := lockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		order, err := build(&product)
		if err != nil {
			return err
		}

		if err := insertOrder(ctx, tx, order); err != nil {
			return err
		}
		return updateProduct(ctx, tx, product)
	})
}

func (u *unitOfWork) CancelOrder(ctx context.Context, orderID string, apply func(order *domain.Order, product *domain.Product) error) error {
	return u.inTx(ctx, func(tx *sql.Tx) error {
		order, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		items, err := loadOrderItems(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		order.Items = items
		if len(order.Items) == 0 {
			return domain.ErrOrderNotCancellable
		}

		product, err := lockProduct(ctx, tx, order.Items[0].ProductID)
		if err != nil {
			return err
		}

		if err := apply(&order, &product); err != nil {
			return err
		}

		if err := updateLockedOrder(ctx, tx, order); err != nil {
			return err
		}
		return updateProduct(ctx, tx, product)
	})
}

func (u *unitOfWork) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	// lock_timeout действует только внутри текущей транзакции.
	timeoutSQL := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockWaitTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, timeoutSQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set lock timeout: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func lockProduct(ctx context.Context, tx *sql.Tx, productID string) (domain.Product, error) {
	var product domain.Product
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, price, quantity, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, productID).Scan(
		&product.ID, &product.Name, &product.Price,
		&product.Quantity, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return domain.Product{}, domain.ErrProductNotFound
		case isLockNotAvailable(err):
			return domain.Product{}, domain.ErrLockWaitTimeout
		default:
			return domain.Product{}, fmt.Errorf("lock product: %w", err)
		}
	}

	return product, nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, orderID string) (domain.Order, error) {
	var (
		order         domain.Order
		paymentMethod sql.NullString
		status        string
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, customer_id, payment_method, status, order_date, version, updated_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID).Scan(
		&order.ID, &order.CustomerID, &paymentMethod,
		&status, &order.OrderDate, &order.Version, &order.UpdatedAt,
	)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return domain.Order{}, domain.ErrOrderNotFound
		case isLockNotAvailable(err):
			return domain.Order{}, domain.ErrLockWaitTimeout
		default:
			return domain.Order{}, fmt.Errorf("lock order: %w", err)
		}
	}

	order.Status = domain.OrderStatus(status)
	if paymentMethod.Valid {
		method := domain.PaymentType(paymentMethod.String)
		order.PaymentMethod = &method
	}
	order.OrderDate = order.OrderDate.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()

	return order, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, payment_method, status, order_date, version, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		order.ID, order.CustomerID, paymentMethodValue(order.PaymentMethod),
		string(order.Status), order.OrderDate, order.Version, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, product_name, unit_price, qty, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			item.ID, order.ID, item.ProductID, item.ProductName,
			item.UnitPrice, item.Qty, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func updateLockedOrder(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET payment_method = $1,
		    status = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $4
	`,
		paymentMethodValue(order.PaymentMethod),
		string(order.Status),
		time.Now().UTC(),
		order.ID,
	); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func updateProduct(ctx context.Context, tx *sql.Tx, product domain.Product) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = $1,
		    updated_at = $2
		WHERE id = $3
	`, product.Quantity, time.Now().UTC(), product.ID); err != nil {
		return fmt.Errorf("update product stock: %w", err)
	}
	return nil
}

func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeLockNotAvailable
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation
}

var _ domain.OrderUnitOfWork = (*unitOfWork)(nil)
