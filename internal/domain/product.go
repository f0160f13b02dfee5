package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога с конечным остатком на складе.
type Product struct {
	ID   string
	Name string
	// Price — цена за единицу. Точная десятичная арифметика, без float.
	Price decimal.Decimal
	// Quantity — остаток на складе. Инвариант: всегда >= 0.
	Quantity  int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Equal сравнивает товары по идентификатору.
func (p Product) Equal(other Product) bool {
	return p.ID == other.ID
}

// DecreaseStock списывает qty единиц со склада. Возвращает ErrInsufficientStock,
// если списание сделало бы остаток отрицательным; остаток при этом не меняется.
func (p *Product) DecreaseStock(qty int32) error {
	if qty <= 0 {
		return ErrRequestInvalid.WithMessage("quantity must be greater than zero")
	}
	if p.Quantity-qty < 0 {
		return ErrInsufficientStock
	}
	p.Quantity -= qty
	return nil
}

// IncreaseStock безусловно возвращает qty единиц на склад (компенсация при отмене).
func (p *Product) IncreaseStock(qty int32) {
	if qty <= 0 {
		return
	}
	p.Quantity += qty
}
