package domain

import "time"

// Customer описывает клиента магазина. В рамках сервиса заказов клиент
// только читается: регистрацией и изменением профиля занимается внешний сервис.
type Customer struct {
	ID string
	// UserID — уникальный внешний идентификатор пользователя (логин).
	UserID string
	// Password хранится как непрозрачная строка; сервис заказов её не проверяет.
	Password  string
	CreatedAt time.Time
}

// Equal сравнивает клиентов по бизнес-ключу UserID, а не по внутреннему ID.
func (c Customer) Equal(other Customer) bool {
	return c.UserID == other.UserID
}
