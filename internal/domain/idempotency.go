package domain

import "time"

// IdempotencyStatus описывает жизненный цикл ключа Idempotency-Key
// из заголовка POST /orders.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing означает, что первый запрос с ключом принят
	// и ещё выполняется. Повтор в этом состоянии получает транзиентный отказ.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone означает, что заказ создан и ответ 201 сохранён.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed означает, что создание завершилось бизнес-ошибкой;
	// сохранённый envelope воспроизводится при повторе.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord хранит первый ответ на запрос создания заказа.
// RequestHash (sha256 тела) защищает от переиспользования ключа с другим
// запросом; ResponseBody и HTTPStatus воспроизводятся байт в байт при повторе.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}
