package domain

import "errors"

// ErrorKind различает бизнес-ошибки независимо от текста сообщения.
type ErrorKind string

const (
	KindRequestInvalid         ErrorKind = "request_invalid"
	KindCustomerNotFound       ErrorKind = "customer_not_found"
	KindProductNotFound        ErrorKind = "product_not_found"
	KindOrderNotFound          ErrorKind = "order_not_found"
	KindInsufficientStock      ErrorKind = "insufficient_stock"
	KindDifferentPaymentAmount ErrorKind = "different_payment_amount"
	KindOrderNotCancellable    ErrorKind = "order_not_cancellable"
	KindLockWaitTimeout        ErrorKind = "lock_wait_timeout"
)

// Error — терминальная бизнес-ошибка со стабильным числовым кодом для wire-формата.
// Код попадает в HTTP-ответ как есть: 404-семейство для not-found,
// 500-семейство для нарушений бизнес-правил, 503 для транзиентных ошибок.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is сравнивает ошибки по Kind, чтобы errors.Is работал для вариантов
// с уточнённым сообщением (см. WithMessage).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// WithMessage возвращает копию ошибки с уточнённым сообщением.
// Kind и Code сохраняются, поэтому errors.Is продолжает работать.
func (e *Error) WithMessage(message string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: message}
}

var (
	// ErrRequestInvalid — в запросе отсутствует обязательное поле или оно некорректно.
	ErrRequestInvalid = &Error{Kind: KindRequestInvalid, Code: 500, Message: "request is missing a required field"}
	// ErrCustomerNotFound — клиент с таким идентификатором не существует.
	ErrCustomerNotFound = &Error{Kind: KindCustomerNotFound, Code: 404, Message: "customer not found"}
	// ErrProductNotFound — товар с таким идентификатором не существует.
	ErrProductNotFound = &Error{Kind: KindProductNotFound, Code: 404, Message: "product not found"}
	// ErrOrderNotFound — заказ с таким идентификатором не существует.
	ErrOrderNotFound = &Error{Kind: KindOrderNotFound, Code: 404, Message: "order not found"}
	// ErrInsufficientStock — списание сделало бы остаток товара отрицательным.
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Code: 404, Message: "product is out of stock"}
	// ErrDifferentPaymentAmount — сумма платежа не совпадает с суммой заказа.
	ErrDifferentPaymentAmount = &Error{Kind: KindDifferentPaymentAmount, Code: 500, Message: "payment amount does not match the order amount"}
	// ErrOrderNotCancellable — заказ уже завершён и не может быть отменён.
	ErrOrderNotCancellable = &Error{Kind: KindOrderNotCancellable, Code: 500, Message: "order can no longer be cancelled"}
	// ErrLockWaitTimeout — не дождались эксклюзивной блокировки товара.
	// Транзиентная ошибка: запрос можно повторить.
	ErrLockWaitTimeout = &Error{Kind: KindLockWaitTimeout, Code: 503, Message: "timed out waiting for the product lock"}
)

var (
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой hash запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound — запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists — ключ уже занят тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
)

// AsBusinessError извлекает *Error из цепочки обёрток.
func AsBusinessError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsRetryable сообщает, имеет ли смысл повторять запрос после этой ошибки.
// Сейчас транзиентен только lock timeout: это сигнал о конкуренции за товар,
// а не о нарушении бизнес-правила.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockWaitTimeout)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
