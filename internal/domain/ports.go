package domain

import (
	"context"
	"time"
)

// OrderUnitOfWork выполняет мутации заказа и склада как одну атомарную
// единицу работы. Любая ошибка внутри callback откатывает всё: ни частичного
// заказа, ни частичного списания остатка снаружи видно не будет.
type OrderUnitOfWork interface {
	// CreateOrder захватывает строку товара эксклюзивно (read-for-update),
	// вызывает build с текущим состоянием товара и атомарно сохраняет
	// возвращённый заказ вместе с изменённым остатком. Конкурентные вызовы
	// для одного товара сериализуются; ожидание блокировки ограничено и
	// завершается ErrLockWaitTimeout.
	CreateOrder(ctx context.Context, productID string, build func(product *Product) (Order, error)) error
	// CancelOrder захватывает товар первой позиции заказа эксклюзивно,
	// вызывает apply и атомарно сохраняет заказ вместе с возвращённым остатком.
	CancelOrder(ctx context.Context, orderID string, apply func(order *Order, product *Product) error) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
