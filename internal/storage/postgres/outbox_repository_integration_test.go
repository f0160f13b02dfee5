package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	msg, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected generated message id")
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != msg.ID {
		t.Fatalf("unexpected pending messages: %+v", pending)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(msg.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	pending, err = repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending after sent: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending messages, got %d", len(pending))
	}

	if err := repo.MarkFailed("missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish for unknown id, got %v", err)
	}
}

func TestTimelineRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewTimelineRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	events := []domain.TimelineEvent{
		{OrderID: "order-1", Type: "order.created", Occurred: now.Add(-time.Minute)},
		{OrderID: "order-1", Type: "order.completed", Occurred: now},
		{OrderID: "order-2", Type: "order.created", Occurred: now},
	}
	for _, event := range events {
		if err := repo.Append(event); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	listed, err := repo.List("order-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 events, got %d", len(listed))
	}
	if listed[0].Type != "order.created" || listed[1].Type != "order.completed" {
		t.Fatalf("unexpected event ordering: %+v", listed)
	}
}

func TestIdempotencyRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store)

	record, err := repo.CreateProcessing("key-1", "hash-1", time.Time{})
	if err != nil {
		t.Fatalf("create processing: %v", err)
	}
	if record.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("unexpected status: %s", record.Status)
	}

	if _, err := repo.CreateProcessing("key-1", "hash-1", time.Time{}); !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected ErrIdempotencyKeyAlreadyExists, got %v", err)
	}
	if _, err := repo.CreateProcessing("key-1", "hash-2", time.Time{}); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected ErrIdempotencyHashMismatch, got %v", err)
	}

	if err := repo.MarkDone("key-1", []byte(`{"orderId":"order-1"}`), 201); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	stored, err := repo.Get("key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.IdempotencyStatusDone || stored.HTTPStatus != 201 {
		t.Fatalf("unexpected stored record: %+v", stored)
	}

	if _, err := repo.CreateProcessing("old-key", "hash-3", time.Now().UTC().Add(-time.Hour)); err != nil {
		t.Fatalf("create expired record: %v", err)
	}
	removed, err := repo.DeleteExpired(time.Now().UTC(), 0)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed record, got %d", removed)
	}
}
