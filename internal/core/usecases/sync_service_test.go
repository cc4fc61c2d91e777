package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/casaview/internal/core/domain"
	"github.com/samirrijal/casaview/internal/core/ports"
	"github.com/samirrijal/casaview/internal/core/usecases"
)

// --- Mock ListingRepository ---

type mockRepo struct {
	mockSource
	upserted      []domain.Listing
	keep          []int64
	deleteCalls   int
	deleteMissing int64
	upsertErr     error
}

func (m *mockRepo) UpsertBatch(ctx context.Context, listings []domain.Listing) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, listings...)
	return nil
}

func (m *mockRepo) DeleteMissing(ctx context.Context, keep []int64) (int64, error) {
	m.deleteCalls++
	m.keep = keep
	return m.deleteMissing, nil
}

func (m *mockRepo) Count(ctx context.Context) (int, error) { return len(m.upserted), nil }

// --- Mock EventPublisher ---

type mockPublisher struct {
	events []*ports.SyncEvent
}

func (m *mockPublisher) PublishListingsSynced(ctx context.Context, event *ports.SyncEvent) error {
	m.events = append(m.events, event)
	return nil
}

// --- Tests ---

func TestSyncService_Sync(t *testing.T) {
	repo := &mockRepo{deleteMissing: 2}
	pub := &mockPublisher{}
	svc := usecases.NewSyncService(fixtureSource(), repo, pub)

	event, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Upserted != 4 || event.Deleted != 2 {
		t.Errorf("unexpected event %+v", event)
	}
	if len(repo.upserted) != 4 {
		t.Errorf("expected 4 upserts, got %d", len(repo.upserted))
	}
	if len(repo.keep) != 4 || repo.keep[0] != 1 || repo.keep[3] != 4 {
		t.Errorf("unexpected keep set %v", repo.keep)
	}
	if len(pub.events) != 1 {
		t.Errorf("expected one published event, got %d", len(pub.events))
	}
}

func TestSyncService_EmptyUpstreamKeepsMirror(t *testing.T) {
	repo := &mockRepo{}
	svc := usecases.NewSyncService(&mockSource{}, repo, nil)

	event, err := svc.Sync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.deleteCalls != 0 {
		t.Error("expected no deletion on empty upstream")
	}
	if event.Upserted != 0 {
		t.Errorf("expected 0 upserted, got %d", event.Upserted)
	}
}

func TestSyncService_UpstreamError(t *testing.T) {
	repo := &mockRepo{}
	source := &mockSource{
		listFn: func(ctx context.Context) ([]domain.Listing, error) {
			return nil, errors.New("timeout")
		},
	}
	svc := usecases.NewSyncService(source, repo, nil)

	if _, err := svc.Sync(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(repo.upserted) != 0 {
		t.Error("expected nothing written")
	}
}

func TestSyncService_UpsertError(t *testing.T) {
	repo := &mockRepo{upsertErr: errors.New("constraint")}
	pub := &mockPublisher{}
	svc := usecases.NewSyncService(fixtureSource(), repo, pub)

	if _, err := svc.Sync(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if repo.deleteCalls != 0 || len(pub.events) != 0 {
		t.Error("expected no prune and no event after a failed upsert")
	}
}
