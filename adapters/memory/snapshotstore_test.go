package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/schemagate/adapters/memory"
	"github.com/artpar/schemagate/domain/snapshot"
)

func TestSnapshotStore_SaveAndGet(t *testing.T) {
	store := memory.NewSnapshotStore()
	ctx := context.Background()

	doc := []byte("doc")
	snap := snapshot.New("s1", "foo:v1", "openapi", doc, time.Now())
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the caller's buffer must not affect the stored copy.
	doc[0] = 'X'

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Document) != "doc" {
		t.Errorf("expected stored document 'doc', got %q", got.Document)
	}
}

func TestSnapshotStore_GetNotFound(t *testing.T) {
	_, err := memory.NewSnapshotStore().Get(context.Background(), "missing")
	if !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotStore_LatestAndList(t *testing.T) {
	store := memory.NewSnapshotStore()
	ctx := context.Background()

	if _, ok, _ := store.Latest(ctx, "foo:v1", "openapi"); ok {
		t.Fatal("empty store should have no latest snapshot")
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Save(ctx, snapshot.New("a", "foo:v1", "openapi", []byte("a"), base))
	store.Save(ctx, snapshot.New("b", "foo:v1", "openapi", []byte("b"), base.Add(time.Minute)))
	store.Save(ctx, snapshot.New("c", "foo:v1", "openapi", []byte("c"), base.Add(time.Minute)))
	store.Save(ctx, snapshot.New("d", "bar:v1", "openapi", []byte("d"), base.Add(time.Hour)))

	latest, ok, err := store.Latest(ctx, "foo:v1", "openapi")
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if latest.ID != "c" {
		t.Errorf("expected later save 'c' to win the tie, got %s", latest.ID)
	}

	list, _ := store.List(ctx, snapshot.Filter{API: "foo:v1"})
	want := []string{"c", "b", "a"}
	if len(list) != len(want) {
		t.Fatalf("expected %d snapshots, got %d", len(want), len(list))
	}
	for i, s := range list {
		if s.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], s.ID)
		}
	}

	limited, _ := store.List(ctx, snapshot.Filter{Limit: 2})
	if len(limited) != 2 || limited[0].ID != "d" {
		t.Errorf("unexpected limited listing: %+v", limited)
	}
}
