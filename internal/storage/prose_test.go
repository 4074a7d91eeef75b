package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestProseStore(t *testing.T) {
	ps, err := OpenProseStore(filepath.Join(t.TempDir(), "prose.db"))
	if err != nil {
		t.Fatalf("OpenProseStore: %v", err)
	}
	defer func() { _ = ps.Close() }()
	ctx := context.Background()

	if got, err := ps.Get(ctx, ProseScene, "missing"); err != nil || got != "" {
		t.Errorf("missing Get = %q, %v", got, err)
	}
	if err := ps.Put(ctx, ProseScene, "c1/1", "first draft"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ps.Put(ctx, ProseScene, "c1/1", "second draft"); err != nil {
		t.Fatalf("Put upsert: %v", err)
	}
	if got, _ := ps.Get(ctx, ProseScene, "c1/1"); got != "second draft" {
		t.Errorf("Get = %q", got)
	}
	if got, _ := ps.Get(ctx, ProseChapter, "c1/1"); got != "" {
		t.Errorf("kinds must not collide, got %q", got)
	}
	if err := ps.Delete(ctx, ProseScene, "c1/1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := ps.Get(ctx, ProseScene, "c1/1"); got != "" {
		t.Errorf("after Delete = %q", got)
	}
}

func TestOpenProseStoreRequiresDSN(t *testing.T) {
	if _, err := OpenProseStore("  "); err == nil {
		t.Error("expected error for empty dsn")
	}
}
