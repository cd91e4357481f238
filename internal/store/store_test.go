package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// backends returns one constructor per Store implementation so every backend
// passes the same contract tests.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func sampleAsset(id, owner string, createdAt time.Time) Asset {
	return Asset{
		ID:             id,
		OwnerID:        owner,
		Title:          "Morning warmup",
		Description:    "scales",
		StoragePath:    "/data/uploads/" + id + ".m4a",
		ByteSize:       2048,
		DurationMillis: 61500,
		CreatedAt:      createdAt,
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			want := sampleAsset("a1", "u1", time.Now().UTC().Truncate(time.Millisecond))
			if err := s.Create(ctx, want); err != nil {
				t.Fatalf("Create: %v", err)
			}

			got, err := s.Get(ctx, "u1", "a1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("asset mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_GetScopedToOwner(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			if err := s.Create(ctx, sampleAsset("a1", "u1", time.Now().UTC())); err != nil {
				t.Fatalf("Create: %v", err)
			}

			// another owner must not see the asset, and the error must be
			// indistinguishable from a missing id
			if _, err := s.Get(ctx, "u2", "a1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("cross-owner Get error = %v, want ErrNotFound", err)
			}
			if _, err := s.Get(ctx, "u1", "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("missing id Get error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_ListByOwnerNewestFirst(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
			for i, id := range []string{"a1", "a2", "a3"} {
				if err := s.Create(ctx, sampleAsset(id, "u1", base.Add(time.Duration(i)*time.Minute))); err != nil {
					t.Fatalf("Create %s: %v", id, err)
				}
			}
			if err := s.Create(ctx, sampleAsset("b1", "u2", base)); err != nil {
				t.Fatalf("Create b1: %v", err)
			}

			assets, err := s.ListByOwner(ctx, "u1")
			if err != nil {
				t.Fatalf("ListByOwner: %v", err)
			}

			var ids []string
			for _, a := range assets {
				ids = append(ids, a.ID)
			}
			want := []string{"a3", "a2", "a1"}
			if diff := cmp.Diff(want, ids); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_DeleteIdempotent404(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			if err := s.Create(ctx, sampleAsset("a1", "u1", time.Now().UTC())); err != nil {
				t.Fatalf("Create: %v", err)
			}

			if err := s.Delete(ctx, "u1", "a1"); err != nil {
				t.Fatalf("first Delete: %v", err)
			}
			// every subsequent delete reports not found, deterministically
			for i := 0; i < 3; i++ {
				if err := s.Delete(ctx, "u1", "a1"); !errors.Is(err, ErrNotFound) {
					t.Errorf("repeat Delete #%d error = %v, want ErrNotFound", i+1, err)
				}
			}
		})
	}
}

func TestStore_DeleteScopedToOwner(t *testing.T) {
	for name, newStore := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			if err := s.Create(ctx, sampleAsset("a1", "u1", time.Now().UTC())); err != nil {
				t.Fatalf("Create: %v", err)
			}

			if err := s.Delete(ctx, "u2", "a1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("cross-owner Delete error = %v, want ErrNotFound", err)
			}
			if _, err := s.Get(ctx, "u1", "a1"); err != nil {
				t.Errorf("asset must survive cross-owner delete attempt: %v", err)
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("badger", ""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
