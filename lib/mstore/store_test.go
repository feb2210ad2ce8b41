package mstore

import (
	"context"
	"testing"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	storetesting "github.com/ValentinKolb/cloudstore/lib/datastore/testing"
)

func TestMemoryStore(t *testing.T) {
	storetesting.RunStoreTests(t, "MemoryStore", NewStore)
}

func BenchmarkMemoryStore(b *testing.B) {
	storetesting.RunStoreBenchmarks(b, "MemoryStore", NewStore)
}

func TestVersionDateWindow(t *testing.T) {
	ctx := context.Background()
	ref := datastore.StoreRef{Name: "clock"}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	s := newStore(func() time.Time { return now })

	var versions []string
	for i := 0; i < 4; i++ {
		now = base.Add(time.Duration(i) * time.Hour)
		v, err := s.Set(ctx, ref, "k", []byte(`0`), datastore.SetOptions{})
		if err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		versions = append(versions, v)
	}

	page, err := s.ListVersions(ctx, datastore.VersionQuery{
		Store:   ref,
		Key:     "k",
		MinDate: base.Add(time.Hour),
		MaxDate: base.Add(2 * time.Hour),
	}, "")
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("Expected 2 versions in window, got %d", len(page.Items))
	}
	if page.Items[0].Version != versions[1] || page.Items[1].Version != versions[2] {
		t.Errorf("Unexpected versions in window: %+v", page.Items)
	}
}

func TestEntriesAreCopies(t *testing.T) {
	ctx := context.Background()
	ref := datastore.StoreRef{Name: "copies"}
	s := NewStore()

	value := []byte(`"abc"`)
	if _, err := s.Set(ctx, ref, "k", value, datastore.SetOptions{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value[1] = 'X'

	entry, _ := s.Get(ctx, ref, "k")
	if string(entry.Value) != `"abc"` {
		t.Errorf("Set should copy the value, got %s", entry.Value)
	}

	entry.Value[1] = 'Y'
	again, _ := s.Get(ctx, ref, "k")
	if string(again.Value) != `"abc"` {
		t.Errorf("Get should return a copy, got %s", again.Value)
	}
}

func TestTokenContinuesAfterInsert(t *testing.T) {
	ctx := context.Background()
	ref := datastore.StoreRef{Name: "tokens"}
	s := NewStore()

	for _, k := range []string{"a", "c", "e"} {
		if _, err := s.Set(ctx, ref, k, []byte(`0`), datastore.SetOptions{}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	query := datastore.KeyQuery{Store: ref, PageSize: 2}
	first, err := s.ListKeys(ctx, query, "")
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}

	// a key sorting before the cursor does not shift the next page
	if _, err := s.Set(ctx, ref, "b", []byte(`0`), datastore.SetOptions{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	second, err := s.ListKeys(ctx, query, first.NextPageToken)
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].Key != "e" {
		t.Errorf("Expected [e] on second page, got %+v", second.Items)
	}
}
