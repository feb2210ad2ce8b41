package testing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// RunStoreTests runs a comprehensive test suite for an IStore implementation.
// Every sub test gets a fresh store from factory.
func RunStoreTests(t *testing.T, name string, factory datastore.StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Versions", func(t *testing.T) {
			testVersions(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("Increment", func(t *testing.T) {
			testIncrement(t, factory())
		})

		t.Run("Preconditions", func(t *testing.T) {
			testPreconditions(t, factory())
		})

		t.Run("ListKeys", func(t *testing.T) {
			testListKeys(t, factory())
		})

		t.Run("Scopes", func(t *testing.T) {
			testScopes(t, factory())
		})

		t.Run("ListVersions", func(t *testing.T) {
			testListVersions(t, factory())
		})

		t.Run("ListStores", func(t *testing.T) {
			testListStores(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentIncrements", func(t *testing.T) {
			testConcurrentIncrements(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

var players = datastore.StoreRef{Name: "players"}

func mustSet(t *testing.T, store datastore.IStore, ref datastore.StoreRef, key, value string) string {
	t.Helper()
	version, err := store.Set(context.Background(), ref, key, []byte(value), datastore.SetOptions{})
	if err != nil {
		t.Fatalf("Set(%s, %q) failed: %v", ref, key, err)
	}
	if version == "" {
		t.Fatalf("Set(%s, %q) returned an empty version", ref, key)
	}
	return version
}

func expectCode(t *testing.T, err error, want error, op string) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Errorf("%s: expected error matching %v, got %v", op, want, err)
	}
}

// collectKeys walks all pages of a key listing and returns the page sizes and keys.
func collectKeys(t *testing.T, store datastore.IStore, query datastore.KeyQuery) (sizes []int, keys []string) {
	t.Helper()
	token := ""
	for {
		page, err := store.ListKeys(context.Background(), query, token)
		if err != nil {
			t.Fatalf("ListKeys(token %q) failed: %v", token, err)
		}
		sizes = append(sizes, len(page.Items))
		for _, k := range page.Items {
			keys = append(keys, k.Key)
		}
		if page.IsFinished() {
			return sizes, keys
		}
		token = page.NextPageToken
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, store datastore.IStore) {
	ctx := context.Background()

	opts := datastore.SetOptions{UserIDs: []int64{42}, Metadata: map[string]string{"origin": "test"}}
	version, err := store.Set(ctx, players, "alice", []byte(`{"level":3}`), opts)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get(ctx, players, "alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Version != version {
		t.Errorf("Expected version %q, got %q", version, entry.Version)
	}
	if entry.Key != "alice" {
		t.Errorf("Expected key alice, got %q", entry.Key)
	}
	if diff := cmp.Diff(opts.UserIDs, entry.UserIDs); diff != "" {
		t.Errorf("UserIDs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(opts.Metadata, entry.Metadata); diff != "" {
		t.Errorf("Metadata mismatch (-want +got):\n%s", diff)
	}
	if entry.CreatedTime.IsZero() || entry.UpdatedTime.IsZero() {
		t.Errorf("Expected timestamps to be set, got %v / %v", entry.CreatedTime, entry.UpdatedTime)
	}

	value, err := entry.Decode()
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"level": float64(3)}, value); diff != "" {
		t.Errorf("Value mismatch (-want +got):\n%s", diff)
	}

	// overwrite
	second := mustSet(t, store, players, "alice", `{"level":4}`)
	if second == version {
		t.Errorf("Expected a new version after overwrite")
	}
	entry, _ = store.Get(ctx, players, "alice")
	if string(entry.Value) != `{"level":4}` {
		t.Errorf("Expected overwritten value, got %s", entry.Value)
	}

	// the default scope is "global"
	explicit := datastore.StoreRef{Name: players.Name, Scope: datastore.DefaultScope}
	if _, err := store.Get(ctx, explicit, "alice"); err != nil {
		t.Errorf("Get with explicit default scope failed: %v", err)
	}

	_, err = store.Get(ctx, players, "nonexistent")
	expectCode(t, err, datastore.ErrNotFound, "Get(nonexistent key)")

	_, err = store.Get(ctx, datastore.StoreRef{Name: "unknown"}, "alice")
	expectCode(t, err, datastore.ErrNotFound, "Get(unknown store)")
}

func testVersions(t *testing.T, store datastore.IStore) {
	ctx := context.Background()

	v1 := mustSet(t, store, players, "bob", `1`)
	v2 := mustSet(t, store, players, "bob", `2`)

	entry, err := store.GetVersion(ctx, players, "bob", v1)
	if err != nil {
		t.Fatalf("GetVersion(v1) failed: %v", err)
	}
	if string(entry.Value) != "1" || entry.Version != v1 {
		t.Errorf("Expected v1 with value 1, got %q with %s", entry.Version, entry.Value)
	}

	entry, err = store.GetVersion(ctx, players, "bob", v2)
	if err != nil {
		t.Fatalf("GetVersion(v2) failed: %v", err)
	}
	if string(entry.Value) != "2" {
		t.Errorf("Expected value 2, got %s", entry.Value)
	}

	_, err = store.GetVersion(ctx, players, "bob", "no-such-version")
	expectCode(t, err, datastore.ErrNotFound, "GetVersion(unknown version)")
}

func testRemove(t *testing.T, store datastore.IStore) {
	ctx := context.Background()

	version := mustSet(t, store, players, "carol", `"x"`)
	mustSet(t, store, players, "dave", `"y"`)

	removed, err := store.Remove(ctx, players, "carol")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if string(removed.Value) != `"x"` {
		t.Errorf("Expected removed value \"x\", got %s", removed.Value)
	}

	_, err = store.Get(ctx, players, "carol")
	expectCode(t, err, datastore.ErrNotFound, "Get(removed key)")

	_, err = store.Remove(ctx, players, "carol")
	expectCode(t, err, datastore.ErrNotFound, "Remove(removed key)")

	// history stays readable
	entry, err := store.GetVersion(ctx, players, "carol", version)
	if err != nil {
		t.Fatalf("GetVersion of removed key failed: %v", err)
	}
	if !entry.Deleted {
		t.Errorf("Expected removed version to be marked deleted")
	}

	_, keys := collectKeys(t, store, datastore.KeyQuery{Store: players})
	if diff := cmp.Diff([]string{"dave"}, keys); diff != "" {
		t.Errorf("Removed key still listed (-want +got):\n%s", diff)
	}

	// writing again revives the key
	mustSet(t, store, players, "carol", `"z"`)
	entry, err = store.Get(ctx, players, "carol")
	if err != nil || string(entry.Value) != `"z"` {
		t.Errorf("Expected revived key with value \"z\", got %s (%v)", entry.Value, err)
	}
}

func testIncrement(t *testing.T, store datastore.IStore) {
	ctx := context.Background()

	tests := []struct {
		delta int64
		want  string
	}{
		{5, "5"},
		{3, "8"},
		{-10, "-2"},
		{0, "-2"},
	}

	for i, tt := range tests {
		entry, err := store.Increment(ctx, players, "score", tt.delta, datastore.SetOptions{})
		if err != nil {
			t.Fatalf("Increment #%d failed: %v", i, err)
		}
		if string(entry.Value) != tt.want {
			t.Errorf("Increment #%d: expected %s, got %s", i, tt.want, entry.Value)
		}
		if entry.Version == "" {
			t.Errorf("Increment #%d: expected a version", i)
		}
	}

	mustSet(t, store, players, "name", `"eve"`)
	_, err := store.Increment(ctx, players, "name", 1, datastore.SetOptions{})
	expectCode(t, err, datastore.ErrInvalid, "Increment(non-integer)")
}

func testPreconditions(t *testing.T, store datastore.IStore) {
	ctx := context.Background()

	version, err := store.Set(ctx, players, "frank", []byte(`1`), datastore.SetOptions{ExclusiveCreate: true})
	if err != nil {
		t.Fatalf("exclusive create of a new key failed: %v", err)
	}

	_, err = store.Set(ctx, players, "frank", []byte(`2`), datastore.SetOptions{ExclusiveCreate: true})
	expectCode(t, err, datastore.ErrAlreadyExists, "exclusive create of an existing key")

	_, err = store.Set(ctx, players, "frank", []byte(`2`), datastore.SetOptions{MatchVersion: "stale"})
	expectCode(t, err, datastore.ErrVersionMismatch, "Set with stale version")

	if _, err := store.Set(ctx, players, "frank", []byte(`2`), datastore.SetOptions{MatchVersion: version}); err != nil {
		t.Errorf("Set with matching version failed: %v", err)
	}

	entry, _ := store.Get(ctx, players, "frank")
	if string(entry.Value) != "2" {
		t.Errorf("Expected value 2, got %s", entry.Value)
	}
}

func testListKeys(t *testing.T, store datastore.IStore) {
	for _, k := range []string{"e", "c", "a", "d", "b"} {
		mustSet(t, store, players, "key-"+k, `0`)
	}
	mustSet(t, store, players, "other", `0`)

	sizes, keys := collectKeys(t, store, datastore.KeyQuery{Store: players, Prefix: "key-", PageSize: 2})
	if diff := cmp.Diff([]int{2, 2, 1}, sizes); diff != "" {
		t.Errorf("Page sizes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"key-a", "key-b", "key-c", "key-d", "key-e"}, keys); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}

	// page size 0 uses the default
	sizes, _ = collectKeys(t, store, datastore.KeyQuery{Store: players})
	if diff := cmp.Diff([]int{6}, sizes); diff != "" {
		t.Errorf("Default page size mismatch (-want +got):\n%s", diff)
	}

	// empty listing is a single empty, finished page
	page, err := store.ListKeys(context.Background(), datastore.KeyQuery{Store: players, Prefix: "zzz"}, "")
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if len(page.Items) != 0 || !page.IsFinished() {
		t.Errorf("Expected an empty finished page, got %+v", page)
	}
}

func testScopes(t *testing.T, store datastore.IStore) {
	ctx := context.Background()
	eu := datastore.StoreRef{Name: players.Name, Scope: "eu"}

	mustSet(t, store, players, "shared", `"global"`)
	mustSet(t, store, eu, "shared", `"eu"`)
	mustSet(t, store, eu, "only-eu", `1`)

	entry, err := store.Get(ctx, eu, "shared")
	if err != nil || string(entry.Value) != `"eu"` {
		t.Errorf("Expected scoped value \"eu\", got %s (%v)", entry.Value, err)
	}

	_, err = store.Get(ctx, players, "only-eu")
	expectCode(t, err, datastore.ErrNotFound, "Get(key of another scope)")

	page, err := store.ListKeys(ctx, datastore.KeyQuery{Store: players, AllScopes: true}, "")
	if err != nil {
		t.Fatalf("ListKeys(AllScopes) failed: %v", err)
	}
	want := []datastore.KeyInfo{
		{Scope: "eu", Key: "only-eu"},
		{Scope: "eu", Key: "shared"},
		{Scope: datastore.DefaultScope, Key: "shared"},
	}
	if diff := cmp.Diff(want, page.Items); diff != "" {
		t.Errorf("AllScopes listing mismatch (-want +got):\n%s", diff)
	}
}

func testListVersions(t *testing.T, store datastore.IStore) {
	ctx := context.Background()

	var versions []string
	for i := range 5 {
		versions = append(versions, mustSet(t, store, players, "history", strconv.Itoa(i)))
	}

	list := func(query datastore.VersionQuery) []string {
		var ids []string
		token := ""
		for {
			page, err := store.ListVersions(ctx, query, token)
			if err != nil {
				t.Fatalf("ListVersions failed: %v", err)
			}
			for _, v := range page.Items {
				ids = append(ids, v.Version)
			}
			if page.IsFinished() {
				return ids
			}
			token = page.NextPageToken
		}
	}

	asc := list(datastore.VersionQuery{Store: players, Key: "history", PageSize: 2})
	if diff := cmp.Diff(versions, asc); diff != "" {
		t.Errorf("Ascending versions mismatch (-want +got):\n%s", diff)
	}

	desc := list(datastore.VersionQuery{Store: players, Key: "history", PageSize: 2, Direction: datastore.SortDescending})
	reversed := make([]string, len(versions))
	for i, v := range versions {
		reversed[len(versions)-1-i] = v
	}
	if diff := cmp.Diff(reversed, desc); diff != "" {
		t.Errorf("Descending versions mismatch (-want +got):\n%s", diff)
	}

	// date window in the future is empty
	future := list(datastore.VersionQuery{Store: players, Key: "history", MinDate: time.Now().Add(time.Hour)})
	if diff := cmp.Diff([]string(nil), future, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Expected no versions after MinDate (-want +got):\n%s", diff)
	}

	_, err := store.ListVersions(ctx, datastore.VersionQuery{Store: players, Key: "nonexistent"}, "")
	expectCode(t, err, datastore.ErrNotFound, "ListVersions(nonexistent key)")
}

func testListStores(t *testing.T, store datastore.IStore) {
	ctx := context.Background()
	for _, name := range []string{"game-b", "game-a", "inventory"} {
		mustSet(t, store, datastore.StoreRef{Name: name}, "k", `0`)
	}

	page, err := store.ListStores(ctx, datastore.StoreQuery{Prefix: "game-"}, "")
	if err != nil {
		t.Fatalf("ListStores failed: %v", err)
	}
	var names []string
	for _, s := range page.Items {
		names = append(names, s.Name)
		if s.CreatedTime.IsZero() {
			t.Errorf("Expected creation time of %q to be set", s.Name)
		}
	}
	if diff := cmp.Diff([]string{"game-a", "game-b"}, names); diff != "" {
		t.Errorf("Store listing mismatch (-want +got):\n%s", diff)
	}

	page, err = store.ListStores(ctx, datastore.StoreQuery{PageSize: 1}, "")
	if err != nil {
		t.Fatalf("ListStores failed: %v", err)
	}
	if len(page.Items) != 1 || page.IsFinished() {
		t.Errorf("Expected a single item page with continuation, got %+v", page)
	}
}

func testEdgeCases(t *testing.T, store datastore.IStore) {
	ctx := context.Background()

	tests := []struct {
		name string
		op   func() error
		want error
	}{
		{"empty key", func() error {
			_, err := store.Set(ctx, players, "", []byte(`1`), datastore.SetOptions{})
			return err
		}, datastore.ErrInvalid},
		{"key too long", func() error {
			_, err := store.Set(ctx, players, string(make([]byte, datastore.MaxKeyLength+1)), []byte(`1`), datastore.SetOptions{})
			return err
		}, datastore.ErrInvalid},
		{"empty store name", func() error {
			_, err := store.Set(ctx, datastore.StoreRef{}, "k", []byte(`1`), datastore.SetOptions{})
			return err
		}, datastore.ErrInvalid},
		{"invalid json", func() error {
			_, err := store.Set(ctx, players, "k", []byte(`{not json`), datastore.SetOptions{})
			return err
		}, datastore.ErrInvalid},
		{"negative page size", func() error {
			_, err := store.ListKeys(ctx, datastore.KeyQuery{Store: players, PageSize: -1}, "")
			return err
		}, datastore.ErrInvalid},
		{"malformed token", func() error {
			_, err := store.ListKeys(ctx, datastore.KeyQuery{Store: players}, "%%%")
			return err
		}, datastore.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectCode(t, tt.op(), tt.want, tt.name)
		})
	}

	// oversized page requests are capped
	for i := range datastore.MaxPageSize + 5 {
		mustSet(t, store, players, fmt.Sprintf("k%03d", i), `0`)
	}
	page, err := store.ListKeys(ctx, datastore.KeyQuery{Store: players, PageSize: 1000}, "")
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if len(page.Items) != datastore.MaxPageSize {
		t.Errorf("Expected page size capped at %d, got %d", datastore.MaxPageSize, len(page.Items))
	}
}

func testConcurrentIncrements(t *testing.T, store datastore.IStore) {
	const (
		workers = 10
		rounds  = 20
	)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				if _, err := store.Increment(context.Background(), players, "counter", 1, datastore.SetOptions{}); err != nil {
					t.Errorf("Increment failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	entry, err := store.Get(context.Background(), players, "counter")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if want := strconv.Itoa(workers * rounds); string(entry.Value) != want {
		t.Errorf("Expected counter %s, got %s", want, entry.Value)
	}
}
