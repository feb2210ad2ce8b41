package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/ValentinKolb/cloudstore/lib/mstore"
	"github.com/ValentinKolb/cloudstore/lib/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *DataStoreService {
	t.Helper()
	svc := NewDataStoreService(mstore.NewStore(), watch.Config{
		MinInterval: 2 * time.Millisecond,
		MaxInterval: 10 * time.Millisecond,
	})
	t.Cleanup(svc.Close)
	return svc
}

func TestGetDataStoreIsCached(t *testing.T) {
	svc := newTestService(t)

	a := svc.GetDataStore("players", "")
	b := svc.GetDataStore("players", datastore.DefaultScope)
	c := svc.GetDataStore("players", "eu")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, datastore.StoreRef{Name: "players", Scope: "eu"}, c.Ref())
}

func TestOnUpdateThroughStore(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	players := svc.GetDataStore("players", "")

	_, err := players.Set(ctx, "alice", []byte(`{"level":1}`), datastore.SetOptions{})
	require.NoError(t, err)

	updates := make(chan any, 4)
	conn := players.OnUpdate("alice", func(v any) { updates <- v })
	defer conn.Disconnect()
	assert.Equal(t, 1, players.Subscriptions())

	_, err = players.Set(ctx, "alice", []byte(`{"level":2}`), datastore.SetOptions{})
	require.NoError(t, err)

	select {
	case v := <-updates:
		assert.Equal(t, map[string]any{"level": float64(2)}, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
	}

	// an increment on another key is not reported
	_, err = players.Increment(ctx, "score", 1, datastore.SetOptions{})
	require.NoError(t, err)
	select {
	case v := <-updates:
		t.Fatalf("unexpected update %v", v)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestListKeysCursor(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	players := svc.GetDataStore("players", "")

	for i := 0; i < 5; i++ {
		_, err := players.Set(ctx, fmt.Sprintf("p%d", i), []byte(`0`), datastore.SetOptions{})
		require.NoError(t, err)
	}

	cursor := players.ListKeys(ListKeysOptions{Prefix: "p", PageSize: 2})

	var sizes []int
	for page, err := range cursor.Pages(ctx) {
		require.NoError(t, err)
		sizes = append(sizes, len(page.Items))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)

	last, err := cursor.GetCurrentPage(ctx)
	require.NoError(t, err)
	assert.Empty(t, last.NextPageToken)

	_, err = cursor.AdvanceToNextPage(ctx)
	assert.ErrorIs(t, err, datastore.ErrEndOfSequence)
}

func TestListVersionsCursor(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	players := svc.GetDataStore("players", "")

	var versions []string
	for i := 0; i < 3; i++ {
		v, err := players.Set(ctx, "alice", []byte(fmt.Sprint(i)), datastore.SetOptions{})
		require.NoError(t, err)
		versions = append(versions, v)
	}

	items, err := players.ListVersions("alice", ListVersionsOptions{Direction: datastore.SortDescending, PageSize: 1}).Collect(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, versions[2], items[0].Version)
	assert.Equal(t, versions[0], items[2].Version)
}

func TestListDataStores(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for _, name := range []string{"b", "a", "c"} {
		_, err := svc.GetDataStore(name, "").Set(ctx, "k", []byte(`0`), datastore.SetOptions{})
		require.NoError(t, err)
	}

	items, err := svc.ListDataStores(datastore.StoreQuery{PageSize: 2}).Collect(ctx)
	require.NoError(t, err)

	var names []string
	for _, s := range items {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestCloseDisconnectsSubscriptions(t *testing.T) {
	svc := NewDataStoreService(mstore.NewStore(), watch.DefaultConfig())
	players := svc.GetDataStore("players", "")

	conn := players.OnUpdate("alice", func(any) {})
	require.True(t, conn.Connected())

	svc.Close()
	require.Eventually(t, func() bool { return !conn.Connected() }, time.Second, time.Millisecond)
	assert.Equal(t, 0, players.Subscriptions())

	// handles created after Close do not poll
	late := svc.GetDataStore("late", "").OnUpdate("k", func(any) {})
	assert.False(t, late.Connected())
}
