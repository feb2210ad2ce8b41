package testing

import (
	"context"
	"fmt"
	"testing"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
)

// RunStoreBenchmarks runs all benchmarks for an IStore implementation
func RunStoreBenchmarks(b *testing.B, name string, factory datastore.StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("Increment", func(b *testing.B) {
			benchmarkIncrement(b, factory())
		})

		b.Run("ListKeys", func(b *testing.B) {
			benchmarkListKeys(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Set operation
func benchmarkSet(b *testing.B, store datastore.IStore) {
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("key-%d", counter%1000)
			if _, err := store.Set(ctx, players, key, []byte(fmt.Sprintf(`{"n":%d}`, counter)), datastore.SetOptions{}); err != nil {
				b.Errorf("Set failed: %v", err)
				return
			}
			counter++
		}
	})
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, store datastore.IStore) {
	ctx := context.Background()

	// Prepare data
	const numKeys = 1000
	for i := 0; i < numKeys; i++ {
		if _, err := store.Set(ctx, players, fmt.Sprintf("key-%d", i), []byte(`"value"`), datastore.SetOptions{}); err != nil {
			b.Fatalf("Set failed: %v", err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if _, err := store.Get(ctx, players, fmt.Sprintf("key-%d", counter%numKeys)); err != nil {
				b.Errorf("Get failed: %v", err)
				return
			}
			counter++
		}
	})
}

// Benchmark for Increment operation on a single hot key
func benchmarkIncrement(b *testing.B, store datastore.IStore) {
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := store.Increment(ctx, players, "counter", 1, datastore.SetOptions{}); err != nil {
				b.Errorf("Increment failed: %v", err)
				return
			}
		}
	})
}

// Benchmark for walking a full key listing
func benchmarkListKeys(b *testing.B, store datastore.IStore) {
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		if _, err := store.Set(ctx, players, fmt.Sprintf("key-%03d", i), []byte(`0`), datastore.SetOptions{}); err != nil {
			b.Fatalf("Set failed: %v", err)
		}
	}

	query := datastore.KeyQuery{Store: players, PageSize: datastore.MaxPageSize}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		token := ""
		for {
			page, err := store.ListKeys(ctx, query, token)
			if err != nil {
				b.Fatalf("ListKeys failed: %v", err)
			}
			if page.IsFinished() {
				break
			}
			token = page.NextPageToken
		}
	}
}
