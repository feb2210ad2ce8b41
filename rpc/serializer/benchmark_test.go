package serializer

import (
	"fmt"
	"testing"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/ValentinKolb/cloudstore/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	entry := datastore.Entry{
		Key:         "player-1234",
		Value:       []byte(`{"level":42,"inventory":["sword","shield","potion"]}`),
		Version:     "6f1c2a8e-8d7b-4b9f-9e53-1c1f3a0b6d2e",
		CreatedTime: created,
		UpdatedTime: updated,
		UserIDs:     []int64{1234},
		Metadata:    map[string]string{"origin": "benchmark"},
	}

	keys := make([]datastore.KeyInfo, datastore.MaxPageSize)
	for i := range keys {
		keys[i] = datastore.KeyInfo{Scope: datastore.DefaultScope, Key: fmt.Sprintf("player-%04d", i)}
	}

	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"GetRequest": *common.NewGetRequest(players, "player-1234"),
		"SetSmallValue": *common.NewSetRequest(players, "key", []byte(`1`), datastore.SetOptions{}),
		"SetLargeValue": *common.NewSetRequest(players, "key", make([]byte, 1024*16), datastore.SetOptions{}), // 16KB of data
		"EntryResponse": *common.NewEntryResponse(common.MsgTDSGet, entry, nil),
		"ListKeysFullPage": *common.NewListKeysResponse(datastore.Page[datastore.KeyInfo]{
			Items:         keys,
			NextPageToken: "cGxheWVyLTAwOTk",
		}, nil),
		"ErrorMessage": *common.NewErrorResponse(datastore.RetCInternalError,
			"Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua."),
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := serializer.Serialize(msg)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()
	serializedData := make(map[string]map[string][]byte)

	// Pre-serialize all messages with all serializers
	for name, factory := range testSerializers {
		serializer := factory()
		serializedData[name] = make(map[string][]byte)

		for msgName, msg := range messages {
			data, err := serializer.Serialize(msg)
			if err != nil {
				b.Fatalf("Failed to serialize %s with %s: %v", msgName, name, err)
			}
			serializedData[name][msgName] = data
		}
	}

	// Benchmark deserialization
	for name, factory := range testSerializers {
		for msgName := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data := serializedData[name][msgName]
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var msg common.Message
					err := serializer.Deserialize(data, &msg)
					if err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the serialized size for each message type
func BenchmarkSize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		serializer := factory()

		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				// Minimal loop to satisfy benchmark requirements
				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
