package serializer

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"GOB":  NewGOBSerializer,
	"CBOR": NewCBORSerializer,
}

var (
	created = time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	updated = time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)
	players = datastore.StoreRef{Name: "players", Scope: "eu"}
)

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Set request
		*common.NewSetRequest(players, "alice", []byte(`{"level":3}`), datastore.SetOptions{
			UserIDs:      []int64{1, 2},
			Metadata:     map[string]string{"origin": "test"},
			MatchVersion: "v1",
		}),

		// Get response
		*common.NewEntryResponse(common.MsgTDSGet, datastore.Entry{
			Key:         "alice",
			Value:       []byte(`"x"`),
			Version:     "v2",
			CreatedTime: created,
			UpdatedTime: updated,
			UserIDs:     []int64{7},
			Metadata:    map[string]string{"a": "b"},
		}, nil),

		// Error response
		*common.NewEntryResponse(common.MsgTDSGet, datastore.Entry{}, datastore.ErrNotFound),

		// Version listing request with a date window
		*common.NewListVersionsRequest(datastore.VersionQuery{
			Store:     players,
			Key:       "alice",
			Direction: datastore.SortDescending,
			MinDate:   created,
			MaxDate:   updated,
			PageSize:  10,
		}, "dG9rZW4"),

		// Key listing response
		*common.NewListKeysResponse(datastore.Page[datastore.KeyInfo]{
			Items:         []datastore.KeyInfo{{Scope: "eu", Key: "a"}, {Scope: "eu", Key: "b"}},
			NextPageToken: "next",
		}, nil),

		// Store listing response
		*common.NewListStoresResponse(datastore.Page[datastore.StoreInfo]{
			Items: []datastore.StoreInfo{{Name: "players", CreatedTime: created}},
		}, nil),

		// Error message
		*common.NewErrorResponse(datastore.RetCInvalidOperation, "unknown universe"),
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare, nil and empty collections are equivalent on the wire
				if diff := cmp.Diff(msg, result, cmpopts.EquateEmpty()); diff != "" {
					t.Errorf("Message %d doesn't match after round trip (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTDSListStores; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestResponseErrorCode tests that return codes survive the wire and match the sentinels
func TestResponseErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", datastore.ErrNotFound, datastore.ErrNotFound},
		{"version mismatch", datastore.NewError(datastore.RetCVersionMismatch, "stale"), datastore.ErrVersionMismatch},
		{"wrapped", datastore.WrapError(datastore.RetCInvalidOperation, "bad", datastore.ErrInvalid), datastore.ErrInvalid},
	}

	for name, factory := range testSerializers {
		serializer := factory()
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				data, err := serializer.Serialize(*common.NewSetResponse("", tt.err))
				if err != nil {
					t.Fatalf("Failed to serialize: %v", err)
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Fatalf("Failed to deserialize: %v", err)
				}

				got := result.ResponseErr()
				if !errors.Is(got, tt.want) {
					t.Errorf("Expected error matching %v, got %v", tt.want, got)
				}
			})
		}
	}

	// success carries no error
	if err := common.NewSetResponse("v1", nil).ResponseErr(); err != nil {
		t.Errorf("Expected no error for a success response, got %v", err)
	}
}

// TestInvalidData tests how the serializers handle corrupt or invalid data
func TestInvalidData(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"Empty data", []byte{}},
		{"Garbage", []byte{0xff, 0x00, 0x13, 0x37}},
	}

	for name, factory := range testSerializers {
		serializer := factory()
		for _, tc := range testCases {
			t.Run(name+"/"+tc.name, func(t *testing.T) {
				var msg common.Message
				if err := serializer.Deserialize(tc.data, &msg); err == nil {
					t.Errorf("Expected error but got none")
				}
			})
		}
	}
}
