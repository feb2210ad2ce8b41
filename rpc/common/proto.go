package common

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Addressing fields
	Store   string `json:"store,omitempty"`   // Used for: all data store operations except ListStores
	Scope   string `json:"scope,omitempty"`   // Used for: all data store operations except ListStores
	Key     string `json:"key,omitempty"`     // Used for: Get, GetVersion, Set, Increment, Remove, ListVersions
	Version string `json:"version,omitempty"` // Used for: GetVersion (request), Set (response)

	// Write fields
	Value           []byte            `json:"value,omitempty"`            // Used for: Set
	Delta           int64             `json:"delta,omitempty"`            // Used for: Increment
	UserIDs         []int64           `json:"user_ids,omitempty"`         // Used for: Set, Increment
	Metadata        map[string]string `json:"metadata,omitempty"`         // Used for: Set, Increment
	ExclusiveCreate bool              `json:"exclusive_create,omitempty"` // Used for: Set, Increment
	MatchVersion    string            `json:"match_version,omitempty"`    // Used for: Set, Increment

	// Listing fields
	Prefix    string    `json:"prefix,omitempty"`     // Used for: ListKeys, ListStores
	PageSize  int       `json:"page_size,omitempty"`  // Used for: all listings
	Token     string    `json:"token,omitempty"`      // Used for: all listings (request)
	AllScopes bool      `json:"all_scopes,omitempty"` // Used for: ListKeys
	Direction uint8     `json:"direction,omitempty"`  // Used for: ListVersions
	MinDate   time.Time `json:"min_date,omitempty"`   // Used for: ListVersions
	MaxDate   time.Time `json:"max_date,omitempty"`   // Used for: ListVersions

	// Response only fields
	Code      datastore.RetCode       `json:"code,omitempty"`       // Return code, RetCSuccess if no error
	Err       string                  `json:"err,omitempty"`        // Empty if no error, otherwise contains the error message
	Entry     *datastore.Entry        `json:"entry,omitempty"`      // Used for: Get, GetVersion, Increment, Remove
	Keys      []datastore.KeyInfo     `json:"keys,omitempty"`       // Used for: ListKeys
	Versions  []datastore.VersionInfo `json:"versions,omitempty"`   // Used for: ListVersions
	Stores    []datastore.StoreInfo   `json:"stores,omitempty"`     // Used for: ListStores
	NextToken string                  `json:"next_token,omitempty"` // Used for: all listings (response)
}

// Ref returns the data store addressed by the message.
func (m *Message) Ref() datastore.StoreRef {
	return datastore.StoreRef{Name: m.Store, Scope: m.Scope}
}

// ResponseErr returns the error carried by a response, nil if the response is a success.
// The return code is preserved, so the result can be matched against the datastore sentinels.
func (m *Message) ResponseErr() error {
	if m.Err == "" && m.Code == datastore.RetCSuccess {
		return nil
	}
	code := m.Code
	if code == datastore.RetCSuccess {
		code = datastore.RetCInternalError
	}
	return datastore.NewError(code, m.Err)
}

// withErr sets the error fields of a response
func (m *Message) withErr(err error) *Message {
	if err != nil {
		m.Code = datastore.CodeOf(err)
		m.Err = errorMessage(err)
	}
	return m
}

// errorMessage strips the formatting of *datastore.Error, it is added again on the receiving side.
func errorMessage(err error) string {
	if e, ok := err.(*datastore.Error); ok {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Msg
	}
	return err.Error()
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewGetRequest creates a new Get request
func NewGetRequest(ref datastore.StoreRef, key string) *Message {
	return &Message{
		MsgType: MsgTDSGet,
		Store:   ref.Name,
		Scope:   ref.Scope,
		Key:     key,
	}
}

// NewGetVersionRequest creates a new GetVersion request
func NewGetVersionRequest(ref datastore.StoreRef, key, version string) *Message {
	return &Message{
		MsgType: MsgTDSGetVersion,
		Store:   ref.Name,
		Scope:   ref.Scope,
		Key:     key,
		Version: version,
	}
}

// NewEntryResponse creates a response carrying a single entry.
// It is used for Get, GetVersion, Increment and Remove.
func NewEntryResponse(msgType MessageType, entry datastore.Entry, err error) *Message {
	msg := &Message{MsgType: msgType}
	if err == nil {
		msg.Entry = &entry
	}
	return msg.withErr(err)
}

// NewSetRequest creates a new Set request
func NewSetRequest(ref datastore.StoreRef, key string, value []byte, opts datastore.SetOptions) *Message {
	return withOptions(&Message{
		MsgType: MsgTDSSet,
		Store:   ref.Name,
		Scope:   ref.Scope,
		Key:     key,
		Value:   value,
	}, opts)
}

// NewSetResponse creates a new Set response
func NewSetResponse(version string, err error) *Message {
	msg := &Message{
		MsgType: MsgTDSSet,
		Version: version,
	}
	return msg.withErr(err)
}

// NewIncrementRequest creates a new Increment request
func NewIncrementRequest(ref datastore.StoreRef, key string, delta int64, opts datastore.SetOptions) *Message {
	return withOptions(&Message{
		MsgType: MsgTDSIncrement,
		Store:   ref.Name,
		Scope:   ref.Scope,
		Key:     key,
		Delta:   delta,
	}, opts)
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(ref datastore.StoreRef, key string) *Message {
	return &Message{
		MsgType: MsgTDSRemove,
		Store:   ref.Name,
		Scope:   ref.Scope,
		Key:     key,
	}
}

// NewListKeysRequest creates a new ListKeys request
func NewListKeysRequest(query datastore.KeyQuery, token string) *Message {
	return &Message{
		MsgType:   MsgTDSListKeys,
		Store:     query.Store.Name,
		Scope:     query.Store.Scope,
		Prefix:    query.Prefix,
		PageSize:  query.PageSize,
		AllScopes: query.AllScopes,
		Token:     token,
	}
}

// NewListKeysResponse creates a new ListKeys response
func NewListKeysResponse(page datastore.Page[datastore.KeyInfo], err error) *Message {
	msg := &Message{
		MsgType:   MsgTDSListKeys,
		Keys:      page.Items,
		NextToken: page.NextPageToken,
	}
	return msg.withErr(err)
}

// NewListVersionsRequest creates a new ListVersions request
func NewListVersionsRequest(query datastore.VersionQuery, token string) *Message {
	return &Message{
		MsgType:   MsgTDSListVersions,
		Store:     query.Store.Name,
		Scope:     query.Store.Scope,
		Key:       query.Key,
		Direction: uint8(query.Direction),
		MinDate:   query.MinDate,
		MaxDate:   query.MaxDate,
		PageSize:  query.PageSize,
		Token:     token,
	}
}

// NewListVersionsResponse creates a new ListVersions response
func NewListVersionsResponse(page datastore.Page[datastore.VersionInfo], err error) *Message {
	msg := &Message{
		MsgType:   MsgTDSListVersions,
		Versions:  page.Items,
		NextToken: page.NextPageToken,
	}
	return msg.withErr(err)
}

// NewListStoresRequest creates a new ListStores request
func NewListStoresRequest(query datastore.StoreQuery, token string) *Message {
	return &Message{
		MsgType:  MsgTDSListStores,
		Prefix:   query.Prefix,
		PageSize: query.PageSize,
		Token:    token,
	}
}

// NewListStoresResponse creates a new ListStores response
func NewListStoresResponse(page datastore.Page[datastore.StoreInfo], err error) *Message {
	msg := &Message{
		MsgType:   MsgTDSListStores,
		Stores:    page.Items,
		NextToken: page.NextPageToken,
	}
	return msg.withErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code datastore.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    code,
		Err:     err,
	}
}

// SetOptions returns the write options carried by a Set or Increment request.
func (m *Message) SetOptions() datastore.SetOptions {
	return datastore.SetOptions{
		UserIDs:         m.UserIDs,
		Metadata:        m.Metadata,
		ExclusiveCreate: m.ExclusiveCreate,
		MatchVersion:    m.MatchVersion,
	}
}

func withOptions(msg *Message, opts datastore.SetOptions) *Message {
	msg.UserIDs = opts.UserIDs
	msg.Metadata = opts.Metadata
	msg.ExclusiveCreate = opts.ExclusiveCreate
	msg.MatchVersion = opts.MatchVersion
	return msg
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:        "success",
	MsgTError:          "error",
	MsgTDSGet:          "get",
	MsgTDSGetVersion:   "getVersion",
	MsgTDSSet:          "set",
	MsgTDSIncrement:    "increment",
	MsgTDSRemove:       "remove",
	MsgTDSListKeys:     "listKeys",
	MsgTDSListVersions: "listVersions",
	MsgTDSListStores:   "listStores",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTDSGet          // Get the latest version of a key
	MsgTDSGetVersion   // Get a specific version of a key
	MsgTDSSet          // Write a new version of a key
	MsgTDSIncrement    // Increment an integer value
	MsgTDSRemove       // Mark a key as deleted
	MsgTDSListKeys     // List the keys of a data store
	MsgTDSListVersions // List the versions of a key
	MsgTDSListStores   // List the data stores of a universe
)
