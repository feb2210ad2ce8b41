package datastore

import (
	"encoding/json"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Limits
// --------------------------------------------------------------------------

const (
	// DefaultScope is used when a StoreRef has no scope.
	DefaultScope = "global"

	// DefaultPageSize is used for listings that request a page size of 0.
	DefaultPageSize = 50
	// MaxPageSize caps the page size of all listings.
	MaxPageSize = 100

	MaxKeyLength       = 50
	MaxStoreNameLength = 50
	MaxScopeLength     = 50
	MaxValueSize       = 4 * 1024 * 1024 // 4 MiB
	MaxMetadataEntries = 300
)

// --------------------------------------------------------------------------
// Store Reference
// --------------------------------------------------------------------------

// StoreRef identifies a single data store within a universe.
type StoreRef struct {
	Name  string `json:"name"`
	Scope string `json:"scope,omitempty"`
}

// Normalize returns a copy with the default scope filled in.
func (r StoreRef) Normalize() StoreRef {
	if r.Scope == "" {
		r.Scope = DefaultScope
	}
	return r
}

// Validate checks the name and scope against the service limits.
func (r StoreRef) Validate() error {
	if r.Name == "" {
		return NewError(RetCInvalidOperation, "data store name must not be empty")
	}
	if len(r.Name) > MaxStoreNameLength {
		return NewError(RetCInvalidOperation, fmt.Sprintf("data store name exceeds %d characters", MaxStoreNameLength))
	}
	if len(r.Scope) > MaxScopeLength {
		return NewError(RetCInvalidOperation, fmt.Sprintf("scope exceeds %d characters", MaxScopeLength))
	}
	return nil
}

func (r StoreRef) String() string {
	n := r.Normalize()
	return n.Name + "/" + n.Scope
}

// ValidateKey checks a key against the service limits.
func ValidateKey(key string) error {
	if key == "" {
		return NewError(RetCInvalidOperation, "key must not be empty")
	}
	if len(key) > MaxKeyLength {
		return NewError(RetCInvalidOperation, fmt.Sprintf("key exceeds %d characters", MaxKeyLength))
	}
	return nil
}

// --------------------------------------------------------------------------
// Entries
// --------------------------------------------------------------------------

// Entry is a single version of a key as returned by the service.
type Entry struct {
	Key         string            `json:"key"`
	Value       []byte            `json:"value,omitempty"` // JSON encoded
	Version     string            `json:"version"`
	Deleted     bool              `json:"deleted,omitempty"`
	CreatedTime time.Time         `json:"created_time"` // creation of the key
	UpdatedTime time.Time         `json:"updated_time"` // creation of this version
	UserIDs     []int64           `json:"user_ids,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Decode unmarshals the JSON value of the entry.
func (e Entry) Decode() (any, error) {
	var v any
	if len(e.Value) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return nil, fmt.Errorf("decoding value of key %q: %w", e.Key, err)
	}
	return v, nil
}

// SetOptions carries the optional arguments of write operations.
type SetOptions struct {
	UserIDs  []int64
	Metadata map[string]string
	// ExclusiveCreate fails with ErrAlreadyExists if the key exists.
	ExclusiveCreate bool
	// MatchVersion fails with ErrVersionMismatch unless the latest version equals it.
	MatchVersion string
}

// --------------------------------------------------------------------------
// Listings
// --------------------------------------------------------------------------

// Page is one bounded page of a listing. An empty NextPageToken means that
// no further pages exist. Pages are immutable once returned.
type Page[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// IsFinished reports whether this is the last page.
func (p Page[T]) IsFinished() bool {
	return p.NextPageToken == ""
}

// KeyInfo is an item of a key listing.
type KeyInfo struct {
	Scope string `json:"scope"`
	Key   string `json:"key"`
}

// VersionInfo is an item of a version listing.
type VersionInfo struct {
	Version       string    `json:"version"`
	Deleted       bool      `json:"deleted"`
	ContentLength int       `json:"content_length"`
	CreatedTime   time.Time `json:"created_time"`
}

// StoreInfo is an item of a data store listing.
type StoreInfo struct {
	Name        string    `json:"name"`
	CreatedTime time.Time `json:"created_time"`
}

// SortDirection orders version listings.
type SortDirection uint8

const (
	SortAscending SortDirection = iota
	SortDescending
)

func (d SortDirection) String() string {
	if d == SortDescending {
		return "descending"
	}
	return "ascending"
}

// KeyQuery describes a key listing.
type KeyQuery struct {
	Store  StoreRef
	Prefix string
	// PageSize of 0 selects DefaultPageSize, values above MaxPageSize are capped.
	PageSize int
	// AllScopes lists keys of every scope; the Store scope is ignored.
	AllScopes bool
}

// VersionQuery describes a version listing of a single key.
type VersionQuery struct {
	Store     StoreRef
	Key       string
	Direction SortDirection
	MinDate   time.Time // zero means unbounded
	MaxDate   time.Time // zero means unbounded
	PageSize  int
}

// StoreQuery describes a data store listing.
type StoreQuery struct {
	Prefix   string
	PageSize int
}

// EffectivePageSize applies the default and the service cap to a requested page size.
func EffectivePageSize(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, NewError(RetCInvalidOperation, "page size must not be negative")
	case requested == 0:
		return DefaultPageSize, nil
	case requested > MaxPageSize:
		return MaxPageSize, nil
	default:
		return requested, nil
	}
}
