package mstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// version is a single write of a key.
type version struct {
	id       string
	index    uint64 // write index, orders versions of all keys
	value    []byte
	deleted  bool
	created  time.Time
	userIDs  []int64
	metadata map[string]string
}

// history holds all versions of a key, oldest first.
type history struct {
	scope    string
	key      string
	created  time.Time
	versions []*version
}

func (h *history) latest() *version {
	return h.versions[len(h.versions)-1]
}

// live reports whether the key currently has a value.
func (h *history) live() bool {
	return !h.latest().deleted
}

// dataStore is one named store of the universe.
type dataStore struct {
	name    string
	created time.Time

	mu   sync.RWMutex
	keys map[string]*history // scope + "/" + key
}

type storeImpl struct {
	stores *xsync.MapOf[string, *dataStore]
	index  atomic.Uint64
	now    func() time.Time
}

// NewStore creates an empty in-memory store. Data stores are created on their first write.
func NewStore() datastore.IStore {
	return newStore(time.Now)
}

func newStore(now func() time.Time) *storeImpl {
	return &storeImpl{
		stores: xsync.NewMapOf[string, *dataStore](),
		now:    now,
	}
}

// incAndGetIndex increments the write index and returns the new value.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see datastore/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(ctx context.Context, ref datastore.StoreRef, key string) (datastore.Entry, error) {
	h, ds, err := s.lookup(ctx, ref, key)
	if err != nil {
		return datastore.Entry{}, err
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if !h.live() {
		return datastore.Entry{}, notFound(ref, key)
	}
	return toEntry(h, h.latest()), nil
}

func (s *storeImpl) GetVersion(ctx context.Context, ref datastore.StoreRef, key, versionID string) (datastore.Entry, error) {
	h, ds, err := s.lookup(ctx, ref, key)
	if err != nil {
		return datastore.Entry{}, err
	}
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	for _, v := range h.versions {
		if v.id == versionID {
			return toEntry(h, v), nil
		}
	}
	return datastore.Entry{}, datastore.NewError(datastore.RetCNotFound,
		fmt.Sprintf("version %q of key %q not found in %s", versionID, key, ref))
}

func (s *storeImpl) Set(ctx context.Context, ref datastore.StoreRef, key string, value []byte, opts datastore.SetOptions) (string, error) {
	if err := validateWrite(ctx, ref, key, opts); err != nil {
		return "", err
	}
	if len(value) > datastore.MaxValueSize {
		return "", datastore.NewError(datastore.RetCInvalidOperation,
			fmt.Sprintf("value exceeds %d bytes", datastore.MaxValueSize))
	}
	if !json.Valid(value) {
		return "", datastore.NewError(datastore.RetCInvalidOperation, "value is not valid JSON")
	}

	ds := s.dataStore(ref.Name)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	h := ds.keys[storageKey(ref, key)]
	if opts.ExclusiveCreate && h != nil && h.live() {
		return "", datastore.NewError(datastore.RetCAlreadyExists, fmt.Sprintf("key %q already exists in %s", key, ref))
	}
	if opts.MatchVersion != "" && (h == nil || !h.live() || h.latest().id != opts.MatchVersion) {
		return "", datastore.NewError(datastore.RetCVersionMismatch,
			fmt.Sprintf("latest version of key %q is not %q", key, opts.MatchVersion))
	}

	v := s.appendVersion(ds, ref, key, value, opts)
	return v.id, nil
}

func (s *storeImpl) Increment(ctx context.Context, ref datastore.StoreRef, key string, delta int64, opts datastore.SetOptions) (datastore.Entry, error) {
	if err := validateWrite(ctx, ref, key, opts); err != nil {
		return datastore.Entry{}, err
	}

	ds := s.dataStore(ref.Name)
	ds.mu.Lock()
	defer ds.mu.Unlock()

	var current int64
	if h := ds.keys[storageKey(ref, key)]; h != nil && h.live() {
		n, err := parseInt(h.latest().value)
		if err != nil {
			return datastore.Entry{}, datastore.WrapError(datastore.RetCInvalidOperation,
				fmt.Sprintf("value of key %q is not an integer", key), err)
		}
		current = n
	}

	value := []byte(strconv.FormatInt(current+delta, 10))
	v := s.appendVersion(ds, ref, key, value, opts)
	return toEntry(ds.keys[storageKey(ref, key)], v), nil
}

func (s *storeImpl) Remove(ctx context.Context, ref datastore.StoreRef, key string) (datastore.Entry, error) {
	h, ds, err := s.lookup(ctx, ref, key)
	if err != nil {
		return datastore.Entry{}, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !h.live() {
		return datastore.Entry{}, notFound(ref, key)
	}
	removed := toEntry(h, h.latest())
	h.latest().deleted = true
	return removed, nil
}

func (s *storeImpl) ListKeys(ctx context.Context, query datastore.KeyQuery, token string) (datastore.Page[datastore.KeyInfo], error) {
	if err := ctx.Err(); err != nil {
		return datastore.Page[datastore.KeyInfo]{}, err
	}
	ref := query.Store.Normalize()
	if err := ref.Validate(); err != nil {
		return datastore.Page[datastore.KeyInfo]{}, err
	}
	size, err := datastore.EffectivePageSize(query.PageSize)
	if err != nil {
		return datastore.Page[datastore.KeyInfo]{}, err
	}

	var items []datastore.KeyInfo
	if ds, ok := s.stores.Load(ref.Name); ok {
		ds.mu.RLock()
		for _, h := range ds.keys {
			if !h.live() || !strings.HasPrefix(h.key, query.Prefix) {
				continue
			}
			if !query.AllScopes && h.scope != ref.Scope {
				continue
			}
			items = append(items, datastore.KeyInfo{Scope: h.scope, Key: h.key})
		}
		ds.mu.RUnlock()
	}

	slices.SortFunc(items, func(a, b datastore.KeyInfo) int {
		return strings.Compare(keyCursor(a), keyCursor(b))
	})
	return paginate(items, keyCursor, token, size, false)
}

func (s *storeImpl) ListVersions(ctx context.Context, query datastore.VersionQuery, token string) (datastore.Page[datastore.VersionInfo], error) {
	ref := query.Store.Normalize()
	size, err := datastore.EffectivePageSize(query.PageSize)
	if err != nil {
		return datastore.Page[datastore.VersionInfo]{}, err
	}
	h, ds, err := s.lookup(ctx, ref, query.Key)
	if err != nil {
		return datastore.Page[datastore.VersionInfo]{}, err
	}

	var (
		items   []datastore.VersionInfo
		indices = map[string]uint64{}
	)
	ds.mu.RLock()
	for _, v := range h.versions {
		if !query.MinDate.IsZero() && v.created.Before(query.MinDate) {
			continue
		}
		if !query.MaxDate.IsZero() && v.created.After(query.MaxDate) {
			continue
		}
		indices[v.id] = v.index
		items = append(items, datastore.VersionInfo{
			Version:       v.id,
			Deleted:       v.deleted,
			ContentLength: len(v.value),
			CreatedTime:   v.created,
		})
	}
	ds.mu.RUnlock()

	desc := query.Direction == datastore.SortDescending
	if desc {
		slices.Reverse(items)
	}
	cursor := func(v datastore.VersionInfo) string {
		return fmt.Sprintf("%020d", indices[v.Version])
	}
	return paginate(items, cursor, token, size, desc)
}

func (s *storeImpl) ListStores(ctx context.Context, query datastore.StoreQuery, token string) (datastore.Page[datastore.StoreInfo], error) {
	if err := ctx.Err(); err != nil {
		return datastore.Page[datastore.StoreInfo]{}, err
	}
	size, err := datastore.EffectivePageSize(query.PageSize)
	if err != nil {
		return datastore.Page[datastore.StoreInfo]{}, err
	}

	var items []datastore.StoreInfo
	s.stores.Range(func(name string, ds *dataStore) bool {
		if strings.HasPrefix(name, query.Prefix) {
			items = append(items, datastore.StoreInfo{Name: name, CreatedTime: ds.created})
		}
		return true
	})

	cursor := func(i datastore.StoreInfo) string { return i.Name }
	slices.SortFunc(items, func(a, b datastore.StoreInfo) int { return strings.Compare(a.Name, b.Name) })
	return paginate(items, cursor, token, size, false)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// lookup returns the history of a key. The caller must lock the returned data store
// before reading the history.
func (s *storeImpl) lookup(ctx context.Context, ref datastore.StoreRef, key string) (*history, *dataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ref = ref.Normalize()
	if err := ref.Validate(); err != nil {
		return nil, nil, err
	}
	if err := datastore.ValidateKey(key); err != nil {
		return nil, nil, err
	}

	ds, ok := s.stores.Load(ref.Name)
	if !ok {
		return nil, nil, datastore.NewError(datastore.RetCNotFound, fmt.Sprintf("data store %q not found", ref.Name))
	}

	ds.mu.RLock()
	h, ok := ds.keys[storageKey(ref, key)]
	ds.mu.RUnlock()
	if !ok {
		return nil, nil, notFound(ref, key)
	}
	return h, ds, nil
}

// dataStore returns the named data store, creating it if needed.
func (s *storeImpl) dataStore(name string) *dataStore {
	ds, _ := s.stores.LoadOrCompute(name, func() *dataStore {
		return &dataStore{
			name:    name,
			created: s.now(),
			keys:    make(map[string]*history),
		}
	})
	return ds
}

// appendVersion writes a new version. The caller must hold the write lock of ds.
func (s *storeImpl) appendVersion(ds *dataStore, ref datastore.StoreRef, key string, value []byte, opts datastore.SetOptions) *version {
	ref = ref.Normalize()
	now := s.now()

	sk := storageKey(ref, key)
	h, ok := ds.keys[sk]
	if !ok {
		h = &history{scope: ref.Scope, key: key, created: now}
		ds.keys[sk] = h
	} else if !h.live() {
		// a key written after its removal starts a new lifetime
		h.created = now
	}

	v := &version{
		id:       uuid.NewString(),
		index:    s.incAndGetIndex(),
		value:    slices.Clone(value),
		created:  now,
		userIDs:  slices.Clone(opts.UserIDs),
		metadata: cloneMap(opts.Metadata),
	}
	h.versions = append(h.versions, v)
	return v
}

func validateWrite(ctx context.Context, ref datastore.StoreRef, key string, opts datastore.SetOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ref.Normalize().Validate(); err != nil {
		return err
	}
	if err := datastore.ValidateKey(key); err != nil {
		return err
	}
	if len(opts.Metadata) > datastore.MaxMetadataEntries {
		return datastore.NewError(datastore.RetCInvalidOperation,
			fmt.Sprintf("more than %d metadata entries", datastore.MaxMetadataEntries))
	}
	if opts.ExclusiveCreate && opts.MatchVersion != "" {
		return datastore.NewError(datastore.RetCInvalidOperation, "ExclusiveCreate and MatchVersion are mutually exclusive")
	}
	return nil
}

func toEntry(h *history, v *version) datastore.Entry {
	return datastore.Entry{
		Key:         h.key,
		Value:       slices.Clone(v.value),
		Version:     v.id,
		Deleted:     v.deleted,
		CreatedTime: h.created,
		UpdatedTime: v.created,
		UserIDs:     slices.Clone(v.userIDs),
		Metadata:    cloneMap(v.metadata),
	}
}

func storageKey(ref datastore.StoreRef, key string) string {
	return ref.Normalize().Scope + "/" + key
}

func keyCursor(k datastore.KeyInfo) string {
	return k.Scope + "/" + k.Key
}

func notFound(ref datastore.StoreRef, key string) error {
	return datastore.NewError(datastore.RetCNotFound, fmt.Sprintf("key %q not found in %s", key, ref))
}

// parseInt reads a JSON integer. Integral floats such as 3.0 are accepted.
func parseInt(value []byte) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(value, &n); err != nil {
		return 0, err
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%s is not integral", n)
	}
	return int64(f), nil
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
