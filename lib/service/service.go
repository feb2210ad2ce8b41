package service

import (
	"context"
	"sync"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/ValentinKolb/cloudstore/lib/paging"
	"github.com/ValentinKolb/cloudstore/lib/watch"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("service")

// DataStoreService is the entry point of the client facade. It hands out DataStore
// handles for a universe and lists the data stores it contains.
type DataStoreService struct {
	store  datastore.IStore
	config watch.Config

	mu     sync.Mutex
	stores map[datastore.StoreRef]*DataStore
	closed bool
}

// NewDataStoreService creates a service on top of store. config controls the polling
// cadence of all subscriptions made through the service.
func NewDataStoreService(store datastore.IStore, config watch.Config) *DataStoreService {
	return &DataStoreService{
		store:  store,
		config: config.Normalize(),
		stores: make(map[datastore.StoreRef]*DataStore),
	}
}

// GetDataStore returns the handle of a data store. An empty scope selects the default scope.
// Handles are cached, so repeated calls with the same name and scope return the same handle.
func (s *DataStoreService) GetDataStore(name, scope string) *DataStore {
	ref := datastore.StoreRef{Name: name, Scope: scope}.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ds, ok := s.stores[ref]; ok {
		return ds
	}
	ds := &DataStore{store: s.store, ref: ref}
	ds.poller = watch.NewPoller(ds, s.config)
	if s.closed {
		ds.poller.Close()
	}
	s.stores[ref] = ds
	Logger.Debugf("opened data store %s", ref)
	return ds
}

// ListDataStores returns a cursor over the data stores of the universe.
func (s *DataStoreService) ListDataStores(query datastore.StoreQuery) *paging.Cursor[datastore.StoreInfo] {
	return paging.NewCursor(func(ctx context.Context, token string) (datastore.Page[datastore.StoreInfo], error) {
		return s.store.ListStores(ctx, query, token)
	})
}

// Close ends all subscriptions made through the service. Handles stay usable for
// one-shot operations, new subscriptions are disconnected immediately.
func (s *DataStoreService) Close() {
	s.mu.Lock()
	s.closed = true
	stores := make([]*DataStore, 0, len(s.stores))
	for _, ds := range s.stores {
		stores = append(stores, ds)
	}
	s.mu.Unlock()

	for _, ds := range stores {
		ds.poller.Close()
	}
}

// --------------------------------------------------------------------------
// DataStore
// --------------------------------------------------------------------------

// DataStore is the handle of a single data store and scope.
type DataStore struct {
	store  datastore.IStore
	ref    datastore.StoreRef
	poller *watch.Poller
}

// ListKeysOptions configures a key listing.
type ListKeysOptions struct {
	Prefix    string
	PageSize  int  // 0 selects the service default, larger values than the service cap are capped
	AllScopes bool // list keys of every scope of the data store
}

// ListVersionsOptions configures a version listing.
type ListVersionsOptions struct {
	Direction datastore.SortDirection
	MinDate   time.Time
	MaxDate   time.Time
	PageSize  int
}

// Ref returns the name and scope of the data store.
func (d *DataStore) Ref() datastore.StoreRef {
	return d.ref
}

func (d *DataStore) Get(ctx context.Context, key string) (datastore.Entry, error) {
	return d.store.Get(ctx, d.ref, key)
}

func (d *DataStore) GetVersion(ctx context.Context, key, version string) (datastore.Entry, error) {
	return d.store.GetVersion(ctx, d.ref, key, version)
}

func (d *DataStore) Set(ctx context.Context, key string, value []byte, opts datastore.SetOptions) (string, error) {
	return d.store.Set(ctx, d.ref, key, value, opts)
}

func (d *DataStore) Increment(ctx context.Context, key string, delta int64, opts datastore.SetOptions) (datastore.Entry, error) {
	return d.store.Increment(ctx, d.ref, key, delta, opts)
}

func (d *DataStore) Remove(ctx context.Context, key string) (datastore.Entry, error) {
	return d.store.Remove(ctx, d.ref, key)
}

// ReadValue implements watch.IValueReader.
func (d *DataStore) ReadValue(ctx context.Context, key string) (datastore.Entry, error) {
	return d.store.Get(ctx, d.ref, key)
}

// OnUpdate calls callback with the decoded value of key whenever it changes.
// See watch.Poller.OnUpdate for the delivery rules.
func (d *DataStore) OnUpdate(key string, callback watch.UpdateFunc) *watch.Connection {
	return d.poller.OnUpdate(key, callback)
}

// ListKeys returns a cursor over the keys of the data store.
func (d *DataStore) ListKeys(opts ListKeysOptions) *paging.Cursor[datastore.KeyInfo] {
	query := datastore.KeyQuery{
		Store:     d.ref,
		Prefix:    opts.Prefix,
		PageSize:  opts.PageSize,
		AllScopes: opts.AllScopes,
	}
	return paging.NewCursor(func(ctx context.Context, token string) (datastore.Page[datastore.KeyInfo], error) {
		return d.store.ListKeys(ctx, query, token)
	})
}

// ListVersions returns a cursor over the versions of key.
func (d *DataStore) ListVersions(key string, opts ListVersionsOptions) *paging.Cursor[datastore.VersionInfo] {
	query := datastore.VersionQuery{
		Store:     d.ref,
		Key:       key,
		Direction: opts.Direction,
		MinDate:   opts.MinDate,
		MaxDate:   opts.MaxDate,
		PageSize:  opts.PageSize,
	}
	return paging.NewCursor(func(ctx context.Context, token string) (datastore.Page[datastore.VersionInfo], error) {
		return d.store.ListVersions(ctx, query, token)
	})
}

// Subscriptions returns the number of active subscriptions of the data store.
func (d *DataStore) Subscriptions() int {
	return d.poller.Subscriptions()
}
