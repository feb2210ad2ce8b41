package client

import (
	"context"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/ValentinKolb/cloudstore/rpc/serializer"
	"github.com/ValentinKolb/cloudstore/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a universe ID, a config, a transport and a serializer as parameters
// It connects the transport and returns a datastore.IStore
func NewRPCStore(
	universeID uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (datastore.IStore, error) {

	if err := transport.Connect(config); err != nil {
		return nil, datastore.WrapError(datastore.RetCTransport, "failed to connect", err)
	}

	return &rpcStore{
		rpcClientAdapter{
			universeID: universeID,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see datastore.IStore)
// --------------------------------------------------------------------------

func (s *rpcStore) Get(ctx context.Context, ref datastore.StoreRef, key string) (datastore.Entry, error) {
	resp, err := s.invoke(ctx, common.NewGetRequest(ref, key))
	if err != nil {
		return datastore.Entry{}, err
	}
	return entryOf(resp)
}

func (s *rpcStore) GetVersion(ctx context.Context, ref datastore.StoreRef, key, version string) (datastore.Entry, error) {
	resp, err := s.invoke(ctx, common.NewGetVersionRequest(ref, key, version))
	if err != nil {
		return datastore.Entry{}, err
	}
	return entryOf(resp)
}

func (s *rpcStore) Set(ctx context.Context, ref datastore.StoreRef, key string, value []byte, opts datastore.SetOptions) (string, error) {
	resp, err := s.invoke(ctx, common.NewSetRequest(ref, key, value, opts))
	if err != nil {
		return "", err
	}
	return resp.Version, nil
}

func (s *rpcStore) Increment(ctx context.Context, ref datastore.StoreRef, key string, delta int64, opts datastore.SetOptions) (datastore.Entry, error) {
	resp, err := s.invoke(ctx, common.NewIncrementRequest(ref, key, delta, opts))
	if err != nil {
		return datastore.Entry{}, err
	}
	return entryOf(resp)
}

func (s *rpcStore) Remove(ctx context.Context, ref datastore.StoreRef, key string) (datastore.Entry, error) {
	resp, err := s.invoke(ctx, common.NewRemoveRequest(ref, key))
	if err != nil {
		return datastore.Entry{}, err
	}
	return entryOf(resp)
}

func (s *rpcStore) ListKeys(ctx context.Context, query datastore.KeyQuery, token string) (datastore.Page[datastore.KeyInfo], error) {
	resp, err := s.invoke(ctx, common.NewListKeysRequest(query, token))
	if err != nil {
		return datastore.Page[datastore.KeyInfo]{}, err
	}
	return datastore.Page[datastore.KeyInfo]{Items: resp.Keys, NextPageToken: resp.NextToken}, nil
}

func (s *rpcStore) ListVersions(ctx context.Context, query datastore.VersionQuery, token string) (datastore.Page[datastore.VersionInfo], error) {
	resp, err := s.invoke(ctx, common.NewListVersionsRequest(query, token))
	if err != nil {
		return datastore.Page[datastore.VersionInfo]{}, err
	}
	return datastore.Page[datastore.VersionInfo]{Items: resp.Versions, NextPageToken: resp.NextToken}, nil
}

func (s *rpcStore) ListStores(ctx context.Context, query datastore.StoreQuery, token string) (datastore.Page[datastore.StoreInfo], error) {
	resp, err := s.invoke(ctx, common.NewListStoresRequest(query, token))
	if err != nil {
		return datastore.Page[datastore.StoreInfo]{}, err
	}
	return datastore.Page[datastore.StoreInfo]{Items: resp.Stores, NextPageToken: resp.NextToken}, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// entryOf extracts the entry of a successful response
func entryOf(resp *common.Message) (datastore.Entry, error) {
	if resp.Entry == nil {
		return datastore.Entry{}, datastore.NewError(datastore.RetCInternalError, "response carries no entry")
	}
	return *resp.Entry, nil
}
