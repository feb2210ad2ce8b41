package server

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(ctx context.Context, req *common.Message, store datastore.IStore) (resp *common.Message) {
	if store == nil {
		return common.NewErrorResponse(datastore.RetCInternalError, "handler: store is nil")
	}

	start := time.Now()
	defer func() {
		metrics.GetOrCreateCounter(fmt.Sprintf(`cloudstore_rpc_requests_total{type=%q,code=%q}`, req.MsgType, resp.Code)).Inc()
		metrics.GetOrCreateHistogram(fmt.Sprintf(`cloudstore_rpc_request_duration_seconds{type=%q}`, req.MsgType)).UpdateDuration(start)
	}()

	ref := req.Ref()

	switch req.MsgType {
	case common.MsgTDSGet:
		entry, err := store.Get(ctx, ref, req.Key)
		return common.NewEntryResponse(req.MsgType, entry, err)
	case common.MsgTDSGetVersion:
		entry, err := store.GetVersion(ctx, ref, req.Key, req.Version)
		return common.NewEntryResponse(req.MsgType, entry, err)
	case common.MsgTDSSet:
		version, err := store.Set(ctx, ref, req.Key, req.Value, req.SetOptions())
		return common.NewSetResponse(version, err)
	case common.MsgTDSIncrement:
		entry, err := store.Increment(ctx, ref, req.Key, req.Delta, req.SetOptions())
		return common.NewEntryResponse(req.MsgType, entry, err)
	case common.MsgTDSRemove:
		entry, err := store.Remove(ctx, ref, req.Key)
		return common.NewEntryResponse(req.MsgType, entry, err)
	case common.MsgTDSListKeys:
		page, err := store.ListKeys(ctx, datastore.KeyQuery{
			Store:     ref,
			Prefix:    req.Prefix,
			PageSize:  req.PageSize,
			AllScopes: req.AllScopes,
		}, req.Token)
		return common.NewListKeysResponse(page, err)
	case common.MsgTDSListVersions:
		page, err := store.ListVersions(ctx, datastore.VersionQuery{
			Store:     ref,
			Key:       req.Key,
			Direction: datastore.SortDirection(req.Direction),
			MinDate:   req.MinDate,
			MaxDate:   req.MaxDate,
			PageSize:  req.PageSize,
		}, req.Token)
		return common.NewListVersionsResponse(page, err)
	case common.MsgTDSListStores:
		page, err := store.ListStores(ctx, datastore.StoreQuery{
			Prefix:   req.Prefix,
			PageSize: req.PageSize,
		}, req.Token)
		return common.NewListStoresResponse(page, err)
	default:
		return common.NewErrorResponse(datastore.RetCInvalidOperation,
			fmt.Sprintf("unsupported message type: %s", req.MsgType))
	}
}
