package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/ValentinKolb/cloudstore/rpc/serializer"
	"github.com/ValentinKolb/cloudstore/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	universeID uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends a request to the universe of the adapter, see invokeRPCRequest
func (a *rpcClientAdapter) invoke(ctx context.Context, req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(ctx, a.universeID, req, a.transport, a.serializer)
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a universe ID, a request message, a transport layer and a serializer as parameters
// It returns the response message or an error. Failures of the transport are reported as
// datastore.ErrTransport, error responses of the server keep their datastore.RetCode.
func invokeRPCRequest(ctx context.Context, universeID uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, datastore.WrapError(datastore.RetCInternalError, "failed to serialize request", err)
	}

	respBytes, err := transport.Send(ctx, universeID, reqBytes)
	if err != nil {
		Logger.Debugf("%s request to universe %d failed: %v", req.MsgType, universeID, err)
		return nil, datastore.WrapError(datastore.RetCTransport, fmt.Sprintf("%s request failed", req.MsgType), err)
	}

	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, datastore.WrapError(datastore.RetCInternalError, "failed to deserialize response", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" || resp.Code != datastore.RetCSuccess {
		return nil, resp.ResponseErr()
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, datastore.NewError(datastore.RetCInternalError,
			fmt.Sprintf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType))
	}

	return resp, nil
}
