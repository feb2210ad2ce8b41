package server

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/ValentinKolb/cloudstore/lib/mstore"
	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/ValentinKolb/cloudstore/rpc/serializer"
	"github.com/ValentinKolb/cloudstore/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverUniverse is a struct that represents a universe in the RPC server
// It contains the store it encapsulates and the adapter that handles requests for the store
type serverUniverse struct {
	Store   datastore.IStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters.
// Every universe of the config is backed by its own in-memory store (see mstore).
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewCBORSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	return NewRPCServerWithFactory(config, transport, serializer, mstore.NewStore)
}

// NewRPCServerWithFactory creates a new RPC server that creates the store of each universe with factory
func NewRPCServerWithFactory(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	factory datastore.StoreFactory,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		factory:    factory,
		universes:  xsync.NewMapOf[uint64, serverUniverse](),
	}
}

// RPCServer serves the universes of its config over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	factory    datastore.StoreFactory
	universes  *xsync.MapOf[uint64, serverUniverse]
}

// Serve starts the RPC server
// This function will also initialize the universes and start the transport layer.
// It blocks until Close is called.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport. Serve returns afterwards.
func (s *RPCServer) Close() error {
	return s.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	if len(s.config.Universes) == 0 {
		return fmt.Errorf("no universes configured")
	}

	for _, id := range s.config.Universes {
		if _, loaded := s.universes.LoadOrStore(id, serverUniverse{
			Store:   s.factory(),
			Adapter: NewIStoreServerAdapter(),
		}); loaded {
			return fmt.Errorf("universe %d configured twice", id)
		}
		Logger.Infof("created in-memory store for universe %d", id)
	}

	s.transport.RegisterHandler(s.handle)
	return nil
}

// handle is the transport.ServerHandleFunc of the server
func (s *RPCServer) handle(universeID uint64, req []byte) []byte {
	respMsg := s.dispatch(universeID, req)

	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(datastore.RetCInternalError,
			fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// dispatch decodes a request and lets the adapter of the universe handle it
func (s *RPCServer) dispatch(universeID uint64, req []byte) (resp *common.Message) {
	universe, ok := s.universes.Load(universeID)
	if !ok {
		return common.NewErrorResponse(datastore.RetCInvalidOperation, fmt.Sprintf("universe %d not found", universeID))
	}

	var msg common.Message
	if err := s.serializer.Deserialize(req, &msg); err != nil {
		return common.NewErrorResponse(datastore.RetCInvalidOperation, fmt.Sprintf("failed to deserialize request: %s", err))
	}

	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("panic while handling %s request for universe %d: %v", msg.MsgType, universeID, r)
			resp = common.NewErrorResponse(datastore.RetCInternalError, fmt.Sprintf("internal error: %v", r))
		}
	}()

	ctx := context.Background()
	if s.config.TimeoutSecond > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.TimeoutSecond)*time.Second)
		defer cancel()
	}

	return universe.Adapter.Handle(ctx, &msg, universe.Store)
}
