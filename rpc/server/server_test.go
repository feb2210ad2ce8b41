package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	dstesting "github.com/ValentinKolb/cloudstore/lib/datastore/testing"
	"github.com/ValentinKolb/cloudstore/rpc/client"
	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/ValentinKolb/cloudstore/rpc/serializer"
	"github.com/ValentinKolb/cloudstore/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// In-process transport
// --------------------------------------------------------------------------

// loopbackServer is a transport.IRPCServerTransport that is called directly by loopbackClient
type loopbackServer struct {
	mu      sync.RWMutex
	handler transport.ServerHandleFunc
	once    sync.Once
	closed  chan struct{}
}

func newLoopbackServer() *loopbackServer {
	return &loopbackServer{closed: make(chan struct{})}
}

func (l *loopbackServer) RegisterHandler(handler transport.ServerHandleFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = handler
}

func (l *loopbackServer) Listen(common.ServerConfig) error {
	<-l.closed
	return nil
}

func (l *loopbackServer) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

// loopbackClient is a transport.IRPCClientTransport calling the handler of a loopbackServer
type loopbackClient struct {
	server *loopbackServer
	fail   error
}

func (c *loopbackClient) Connect(common.ClientConfig) error { return nil }

func (c *loopbackClient) Send(ctx context.Context, universeID uint64, req []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.fail != nil {
		return nil, c.fail
	}
	select {
	case <-c.server.closed:
		return nil, errors.New("server closed")
	default:
	}

	c.server.mu.RLock()
	handler := c.server.handler
	c.server.mu.RUnlock()
	if handler == nil {
		return nil, errors.New("no handler registered")
	}
	// copy the request, the handler may keep references
	return handler(universeID, append([]byte(nil), req...)), nil
}

func (c *loopbackClient) Close() error { return nil }

// newLoopbackStore starts a server with the given universes and returns a client for universe
func newLoopbackStore(t testing.TB, s serializer.IRPCSerializer, universe uint64, universes ...uint64) (datastore.IStore, *loopbackClient) {
	t.Helper()
	srvTransport := newLoopbackServer()
	srv := NewRPCServer(common.ServerConfig{Universes: universes, TimeoutSecond: 5}, srvTransport, s)
	require.NoError(t, srv.init())
	t.Cleanup(func() { _ = srv.Close() })

	cliTransport := &loopbackClient{server: srvTransport}
	store, err := client.NewRPCStore(universe, common.ClientConfig{}, cliTransport, s)
	require.NoError(t, err)
	return store, cliTransport
}

var testSerializers = map[string]func() serializer.IRPCSerializer{
	"JSON": serializer.NewJSONSerializer,
	"GOB":  serializer.NewGOBSerializer,
	"CBOR": serializer.NewCBORSerializer,
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRPCStore(t *testing.T) {
	for name, newSerializer := range testSerializers {
		dstesting.RunStoreTests(t, "RPC/"+name, func() datastore.IStore {
			store, _ := newLoopbackStore(t, newSerializer(), 1, 1)
			return store
		})
	}
}

func BenchmarkRPCStore(b *testing.B) {
	dstesting.RunStoreBenchmarks(b, "RPC/CBOR", func() datastore.IStore {
		store, _ := newLoopbackStore(b, serializer.NewCBORSerializer(), 1, 1)
		return store
	})
}

func TestUniversesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := serializer.NewCBORSerializer()

	srvTransport := newLoopbackServer()
	srv := NewRPCServer(common.ServerConfig{Universes: []uint64{1, 2}}, srvTransport, s)
	require.NoError(t, srv.init())

	one, err := client.NewRPCStore(1, common.ClientConfig{}, &loopbackClient{server: srvTransport}, s)
	require.NoError(t, err)
	two, err := client.NewRPCStore(2, common.ClientConfig{}, &loopbackClient{server: srvTransport}, s)
	require.NoError(t, err)

	players := datastore.StoreRef{Name: "players"}
	_, err = one.Set(ctx, players, "alice", []byte(`1`), datastore.SetOptions{})
	require.NoError(t, err)

	_, err = two.Get(ctx, players, "alice")
	assert.ErrorIs(t, err, datastore.ErrNotFound)

	entry, err := one.Get(ctx, players, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte(`1`), entry.Value)
}

func TestUnknownUniverse(t *testing.T) {
	store, _ := newLoopbackStore(t, serializer.NewJSONSerializer(), 9, 1)

	_, err := store.Get(context.Background(), datastore.StoreRef{Name: "players"}, "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, datastore.ErrInvalid)
}

func TestErrorCodesSurviveTheWire(t *testing.T) {
	ctx := context.Background()
	store, _ := newLoopbackStore(t, serializer.NewCBORSerializer(), 1, 1)
	players := datastore.StoreRef{Name: "players"}

	v1, err := store.Set(ctx, players, "alice", []byte(`1`), datastore.SetOptions{})
	require.NoError(t, err)
	_, err = store.Set(ctx, players, "alice", []byte(`2`), datastore.SetOptions{})
	require.NoError(t, err)

	_, err = store.Set(ctx, players, "alice", []byte(`3`), datastore.SetOptions{MatchVersion: v1})
	assert.ErrorIs(t, err, datastore.ErrVersionMismatch)

	_, err = store.Set(ctx, players, "alice", []byte(`3`), datastore.SetOptions{ExclusiveCreate: true})
	assert.ErrorIs(t, err, datastore.ErrAlreadyExists)

	_, err = store.Set(ctx, players, "bob", []byte(`not json`), datastore.SetOptions{})
	assert.ErrorIs(t, err, datastore.ErrInvalid)

	_, err = store.GetVersion(ctx, players, "alice", "unknown")
	assert.ErrorIs(t, err, datastore.ErrNotFound)
}

func TestTransportFailures(t *testing.T) {
	store, cli := newLoopbackStore(t, serializer.NewCBORSerializer(), 1, 1)
	cli.fail = errors.New("connection refused")

	_, err := store.Get(context.Background(), datastore.StoreRef{Name: "players"}, "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, datastore.ErrTransport)
	assert.Equal(t, datastore.RetCTransport, datastore.CodeOf(err))
}

func TestCancelledContext(t *testing.T) {
	store, _ := newLoopbackStore(t, serializer.NewCBORSerializer(), 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ListStores(ctx, datastore.StoreQuery{}, "")
	assert.ErrorIs(t, err, datastore.ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMalformedRequest(t *testing.T) {
	s := serializer.NewJSONSerializer()
	srv := NewRPCServer(common.ServerConfig{Universes: []uint64{1}}, newLoopbackServer(), s)
	require.NoError(t, srv.init())

	var resp common.Message
	require.NoError(t, s.Deserialize(srv.handle(1, []byte("{broken")), &resp))
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.ErrorIs(t, resp.ResponseErr(), datastore.ErrInvalid)

	// unsupported message types are rejected by the adapter
	req, err := s.Serialize(common.Message{MsgType: common.MsgTSuccess})
	require.NoError(t, err)
	require.NoError(t, s.Deserialize(srv.handle(1, req), &resp))
	assert.ErrorIs(t, resp.ResponseErr(), datastore.ErrInvalid)
}

func TestServeAndClose(t *testing.T) {
	srv := NewRPCServer(common.ServerConfig{Universes: []uint64{1}}, newLoopbackServer(), serializer.NewJSONSerializer())

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	require.NoError(t, srv.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
}

func TestInitValidation(t *testing.T) {
	s := serializer.NewJSONSerializer()

	srv := NewRPCServer(common.ServerConfig{}, newLoopbackServer(), s)
	assert.Error(t, srv.init())

	srv = NewRPCServer(common.ServerConfig{Universes: []uint64{1, 1}}, newLoopbackServer(), s)
	assert.Error(t, srv.init())
}
