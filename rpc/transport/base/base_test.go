package base

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/ValentinKolb/cloudstore/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackConnector listens on a random local TCP port and dials it
type loopbackConnector struct {
	ready chan string
}

func (c *loopbackConnector) GetName() string { return "loopback" }

func (c *loopbackConnector) Listen(common.ServerConfig) (net.Listener, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	c.ready <- l.Addr().String()
	return l, nil
}

func (c *loopbackConnector) Connect(endpoint string) (net.Conn, error) {
	return net.Dial("tcp", endpoint)
}

type serverConnector struct{ *loopbackConnector }

func (c serverConnector) UpgradeConnection(net.Conn, common.ServerConfig) error { return nil }

type clientConnector struct{ *loopbackConnector }

func (c clientConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

// startServer starts a server with the given handler and returns its address
func startServer(t *testing.T, handler transport.ServerHandleFunc) (transport.IRPCServerTransport, string) {
	t.Helper()
	connector := &loopbackConnector{ready: make(chan string, 1)}
	server := NewBaseServerTransport(serverConnector{connector}, 1024)
	server.RegisterHandler(handler)

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{
			Transport: common.ServerTransportConfig{WorkersPerConn: 4},
		})
	}()

	var addr string
	select {
	case addr = <-connector.ready:
	case err := <-done:
		t.Fatalf("listen failed: %v", err)
	}

	t.Cleanup(func() {
		_ = server.Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Listen did not return after Close")
		}
	})
	return server, addr
}

func connectClient(t *testing.T, addr string, conns int) transport.IRPCClientTransport {
	t.Helper()
	client := NewBaseClientTransport(clientConnector{&loopbackConnector{}})
	require.NoError(t, client.Connect(common.ClientConfig{
		TimeoutSecond: 2,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{addr},
			RetryCount:             2,
			ConnectionsPerEndpoint: conns,
		},
	}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// echo prefixes the request with its universe
func echo(universeID uint64, req []byte) []byte {
	return append([]byte(fmt.Sprintf("%d:", universeID)), req...)
}

func TestSendReceive(t *testing.T) {
	_, addr := startServer(t, echo)
	client := connectClient(t, addr, 1)

	resp, err := client.Send(context.Background(), 7, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "7:hello", string(resp))

	resp, err = client.Send(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "1:", string(resp))
}

func TestLargeFrame(t *testing.T) {
	_, addr := startServer(t, echo)
	client := connectClient(t, addr, 1)

	// larger than the server buffer
	payload := bytes.Repeat([]byte("x"), 64*1024)
	resp, err := client.Send(context.Background(), 2, payload)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("2:"), payload...), resp)
}

func TestConcurrentRequests(t *testing.T) {
	_, addr := startServer(t, echo)
	client := connectClient(t, addr, 3)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := []byte(fmt.Sprintf("req-%d", i))
			resp, err := client.Send(context.Background(), uint64(i), req)
			if assert.NoError(t, err) {
				assert.Equal(t, fmt.Sprintf("%d:req-%d", i, i), string(resp))
			}
		}()
	}
	wg.Wait()

	timer := client.(transport.IMetricsProvider).Metrics().Get("rpc.client.requests")
	require.NotNil(t, timer)
}

func TestSendHonoursContext(t *testing.T) {
	release := make(chan struct{})
	_, addr := startServer(t, func(universeID uint64, req []byte) []byte {
		<-release
		return req
	})
	defer close(release)
	client := connectClient(t, addr, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Send(ctx, 1, []byte("slow"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestConnectWithoutEndpoints(t *testing.T) {
	client := NewBaseClientTransport(clientConnector{&loopbackConnector{}})
	assert.Error(t, client.Connect(common.ClientConfig{}))
}

func TestConnectUnreachable(t *testing.T) {
	// reserve a port and free it again so nothing listens there
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	client := NewBaseClientTransport(clientConnector{&loopbackConnector{}})
	assert.Error(t, client.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{addr}},
	}))
}

func TestSendAfterClose(t *testing.T) {
	_, addr := startServer(t, echo)
	client := connectClient(t, addr, 1)
	require.NoError(t, client.Close())

	_, err := client.Send(context.Background(), 1, []byte("x"))
	assert.Error(t, err)
}

func TestFrameRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	go func() {
		_ = writeFrame(a, 42, 9, []byte("payload"))
	}()

	universeID, requestID, data, err := readFrame(b, make([]byte, 4))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), universeID)
	assert.Equal(t, uint64(9), requestID)
	assert.Equal(t, "payload", string(data))
}
