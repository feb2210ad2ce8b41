package unix

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixRoundTrip(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "cloudstore.sock")

	server := NewUnixDefaultServerTransport()
	server.RegisterHandler(func(universeID uint64, req []byte) []byte {
		return append([]byte{byte(universeID)}, req...)
	})

	done := make(chan error, 1)
	go func() {
		done <- server.Listen(common.ServerConfig{
			Transport: common.ServerTransportConfig{Endpoint: socket},
		})
	}()

	// wait for the socket to accept connections
	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 5*time.Millisecond)

	client := NewUnixClientTransport()
	require.NoError(t, client.Connect(common.ClientConfig{
		TimeoutSecond: 2,
		Transport: common.ClientTransportConfig{
			Endpoints:  []string{socket},
			SocketConf: common.SocketConf{ReadBufferSize: 64 * 1024, WriteBufferSize: 64 * 1024},
		},
	}))

	resp, err := client.Send(context.Background(), 3, []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 'a', 'b', 'c'}, resp)

	require.NoError(t, client.Close())
	require.NoError(t, server.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after Close")
	}
}
