package serve

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/cloudstore/cmd/util"
	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/ValentinKolb/cloudstore/rpc/serializer"
	"github.com/ValentinKolb/cloudstore/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the cloudstore server",
		Long: `Start the cloudstore server with the specified configuration. Every universe is backed by an in-memory store.
The configuration can be set via command line flags or environment variables. The format of the environment variables is CLOUDSTORE_<flag> (e.g. CLOUDSTORE_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "universes"
	ServeCmd.PersistentFlags().String(key, "1", cmdUtil.WrapString("Comma-separated list of universe IDs to serve (e.g. 1,2,3)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for handling a single request"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/cloudstore.sock, ...)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("(tcp, unix) Number of requests handled in parallel per connection"))

	key = "transport-http2"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("(http) Accept cleartext HTTP/2 (h2c) next to HTTP/1.1"))

	key = "transport-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("(tcp, unix) Size of the per connection buffers in KB, 0 uses the transport default"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("(tcp, unix) Socket write buffer size in KB, 0 keeps the OS default"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("(tcp, unix) Socket read buffer size in KB, 0 keeps the OS default"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("(tcp) Disable Nagle's algorithm"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 30, cmdUtil.WrapString("(tcp) Keep-alive period in seconds, 0 disables keep-alive"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, -1, cmdUtil.WrapString("(tcp) Linger time in seconds, negative keeps the OS default"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	universes, err := parseUniverses(viper.GetString("universes"))
	if err != nil {
		return err
	}

	serveCmdConfig.Universes = universes
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		HTTP2:          viper.GetBool("transport-http2"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
		},
	}

	return nil
}

// parseUniverses parses a comma-separated list of universe IDs
func parseUniverses(value string) ([]uint64, error) {
	var universes []uint64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid universe ID %s: %v", part, err)
		}
		universes = append(universes, id)
	}
	if len(universes) == 0 {
		return nil, fmt.Errorf("at least one universe is required")
	}
	return universes, nil
}

// run starts the cloudstore server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	s, err := serializer.New(viper.GetString("serializer"))
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = serv.Close()
	}()

	return serv.Serve()
}
