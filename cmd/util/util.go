package util

import (
	"fmt"
	"io"
	"strings"

	"github.com/ValentinKolb/cloudstore/lib/watch"
	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/ValentinKolb/cloudstore/rpc/serializer"
	"github.com/ValentinKolb/cloudstore/rpc/transport"
	"github.com/ValentinKolb/cloudstore/rpc/transport/http"
	"github.com/ValentinKolb/cloudstore/rpc/transport/tcp"
	"github.com/ValentinKolb/cloudstore/rpc/transport/unix"
	"github.com/joho/godotenv"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. CLOUDSTORE_TIMEOUT)
	EnvPrefix = "cloudstore"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads the env files and initializes viper. It is used by the client and the server commands.
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "universe"
	cmd.PersistentFlags().Uint64(key, 1, WrapString("ID of the universe to connect to"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the cloudstore server. For transports that support load balancing, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per endpoint - for transports that support this feature"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try the request"))

	key = "transport-http2"
	cmd.PersistentFlags().Bool(key, false, WrapString("Use HTTP/2 over cleartext (h2c), only for http"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time for the transport (in seconds, only for tcp, negative keeps the OS default)"))

	key = "print-metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the request metrics of the transport to stderr when the command is done"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	var endpoints []string
	for _, endpoint := range strings.Split(viper.GetString("transport-endpoints"), ",") {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			endpoints = append(endpoints, endpoint)
		}
	}

	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Transport: common.ClientTransportConfig{
			RetryCount:             viper.GetInt("transport-retries"),
			Endpoints:              endpoints,
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			HTTP2:                  viper.GetBool("transport-http2"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}
}

// GetUniverseID retrieves the configured universe ID
func GetUniverseID() uint64 {
	return viper.GetUint64("universe")
}

// SetupWatchFlags adds the polling flags of watch.Config to a command
func SetupWatchFlags(cmd *cobra.Command) {
	def := watch.DefaultConfig()

	key := "watch-min-interval"
	cmd.PersistentFlags().Duration(key, def.MinInterval, WrapString("Minimum interval between two reads of a watched key"))

	key = "watch-max-interval"
	cmd.PersistentFlags().Duration(key, def.MaxInterval, WrapString("Maximum interval between two reads of a watched key"))

	key = "watch-latency-multiplier"
	cmd.PersistentFlags().Float64(key, def.LatencyMultiplier, WrapString("The poll interval is the average read latency times this multiplier"))

	key = "watch-read-timeout"
	cmd.PersistentFlags().Duration(key, def.ReadTimeout, WrapString("Timeout of a single read of a watched key"))
}

// GetWatchConfig reads the polling configuration from viper
func GetWatchConfig() watch.Config {
	return watch.Config{
		MinInterval:       viper.GetDuration("watch-min-interval"),
		MaxInterval:       viper.GetDuration("watch-max-interval"),
		LatencyMultiplier: viper.GetFloat64("watch-latency-multiplier"),
		ReadTimeout:       viper.GetDuration("watch-read-timeout"),
	}.Normalize()
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.New(viper.GetString("serializer"))
}

// GetTransport creates transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// PrintMetrics writes the request metrics of t to w if the transport collects them
func PrintMetrics(w io.Writer, t transport.IRPCClientTransport) {
	provider, ok := t.(transport.IMetricsProvider)
	if !ok {
		return
	}
	gometrics.WriteOnce(provider.Metrics(), w)
}

// --------------------------------------------------------------------------
// Server configuration
// --------------------------------------------------------------------------

// GetServerTransport creates the server transport based on configuration
func GetServerTransport() (transport.IRPCServerTransport, error) {
	bufferSize := viper.GetInt("transport-buffer") * 1024
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		if bufferSize <= 0 {
			return tcp.NewTCPDefaultServerTransport(), nil
		}
		return tcp.NewTCPServerTransport(bufferSize), nil
	case "unix":
		if bufferSize <= 0 {
			return unix.NewUnixDefaultServerTransport(), nil
		}
		return unix.NewUnixServerTransport(bufferSize), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}
