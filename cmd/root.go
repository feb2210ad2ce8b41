package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/cloudstore/cmd/ds"
	"github.com/ValentinKolb/cloudstore/cmd/serve"
	"github.com/ValentinKolb/cloudstore/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "cloudstore",
		Short: "versioned key-value data stores",
		Long: fmt.Sprintf(`cloudstore (v%s)

A server for versioned JSON key-value data stores and a client to read, write,
list and watch them.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of cloudstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("cloudstore v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(ds.DataStoreCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "cbor", util.WrapString("serializer to use (json, gob, cbor)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
