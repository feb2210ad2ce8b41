package ds

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/cloudstore/cmd/util"
	"github.com/ValentinKolb/cloudstore/lib/service"
	"github.com/ValentinKolb/cloudstore/rpc/client"
	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/ValentinKolb/cloudstore/rpc/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcTransport transport.IRPCClientTransport
	svc          *service.DataStoreService
	out          *printer

	// DataStoreCommands represents the data store command group
	DataStoreCommands = &cobra.Command{
		Use:                "ds",
		Short:              "Perform data store operations",
		Long:               "Read, write, list and watch the data stores of a universe served by 'cloudstore serve'.",
		PersistentPreRunE:  setupDSClient,
		PersistentPostRunE: teardownDSClient,
	}
)

func init() {
	util.SetupRPCClientFlags(DataStoreCommands)
	util.SetupWatchFlags(DataStoreCommands)

	key := "store"
	DataStoreCommands.PersistentFlags().StringP(key, "s", "", util.WrapString("Name of the data store"))

	key = "scope"
	DataStoreCommands.PersistentFlags().String(key, "", util.WrapString("Scope of the data store (default \"global\")"))

	key = "output"
	DataStoreCommands.PersistentFlags().StringP(key, "o", FormatTable, util.WrapString("Output format (table, json, yaml)"))

	DataStoreCommands.AddCommand(getCmd)
	DataStoreCommands.AddCommand(getVersionCmd)
	DataStoreCommands.AddCommand(setCmd)
	DataStoreCommands.AddCommand(incrCmd)
	DataStoreCommands.AddCommand(removeCmd)
	DataStoreCommands.AddCommand(keysCmd)
	DataStoreCommands.AddCommand(versionsCmd)
	DataStoreCommands.AddCommand(storesCmd)
	DataStoreCommands.AddCommand(watchCmd)
}

// setupDSClient initializes the RPC store client and the data store service
func setupDSClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	var err error
	if out, err = newPrinter(cmd.OutOrStdout(), viper.GetString("output")); err != nil {
		return err
	}

	config := util.GetClientConfig()

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	rpcTransport, err = util.GetTransport()
	if err != nil {
		return err
	}

	store, err := client.NewRPCStore(util.GetUniverseID(), *config, rpcTransport, s)
	if err != nil {
		return err
	}

	svc = service.NewDataStoreService(store, util.GetWatchConfig())
	return nil
}

// teardownDSClient stops all subscriptions and closes the transport
func teardownDSClient(_ *cobra.Command, _ []string) error {
	if svc != nil {
		svc.Close()
	}
	if rpcTransport == nil {
		return nil
	}
	if viper.GetBool("print-metrics") {
		util.PrintMetrics(os.Stderr, rpcTransport)
	}
	return rpcTransport.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// dataStore returns the data store selected with --store and --scope
func dataStore() (*service.DataStore, error) {
	name := viper.GetString("store")
	if name == "" {
		return nil, fmt.Errorf("no data store selected, use --store")
	}
	return svc.GetDataStore(name, viper.GetString("scope")), nil
}

// requestContext returns the context of a single request, bounded by the client timeout
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := viper.GetInt("timeout"); timeout > 0 {
		return context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	}
	return context.WithCancel(ctx)
}
