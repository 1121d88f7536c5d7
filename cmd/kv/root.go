package kv

import (
	"github.com/ValentinKolb/dNotes/cmd/util"
	"github.com/ValentinKolb/dNotes/lib/store"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// KeyValueCommands gives raw access to the key-value store behind the notes
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform raw key-value store operations",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreClientFlags(KeyValueCommands)

	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(hsetCmd)
	KeyValueCommands.AddCommand(hgetCmd)
	KeyValueCommands.AddCommand(infoCmd)
}

// setupKVClient initializes the RPC store client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	rpcStore, err = util.NewStoreClient()
	return err
}
