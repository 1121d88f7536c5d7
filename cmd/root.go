package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dNotes/cmd/kv"
	"github.com/ValentinKolb/dNotes/cmd/note"
	"github.com/ValentinKolb/dNotes/cmd/serve"
	"github.com/ValentinKolb/dNotes/cmd/store"
	"github.com/ValentinKolb/dNotes/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dnotes",
		Short: "real-time note synchronization over WebSocket",
		Long: fmt.Sprintf(`dNotes (v%s)

Small text notes kept in a shared key-value store and synchronized to
clients over a persistent WebSocket connection.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dNotes",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dNotes v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(note.NoteCommands)
	RootCmd.AddCommand(store.StoreCommands)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer used between the notes server and the store (json, gob)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
