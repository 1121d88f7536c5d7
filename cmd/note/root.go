package note

import (
	"context"
	"github.com/ValentinKolb/dNotes/cmd/util"
	"github.com/ValentinKolb/dNotes/notes/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"time"
)

var (
	noteClient *client.Client

	// NoteCommands talks to a running notes server over WebSocket
	NoteCommands = &cobra.Command{
		Use:                "note",
		Short:              "Read and write notes on a notes server",
		PersistentPreRunE:  connect,
		PersistentPostRunE: disconnect,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "server"
	NoteCommands.PersistentFlags().String(key, "ws://127.0.0.1:5000/ws", util.WrapString("The WebSocket URL of the notes server"))

	key = "token"
	NoteCommands.PersistentFlags().String(key, "", util.WrapString("Token for a server in auth mode static"))

	key = "username"
	NoteCommands.PersistentFlags().String(key, "", util.WrapString("Username for a server in auth mode user"))

	key = "ws-token"
	NoteCommands.PersistentFlags().String(key, "", util.WrapString("The token returned by /account/login, for a server in auth mode user"))

	key = "timeout"
	NoteCommands.PersistentFlags().Duration(key, 10*time.Second, util.WrapString("Timeout of connect and of every single request"))

	NoteCommands.AddCommand(getCmd)
	NoteCommands.AddCommand(setCmd)
	NoteCommands.AddCommand(deleteCmd)
}

func connect(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	timeout := viper.GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var err error
	noteClient, err = client.Dial(ctx, viper.GetString("server"), client.Options{
		Token:     viper.GetString("token"),
		Username:  viper.GetString("username"),
		UserToken: viper.GetString("ws-token"),
		Timeout:   timeout,
	})
	return err
}

func disconnect(_ *cobra.Command, _ []string) error {
	if noteClient == nil {
		return nil
	}
	return noteClient.Close()
}
