package note

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dNotes/notes/protocol"
	"github.com/spf13/cobra"
	"os"
)

var (
	getCmd = &cobra.Command{
		Use:   "get",
		Short: "Prints all notes as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := noteClient.Get()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(notes)
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [id] [content]",
		Short: "Creates or replaces a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			updated, _ := cmd.Flags().GetString("updated")
			if err := noteClient.Set(protocol.Note{ID: args[0], Content: args[1], Updated: updated}); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Deletes a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := noteClient.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
)

func init() {
	setCmd.Flags().String("updated", "", "Value of the updated field, passed through as is")
}
