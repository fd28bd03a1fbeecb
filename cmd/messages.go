package cmd

import (
	"fmt"

	"github.com/asnlens/asnlens/internal/msgstore"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Manage the saved-message bank",
}

var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved messages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		store, err := msgstore.Open(app.cfg.MessagesDB)
		if err != nil {
			return err
		}
		defer store.Close()

		messages, err := store.List()
		if err != nil {
			return err
		}
		for _, m := range messages {
			fmt.Printf("%s\t%s/%s\t%s\n", m.Name, m.Protocol, m.TypeName, m.SavedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var messagesShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a saved message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		store, err := msgstore.Open(app.cfg.MessagesDB)
		if err != nil {
			return err
		}
		defer store.Close()

		m, err := store.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Println(oj.JSON(map[string]any{
			"name":     m.Name,
			"protocol": m.Protocol,
			"type":     m.TypeName,
			"data":     m.Data,
		}, 2))
		return nil
	},
}

var messagesRmCmd = &cobra.Command{
	Use:   "rm [name]",
	Short: "Delete a saved message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		store, err := msgstore.Open(app.cfg.MessagesDB)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(args[0])
	},
}

func init() {
	messagesCmd.AddCommand(messagesListCmd)
	messagesCmd.AddCommand(messagesShowCmd)
	messagesCmd.AddCommand(messagesRmCmd)
	rootCmd.AddCommand(messagesCmd)
}
