package cmd

import (
	"fmt"

	"github.com/asnlens/asnlens/internal/typetree"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types [protocol]",
	Short: "List the declared types of a protocol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		proto := app.reg.GetProtocol(args[0])
		if proto == nil {
			return fmt.Errorf("protocol %q not found", args[0])
		}
		for _, name := range proto.Types {
			fmt.Println(name)
		}
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree [protocol] [type]",
	Short: "Print the introspected type tree of a declared type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		spec, err := app.resolveSpec(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Println(oj.JSON(typetree.Build(spec.Types()[args[1]]), 2))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(treeCmd)
}
