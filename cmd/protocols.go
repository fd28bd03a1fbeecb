package cmd

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List compiled protocols and their compile errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		out := map[string]any{
			"protocols": app.reg.ListMetadata(),
		}
		if errs := app.reg.Errors(); len(errs) > 0 {
			out["errors"] = errs
		}
		fmt.Println(oj.JSON(out, 2))
		return nil
	},
}

var examplesCmd = &cobra.Command{
	Use:   "examples [protocol]",
	Short: "Show the example values bundled with a protocol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		examples := app.reg.GetExamples(args[0])
		if examples == nil {
			return fmt.Errorf("protocol %q not found", args[0])
		}
		fmt.Println(oj.JSON(examples, 2))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(protocolsCmd)
	rootCmd.AddCommand(examplesCmd)
}
