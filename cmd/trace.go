package cmd

import (
	"fmt"

	"github.com/asnlens/asnlens/internal/trace"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace [protocol] [type] [hex]",
	Short: "Decode a hex payload and print the bit-accurate parse tree",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		tracer := trace.New(app.reg)
		result, err := tracer.Trace(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Println(oj.JSON(result, 2))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
}
