package cmd

import (
	"fmt"
	"os"

	"github.com/asnlens/asnlens/internal/gen"
	"github.com/spf13/cobra"
)

var (
	genOutput  string
	genPackage string
)

var genCmd = &cobra.Command{
	Use:   "gen [protocol] [types...]",
	Short: "Generate Go type declarations for a compiled protocol",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		spec, err := app.resolveSpec(args[0], "")
		if err != nil {
			return err
		}

		code, err := gen.Protocol(spec, args[0], gen.Options{
			Package: genPackage,
			Types:   args[1:],
		})
		if err != nil {
			return err
		}
		if genOutput == "" {
			fmt.Print(string(code))
			return nil
		}
		if err := os.WriteFile(genOutput, code, 0o644); err != nil {
			return err
		}
		app.log.Info().Str("file", genOutput).Msg("wrote generated code")
		return nil
	},
}

func init() {
	genCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Write generated code to this file instead of stdout")
	genCmd.Flags().StringVar(&genPackage, "package", "", "Package name of the generated file")
	rootCmd.AddCommand(genCmd)
}
