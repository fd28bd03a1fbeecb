package cmd

import (
	"fmt"

	"github.com/asnlens/asnlens/internal/convert"
	"github.com/asnlens/asnlens/internal/msgstore"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

var (
	decodeSelect string
	decodeSave   string
)

var decodeCmd = &cobra.Command{
	Use:   "decode [protocol] [type] [hex]",
	Short: "Decode a hex payload and print the wire value as JSON",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		protocol, typeName, hexData := args[0], args[1], args[2]

		app, err := newApp()
		if err != nil {
			return err
		}
		spec, err := app.resolveSpec(protocol, typeName)
		if err != nil {
			return err
		}
		payload, err := convert.ParseHexStrict(hexData)
		if err != nil {
			return err
		}

		decoded, err := spec.Decode(typeName, payload, true)
		if err != nil {
			return err
		}
		wire := convert.ToWireValue(decoded)

		if decodeSave != "" {
			store, err := msgstore.Open(app.cfg.MessagesDB)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(msgstore.Message{
				Name:     decodeSave,
				Protocol: protocol,
				TypeName: typeName,
				Data:     wire,
			}); err != nil {
				return err
			}
			app.log.Info().Str("name", decodeSave).Msg("saved decoded message")
		}

		out := wire
		if decodeSelect != "" {
			expr, err := jp.ParseString(decodeSelect)
			if err != nil {
				return fmt.Errorf("invalid jsonpath %q: %w", decodeSelect, err)
			}
			out = expr.Get(wire)
		}
		fmt.Println(oj.JSON(out, 2))
		return nil
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeSelect, "select", "", "JSONPath applied to the decoded value")
	decodeCmd.Flags().StringVar(&decodeSave, "save", "", "Save the decoded value under this name")
	rootCmd.AddCommand(decodeCmd)
}
