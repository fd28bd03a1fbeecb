package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/asnlens/asnlens/internal/convert"
	"github.com/asnlens/asnlens/internal/msgstore"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [protocol] [type] [json]",
	Short: "Encode a JSON wire value and print the hex payload",
	Long: `Encode a JSON wire value and print the hex payload.

The value argument is inline JSON, "@file.json" to read a file, or
"@saved:name" to encode a message from the message bank.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		protocol, typeName, raw := args[0], args[1], args[2]

		app, err := newApp()
		if err != nil {
			return err
		}
		spec, err := app.resolveSpec(protocol, typeName)
		if err != nil {
			return err
		}

		wire, err := resolveValueArg(app, raw)
		if err != nil {
			return err
		}

		native := convert.ToCodecValue(wire, spec.Types()[typeName])
		encoded, err := spec.Encode(typeName, native, true)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(encoded))
		return nil
	},
}

func resolveValueArg(app *app, raw string) (any, error) {
	switch {
	case strings.HasPrefix(raw, "@saved:"):
		store, err := msgstore.Open(app.cfg.MessagesDB)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		m, err := store.Load(strings.TrimPrefix(raw, "@saved:"))
		if err != nil {
			return nil, err
		}
		return m.Data, nil
	case strings.HasPrefix(raw, "@"):
		data, err := os.ReadFile(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return nil, err
		}
		return oj.Parse(data)
	default:
		return oj.ParseString(raw)
	}
}

func init() {
	rootCmd.AddCommand(encodeCmd)
}
