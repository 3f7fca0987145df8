package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/sopdesk/internal/envelope"
)

func GetSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [envelope|blueprint]",
		Short:     "Print the JSON Schema of the reply envelope or the blueprint",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"envelope", "blueprint"},
		RunE:      runSchema,
	}
}

func runSchema(cmd *cobra.Command, args []string) error {
	which := "envelope"
	if len(args) == 1 {
		which = args[0]
	}

	var schema interface{}
	switch which {
	case "envelope":
		schema = envelope.EnvelopeSchema()
	case "blueprint":
		schema = envelope.BlueprintSchema()
	default:
		return fmt.Errorf("unknown schema %q (want envelope or blueprint)", which)
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
