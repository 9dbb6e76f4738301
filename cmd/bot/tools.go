package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"participants-bot/internal/models"
	"participants-bot/internal/parser"
	"participants-bot/internal/refdata"
)

func newParseCommand() *cobra.Command {
	var (
		correction bool
		refPath    string
	)
	cmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Extract participant fields from a message and print them as a template",
		Long: `Runs the extraction engine offline on a free-text or template message.
Reads the message from stdin when no argument is given.

Examples:
  bot parse "Анна Иванова F S церковь Благодать команда worship"
  bot parse --correction "поменяй размер на L"
  cat message.txt | bot parse`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(raw)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("nothing to parse")
			}

			if refPath == "" {
				refPath = os.Getenv("REFERENCE_DATA_PATH")
			}
			ref, err := refdata.Load(refPath)
			if err != nil {
				return err
			}

			fs, src := parser.NewExtractor(ref).Parse(text, correction)
			var p models.Participant
			fs.ApplyTo(&p)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, parser.FormatTemplate(p))
			fmt.Fprintf(out, "\nsource: %s\n", src)
			if fields := fs.Fields(); len(fields) > 0 {
				names := make([]string, len(fields))
				for i, f := range fields {
					names[i] = string(f)
				}
				fmt.Fprintf(out, "fields: %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&correction, "correction", false, "parse as a correction of existing data")
	cmd.Flags().StringVar(&refPath, "ref", "", "reference data file (default $REFERENCE_DATA_PATH)")
	return cmd
}

func newCheckContactCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-contact [value]",
		Short: "Validate a phone number or e-mail and print its normalized form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			normalized, kind, ok := parser.ValidateContact(args[0])
			if !ok {
				return fmt.Errorf("%q is neither a valid phone number nor an e-mail", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", kind, normalized)
			return nil
		},
	}
}
