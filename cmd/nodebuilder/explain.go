package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodebuilder-go/nodebuilder/internal/errors"
)

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [code]",
		Short: "Describe an error code",
		Long: `Print the meaning of an error code such as E102, or list every code
when none is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, code := range errors.GetAllCodes() {
					t, _ := errors.GetTemplate(code)
					fmt.Fprintf(w, "  %s  %-10s %s\n", code, t.Category, t.Message)
				}
				return nil
			}

			code := strings.ToUpper(strings.TrimSpace(args[0]))
			t, ok := errors.GetTemplate(code)
			if !ok {
				return errors.New("E400").
					WithDetail(fmt.Sprintf("Unknown error code %q.", args[0])).
					WithSuggestion("Run `nodebuilder explain` to list all codes")
			}

			fmt.Fprintf(w, "%s: %s\n", code, t.Message)
			fmt.Fprintf(w, "  Category: %s\n", t.Category)
			if t.Detail != "" {
				fmt.Fprintf(w, "\n  %s\n", strings.ReplaceAll(strings.TrimSpace(t.Detail), "\n", "\n  "))
			}
			if t.Suggestion != "" {
				fmt.Fprintf(w, "\n  Hint: %s\n", t.Suggestion)
			}
			return nil
		},
	}
}
