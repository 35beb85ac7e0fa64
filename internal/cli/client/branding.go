package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/sqlsherpa/internal/domain"
	"github.com/spf13/cobra"
)

// BrandingCmd creates the branding command.
func BrandingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branding",
		Short: "Show the assistant's welcome message and suggested prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			resp, err := NewAPIClientWithCmd(cmd).Get(ctx, "/api/branding")
			if err != nil {
				return fmt.Errorf("failed to fetch branding: %w", err)
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				fmt.Fprintln(cmd.OutOrStdout(), string(resp.Data))
				return nil
			}

			var branding domain.Branding
			if err := json.Unmarshal(resp.Data, &branding); err != nil {
				return fmt.Errorf("failed to parse branding: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, branding.WelcomeMessage)
			if len(branding.SuggestedPrompts) > 0 {
				fmt.Fprintln(w, "\nTry asking:")
				for _, p := range branding.SuggestedPrompts {
					fmt.Fprintf(w, "  - %s\n", p)
				}
			}
			if branding.PublicDisclaimer != "" {
				fmt.Fprintf(w, "\n%s\n", branding.PublicDisclaimer)
			}
			return nil
		},
	}
}
