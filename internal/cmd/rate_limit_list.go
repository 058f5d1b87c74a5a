package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/evalgate/evalgate/internal/output"
	"github.com/evalgate/evalgate/internal/server/handlers"
)

var (
	rateLimitListOutput string
	rateLimitListServer string
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List limiter counters from a running gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput)
		if err != nil {
			return err
		}

		base := strings.TrimRight(strings.TrimSpace(rateLimitListServer), "/")
		if base == "" {
			return fmt.Errorf("--server must not be empty")
		}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, base+"/v1/ratelimits", nil)
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("query gateway at %s: %w", base, err)
		}
		defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}

		var payload handlers.RateLimitsResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}

		if len(payload.Providers) == 0 {
			if format == output.FormatJSON {
				fmt.Println("[]")
				return nil
			}
			fmt.Print(ascii.DrawBox("Rate Limits\n\n(no providers tracked yet)", 0))
			return nil
		}

		rows := make([]output.RateLimitRow, 0, len(payload.Providers))
		for _, entry := range payload.Providers {
			rows = append(rows, output.RateLimitRow{
				Provider:         entry.Provider,
				TotalCalls:       entry.TotalCalls,
				SuccessCalls:     entry.SuccessCalls,
				RateLimitedCalls: entry.RateLimitedCalls,
				TotalWaitMS:      entry.TotalWaitMS,
			})
		}

		rendered, err := output.RateLimits(format, rows)
		if err != nil {
			return err
		}

		fmt.Println(rendered)
		return nil
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", string(output.FormatTable), "Output format: table|json|markdown")
	rateLimitListCmd.Flags().StringVar(&rateLimitListServer, "server", "http://localhost:8080", "Base URL of a running gateway")
}
