package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/backlogsync/backlogsync/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Show the remaining Backlog API quota",
	Long: `Show the remaining API quota per category (read, update, search, icon) as
reported by Backlog. The check itself consumes one read call.`,
	Args: cobra.NoArgs,
	RunE: runRateLimit,
}

func init() {
	rootCmd.AddCommand(rateLimitCmd)
}

func runRateLimit(cmd *cobra.Command, _ []string) error {
	sess, err := connect(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	rl, err := sess.client.GetRateLimit(cmd.Context())
	if err != nil {
		return apiError(cmd.Context(), err)
	}

	now := time.Now()
	if !structuredOutput(cmd) {
		printf(cmd.OutOrStdout(), "%s\n", output.RateLimitBox(*rl, now))
		return nil
	}
	return writeOutput(cmd, rl, output.RateLimitTable(*rl, now))
}
