package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/alanyoungcy/tickerdesk/internal/tui"
)

var (
	deskURL     string
	deskAPIKey  string
	watchEvery  time.Duration
	deskTimeout time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open a terminal dashboard for a running desk",
	Long: `Watch polls a running tickerdesk server and shows open positions with live
P/L and a realized summary. Select a row and press s to sell it.

Example:
  tickerdesk watch --url http://localhost:5000 --interval 5s`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p := tea.NewProgram(tui.New(newDeskClient(), watchEvery),
			tea.WithAltScreen(),
			tea.WithInput(cmd.InOrStdin()),
			tea.WithOutput(cmd.OutOrStdout()),
		)
		_, err := p.Run()
		return err
	},
}

func init() {
	addDeskFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchEvery, "interval", 5*time.Second, "poll interval")
	rootCmd.AddCommand(watchCmd)
}

// addDeskFlags registers the flags shared by commands that talk to a
// running server.
func addDeskFlags(c *cobra.Command) {
	c.Flags().StringVar(&deskURL, "url", "http://localhost:5000", "desk server base URL")
	c.Flags().StringVar(&deskAPIKey, "api-key", "", "desk API key (or TICKERDESK_SERVER_API_KEY)")
	c.Flags().DurationVar(&deskTimeout, "timeout", 10*time.Second, "request timeout")
}
