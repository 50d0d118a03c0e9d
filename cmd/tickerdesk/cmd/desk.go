package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/tickerdesk/internal/deskclient"
)

var deskCmd = &cobra.Command{
	Use:   "desk",
	Short: "Send orders to a running desk server",
}

var deskBuyCmd = &cobra.Command{
	Use:   "buy <market>",
	Short: "Open a simulated position at the current price",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newDeskClient().Buy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

var deskSellCmd = &cobra.Command{
	Use:   "sell <market> <id>",
	Short: "Close a position by its id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newDeskClient().SellByID(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

var deskSignalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Print open positions with current P/L",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rows, err := newDeskClient().Signals(cmd.Context())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), rows)
	},
}

func init() {
	for _, c := range []*cobra.Command{deskBuyCmd, deskSellCmd, deskSignalsCmd} {
		addDeskFlags(c)
		deskCmd.AddCommand(c)
	}
	rootCmd.AddCommand(deskCmd)
}

func newDeskClient() *deskclient.Client {
	key := deskAPIKey
	if key == "" {
		key = os.Getenv("TICKERDESK_SERVER_API_KEY")
	}
	return deskclient.New(deskURL, key, deskTimeout)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
