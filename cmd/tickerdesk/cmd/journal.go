package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/tickerdesk/internal/config"
	"github.com/alanyoungcy/tickerdesk/internal/domain"
	"github.com/alanyoungcy/tickerdesk/internal/report"
	"github.com/alanyoungcy/tickerdesk/internal/store/postgres"
	"github.com/alanyoungcy/tickerdesk/internal/store/sqlite"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the realized trade journal",
	Long: `Query realized trades persisted by the configured journal driver.

Subcommands:
  list  - List trades, optionally bounded by age and count
  today - List trades closed today
  plot  - Chart cumulative and per-trade P/L as a PNG

Examples:
  tickerdesk journal list --since 24h --limit 20
  tickerdesk journal today --config config.toml
  tickerdesk journal plot --since 168h -o pnl.png`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled trades",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalPlotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Chart realized P/L as a PNG",
	Args:  cobra.NoArgs,
	RunE:  runJournalPlot,
}

var (
	journalSince time.Duration
	journalLimit int
	plotOutput   string
	plotWidth    int
	plotHeight   int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalTodayCmd)

	journalListCmd.Flags().DurationVar(&journalSince, "since", 0, "only trades closed within this window (e.g. 24h)")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 0, "maximum number of trades (0 for all)")

	journalCmd.AddCommand(journalPlotCmd)
	journalPlotCmd.Flags().DurationVar(&journalSince, "since", 0, "only trades closed within this window (e.g. 168h)")
	journalPlotCmd.Flags().StringVarP(&plotOutput, "output", "o", "pnl.png", "PNG output path")
	journalPlotCmd.Flags().IntVar(&plotWidth, "width", 900, "image width in points")
	journalPlotCmd.Flags().IntVar(&plotHeight, "height", 600, "image height in points")
}

func runJournalList(cmd *cobra.Command, args []string) error {
	opts := domain.ListOpts{Limit: journalLimit}
	if journalSince > 0 {
		since := time.Now().Add(-journalSince)
		opts.Since = &since
	}
	return listJournal(cmd, opts)
}

func runJournalPlot(cmd *cobra.Command, args []string) error {
	var opts domain.ListOpts
	if journalSince > 0 {
		since := time.Now().Add(-journalSince)
		opts.Since = &since
	}
	trades, err := queryJournal(cmd, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(plotOutput)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	if err := report.WritePnLChart(f, trades, plotWidth, plotHeight); err != nil {
		f.Close()
		_ = os.Remove(plotOutput)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close plot file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d trades)\n", plotOutput, len(trades))
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)
	return listJournal(cmd, domain.ListOpts{Since: &start, Until: &end})
}

func listJournal(cmd *cobra.Command, opts domain.ListOpts) error {
	trades, err := queryJournal(cmd, opts)
	if err != nil {
		return err
	}
	return formatTrades(cmd.OutOrStdout(), trades)
}

func queryJournal(cmd *cobra.Command, opts domain.ListOpts) ([]domain.RealizedTrade, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	j, closeFn, err := openJournal(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	trades, err := j.ListTrades(cmd.Context(), opts)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	return trades, nil
}

// openJournal opens the configured journal read side.
func openJournal(ctx context.Context, cfg *config.Config) (domain.TradeJournal, func(), error) {
	switch strings.ToLower(cfg.Journal.Driver) {
	case config.JournalSQLite:
		j, err := sqlite.Open(cfg.Journal.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		return j, func() { _ = j.Close() }, nil
	case config.JournalPostgres:
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: 1,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		return postgres.NewJournalStore(pg.Pool()), pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("journal driver is %q; set journal.driver to sqlite or postgres", cfg.Journal.Driver)
	}
}

func formatTrades(w io.Writer, trades []domain.RealizedTrade) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLOSED\tMARKET\tBUY\tSELL\tP/L\tP/L %\tID")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%.8g\t%.4f\t%s\n",
			t.ClosedAt.Local().Format(time.DateTime), t.Market,
			t.BuyPrice, t.SellPrice, t.PLValue, t.PLPercent, t.ID)
	}
	sum := report.Summarize(trades)
	fmt.Fprintf(tw, "\t%d trades\t\t\t%.8g\t\t\n", sum.Count, sum.TotalPL)
	if err := tw.Flush(); err != nil {
		return err
	}
	if sum.Count > 0 {
		fmt.Fprintf(w, "wins %d, losses %d, win rate %.2f%%, best %.8g, worst %.8g\n",
			sum.Wins, sum.Losses, sum.WinRate, sum.BestPL, sum.WorstPL)
	}
	return nil
}
