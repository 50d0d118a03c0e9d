// Package tui is a terminal dashboard for a running desk: open positions
// with live P/L, a realized summary, and selling by row.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alanyoungcy/tickerdesk/internal/deskclient"
	"github.com/alanyoungcy/tickerdesk/internal/domain"
	"github.com/alanyoungcy/tickerdesk/internal/report"
)

// Desk is the subset of the desk API the dashboard uses.
type Desk interface {
	Signals(ctx context.Context) ([]domain.SignalRow, error)
	Profits(ctx context.Context) ([]domain.RealizedTrade, error)
	SellByID(ctx context.Context, market, id string) (deskclient.SellResult, error)
}

// requestTimeout bounds each desk call made from a command.
const requestTimeout = 10 * time.Second

type (
	tickMsg     time.Time
	snapshotMsg struct {
		signals []domain.SignalRow
		profits []domain.RealizedTrade
		err     error
	}
	soldMsg struct {
		res deskclient.SellResult
		err error
	}
)

// Model is the bubbletea model of the dashboard.
type Model struct {
	desk     Desk
	interval time.Duration
	keys     keyMap
	table    table.Model

	signals []domain.SignalRow
	summary report.Summary
	updated time.Time
	status  string
	err     error
}

// New creates the dashboard model. It polls desk every interval.
func New(desk Desk, interval time.Duration) Model {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 3},
			{Title: "Market", Width: 12},
			{Title: "Buy", Width: 14},
			{Title: "Current", Width: 14},
			{Title: "P/L", Width: 14},
			{Title: "P/L %", Width: 9},
			{Title: "Opened", Width: 19},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	return Model{desk: desk, interval: interval, keys: defaultKeyMap(), table: t}
}

// Init fetches the first snapshot and starts polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		signals, err := m.desk.Signals(ctx)
		if err != nil {
			return snapshotMsg{err: err}
		}
		profits, err := m.desk.Profits(ctx)
		return snapshotMsg{signals: signals, profits: profits, err: err}
	}
}

func (m Model) sell(row domain.SignalRow) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := m.desk.SellByID(ctx, row.Market, row.ID)
		return soldMsg{res: res, err: err}
	}
}

// Update handles keys, poll ticks and desk responses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch()
		case key.Matches(msg, m.keys.Sell):
			i := m.table.Cursor()
			if i < 0 || i >= len(m.signals) {
				return m, nil
			}
			row := m.signals[i]
			m.status = fmt.Sprintf("selling %s %s...", row.Market, shortID(row.ID))
			return m, m.sell(row)
		}

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.signals = msg.signals
			m.summary = report.Summarize(msg.profits)
			m.updated = time.Now()
			m.table.SetRows(signalRows(msg.signals))
		}
		return m, nil

	case soldMsg:
		if msg.err != nil {
			m.status = "sell failed: " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("sold %s at %g, P/L %s", msg.res.Market, msg.res.SellPrice,
			plStyle(msg.res.Profit).Render(fmt.Sprintf("%.8g", msg.res.Profit)))
		return m, m.fetch()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the dashboard.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("tickerdesk"))
	b.WriteString("\n")
	b.WriteString(tableStyle.Render(m.table.View()))
	b.WriteString("\n")

	s := m.summary
	fmt.Fprintf(&b, "open %d  realized %d  total P/L %s  win rate %.2f%%\n",
		len(m.signals), s.Count, plStyle(s.TotalPL).Render(fmt.Sprintf("%.8g", s.TotalPL)), s.WinRate)

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("desk unreachable: " + m.err.Error()))
	case m.status != "":
		b.WriteString(m.status)
	case !m.updated.IsZero():
		b.WriteString(mutedStyle.Render("updated " + m.updated.Format(time.TimeOnly)))
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(m.keys.help()))
	return b.String()
}

func signalRows(signals []domain.SignalRow) []table.Row {
	rows := make([]table.Row, len(signals))
	for i, s := range signals {
		opened := ""
		if s.Timestamp > 0 {
			opened = time.Unix(s.Timestamp, 0).Format(time.DateTime)
		}
		rows[i] = table.Row{
			fmt.Sprint(s.Index),
			s.Market,
			fmt.Sprintf("%g", s.BuyPrice),
			fmt.Sprintf("%g", s.CurrentPrice),
			fmt.Sprintf("%.8g", s.PLValue),
			fmt.Sprintf("%.2f", s.PLPercent),
			opened,
		}
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
