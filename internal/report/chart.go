package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/pplcc/plotext"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/alanyoungcy/tickerdesk/internal/domain"
)

// ErrNoTrades is returned when there is nothing to chart.
var ErrNoTrades = errors.New("report: no trades to chart")

const timeFormat = "2006-01-02\n15:04"

// WritePnLChart renders a PNG of w x h points with two panels sharing the
// time axis: cumulative P/L on top and per-trade P/L below. trades must be
// ordered by close time.
func WritePnLChart(out io.Writer, trades []domain.RealizedTrade, w, h int) error {
	if len(trades) == 0 {
		return ErrNoTrades
	}

	cumulative := Cumulative(trades)
	curve := make(plotter.XYs, len(trades))
	points := make(plotter.XYs, len(trades))
	for i, t := range trades {
		x := float64(t.ClosedAt.Unix())
		curve[i] = plotter.XY{X: x, Y: cumulative[i]}
		points[i] = plotter.XY{X: x, Y: t.PLValue}
	}

	top := plot.New()
	top.Title.Text = "Cumulative P/L"
	top.Y.Label.Text = "P/L"
	top.X.Tick.Marker = plot.TimeTicks{Format: timeFormat}
	line, err := plotter.NewLine(curve)
	if err != nil {
		return fmt.Errorf("report: cumulative line: %w", err)
	}
	top.Add(plotter.NewGrid(), line)

	bottom := plot.New()
	bottom.Title.Text = "Trade P/L"
	bottom.Y.Label.Text = "P/L"
	bottom.X.Tick.Marker = plot.TimeTicks{Format: timeFormat}
	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return fmt.Errorf("report: trade scatter: %w", err)
	}
	bottom.Add(plotter.NewGrid(), scatter)

	plotext.UniteAxisRanges([]*plot.Axis{&top.X, &bottom.X})

	tbl := plotext.Table{
		RowHeights: []float64{2, 1},
		ColWidths:  []float64{1},
	}
	img := vgimg.New(vg.Points(float64(w)), vg.Points(float64(h)))
	canvases := tbl.Align([][]*plot.Plot{{top}, {bottom}}, draw.New(img))
	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(out); err != nil {
		return fmt.Errorf("report: write png: %w", err)
	}
	return nil
}
