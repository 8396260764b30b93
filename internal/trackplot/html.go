package trackplot

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/spatial/r3"
)

// WriteHTML renders the tracks as an interactive 3D line chart, one series
// per track.
func WriteHTML(tracks [][]r3.Vec, w io.Writer) error {
	points := 0
	for _, tr := range tracks {
		points += len(tr)
	}

	line := charts.NewLine3D()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Fibre tracks", Width: "1000px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: "Exported tracks", Subtitle: fmt.Sprintf("tracks=%d points=%d", len(tracks), points)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "X"}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Y"}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Z"}),
	)

	for i, tr := range tracks {
		data := make([]opts.Chart3DData, len(tr))
		for j, v := range tr {
			data[j] = opts.Chart3DData{Value: []interface{}{v.X, v.Y, v.Z}}
		}
		line.AddSeries(fmt.Sprintf("track %d", i), data)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render track chart: %w", err)
	}
	return nil
}
