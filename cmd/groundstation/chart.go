package main

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"
)

// renderFlightChart plots altitude, vertical velocity, and apogee
// prediction against time for one flight and writes the result as a
// standalone HTML page, grounded on the retrieved pack's own
// go-echarts usage (banshee-data-velocity.report/internal/lidar/monitor/echarts_handlers.go).
func renderFlightChart(store *Store, flightID uuid.UUID, outPath string) error {
	frames, err := store.FramesForFlight(flightID)
	if err != nil {
		return err
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Flight " + flightID.String(),
			Subtitle: "altitude, vertical velocity, predicted apogee",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (ms)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "meters / (m/s)"}),
	)

	xAxis := make([]string, len(frames))
	altitude := make([]opts.LineData, len(frames))
	velocity := make([]opts.LineData, len(frames))
	apogee := make([]opts.LineData, len(frames))

	for i, f := range frames {
		xAxis[i] = fmt.Sprintf("%.3fs", float64(f.TimestampMs)/1000)
		altitude[i] = opts.LineData{Value: f.Altitude}
		velocity[i] = opts.LineData{Value: f.VerticalVelocity}
		apogee[i] = opts.LineData{Value: f.ApogeePrediction}
	}

	line.SetXAxis(xAxis).
		AddSeries("altitude", altitude).
		AddSeries("vertical velocity", velocity).
		AddSeries("apogee prediction", apogee).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))

	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return line.Render(out)
}
