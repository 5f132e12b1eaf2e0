// Package dashboard renders a self refreshing map of the car position,
// the pending run and the last completed lap.
package dashboard

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/samber/lo"

	"github.com/mpapenbr/lapsim/log"
	"github.com/mpapenbr/lapsim/pkg/model"
)

const PageTitle = "Live Car Track - ECVM"

type (
	Reader interface {
		LatestPosition() model.Position
		PendingRun() []model.Position
		LastCompletedLap() *model.Lap
	}
	Handler struct {
		reader  Reader
		center  model.Position
		extent  float64
		refresh time.Duration
		l       *log.Logger
	}
	Option func(*Handler)
)

// WithExtent sets the half width of the visible area in degrees
func WithExtent(deg float64) Option {
	return func(h *Handler) {
		h.extent = deg
	}
}

func WithRefresh(d time.Duration) Option {
	return func(h *Handler) {
		h.refresh = d
	}
}

func WithLogger(l *log.Logger) Option {
	return func(h *Handler) {
		h.l = l
	}
}

func NewHandler(reader Reader, center model.Position, opts ...Option) *Handler {
	ret := &Handler{
		reader:  reader,
		center:  center,
		extent:  0.008,
		refresh: time.Second,
		l:       log.Default().Named("dashboard"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.chart().Render(&buf); err != nil {
		h.l.Error("could not render dashboard", log.ErrorField(err))
		http.Error(w, "could not render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Refresh", refreshSeconds(h.refresh))
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.l.Debug("could not write dashboard", log.ErrorField(err))
	}
}

func (h *Handler) chart() *charts.Scatter {
	pending := h.reader.PendingRun()
	latest := h.reader.LatestPosition()
	subtitle := fmt.Sprintf("pending samples: %d", len(pending))
	var lastLap []opts.ScatterData
	if lap := h.reader.LastCompletedLap(); lap != nil {
		lastLap = toScatter(lap.Points)
		subtitle = fmt.Sprintf("lap %d: %.2f m in %s, %s",
			lap.Number, lap.Distance, lap.Duration().Round(time.Millisecond), subtitle)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: PageTitle,
			Width:     "900px",
			Height:    "700px",
		}),
		charts.WithTitleOpts(opts.Title{Title: PageTitle, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "lon", Type: "value",
			Min: h.center.Lon - h.extent, Max: h.center.Lon + h.extent,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "lat", Type: "value",
			Min: h.center.Lat - h.extent, Max: h.center.Lat + h.extent,
		}),
	)
	scatter.AddSeries("last lap", lastLap,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("pending run", toScatter(pending),
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	scatter.AddSeries("car", toScatter([]model.Position{latest}),
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	return scatter
}

func toScatter(points []model.Position) []opts.ScatterData {
	return lo.Map(points, func(p model.Position, _ int) opts.ScatterData {
		return opts.ScatterData{Value: []interface{}{p.Lon, p.Lat}}
	})
}

// the Refresh header only supports whole seconds
func refreshSeconds(d time.Duration) string {
	return strconv.Itoa(max(1, int(math.Ceil(d.Seconds()))))
}
