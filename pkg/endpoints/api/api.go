// Package api exposes the published simulation state via HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/lapsim/log"
	"github.com/mpapenbr/lapsim/pkg/model"
	"github.com/mpapenbr/lapsim/version"
)

var ErrInvalidRequest = errors.New("invalid request")

const (
	TypeLocation = "location"
	TypeLap      = "lap"
)

type (
	// TrackReader provides the state published by the simulation
	TrackReader interface {
		LatestPosition() model.Position
		LastCompletedLap() *model.Lap
		Laps() []model.Lap
		RunID() uuid.UUID
	}
	// LapSubscriber delivers finalized laps as they occur
	LapSubscriber interface {
		Subscribe() <-chan model.Lap
		CancelSubscription(<-chan model.Lap)
	}
	Server struct {
		reader    TrackReader
		laps      LapSubscriber
		endpoints []endpointHandler
		l         *log.Logger
		tracer    trace.Tracer
	}
	Option          func(*Server)
	endpointHandler struct {
		pattern string
		handler http.HandlerFunc
	}
)

// WithLapStream enables /api/stream
func WithLapStream(laps LapSubscriber) Option {
	return func(s *Server) {
		s.laps = laps
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.l = l
	}
}

func NewServer(reader TrackReader, opts ...Option) *Server {
	ret := &Server{
		reader: reader,
		l:      log.Default().Named("api"),
		tracer: otel.Tracer("lapsim.api"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.endpoints = []endpointHandler{
		{pattern: "GET /api/track", handler: ret.track},
		{pattern: "GET /api/laps", handler: ret.lapHistory},
		{pattern: "GET /api/stream", handler: ret.stream},
		{pattern: "GET /api/version", handler: ret.version},
		{pattern: "GET /healthz", handler: ret.health},
	}
	return ret
}

// Register adds the API routes to mux
func (s *Server) Register(mux *http.ServeMux) {
	for _, e := range s.endpoints {
		mux.HandleFunc(e.pattern, e.handler)
	}
}

// Handler returns a mux serving only the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) track(w http.ResponseWriter, r *http.Request) {
	reqType := TypeLocation
	if q := r.URL.Query(); q.Has("type") {
		reqType = q.Get("type")
	}
	_, span := s.tracer.Start(r.Context(), "api.track",
		trace.WithAttributes(attribute.String("type", reqType)))
	defer span.End()

	switch reqType {
	case TypeLocation:
		s.writeJSON(w, http.StatusOK, locationResponse{Location: s.reader.LatestPosition()})
	case TypeLap:
		var payload *lapPayload
		if lap := s.reader.LastCompletedLap(); lap != nil {
			payload = newLapPayload(lap)
		}
		s.writeJSON(w, http.StatusOK, lapResponse{Lap: payload})
	default:
		err := fmt.Errorf("%w: type %q", ErrInvalidRequest, reqType)
		span.RecordError(err)
		s.writeError(w, err)
	}
}

func (s *Server) lapHistory(w http.ResponseWriter, r *http.Request) {
	_, span := s.tracer.Start(r.Context(), "api.laps")
	defer span.End()

	laps := s.reader.Laps()
	span.SetAttributes(attribute.Int("laps", len(laps)))
	s.writeJSON(w, http.StatusOK, lapsResponse{
		RunID: s.reader.RunID().String(),
		Laps: lo.Map(laps, func(l model.Lap, _ int) lapSummary {
			return newLapSummary(&l)
		}),
	})
}

// stream sends a server sent event for each finalized lap
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	if s.laps == nil {
		http.Error(w, "lap stream not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := s.laps.Subscribe()
	defer s.laps.CancelSubscription(ch)
	s.l.Debug("stream subscriber added", log.String("remote", r.RemoteAddr))

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			s.l.Debug("stream subscriber gone", log.String("remote", r.RemoteAddr))
			return
		case lap, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(newLapSummary(&lap))
			if err != nil {
				s.l.Error("could not encode lap", log.ErrorField(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: lap\nid: %d\ndata: %s\n\n",
				lap.Number, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) version(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.Commit,
		"build_date": version.Date,
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	if errors.Is(err, ErrInvalidRequest) {
		status, msg = http.StatusBadRequest, "Invalid request type"
	}
	s.l.Debug("request failed", log.Int("status", status), log.ErrorField(err))
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.l.Warn("could not write response", log.ErrorField(err))
	}
}

type (
	locationResponse struct {
		Location model.Position `json:"location"`
	}
	lapResponse struct {
		Lap *lapPayload `json:"lap"`
	}
	lapPayload struct {
		Points    lapPoints `json:"points"`
		StartTime unixTime  `json:"start_time"`
		EndTime   unixTime  `json:"end_time"`
	}
	lapPoints struct {
		Lats []float64 `json:"lats"`
		Lons []float64 `json:"lons"`
	}
	lapsResponse struct {
		RunID string       `json:"run_id"`
		Laps  []lapSummary `json:"laps"`
	}
	lapSummary struct {
		LapNumber   int      `json:"lap_number"`
		LapDistance float64  `json:"lap_distance"`
		Points      int      `json:"points"`
		StartTime   unixTime `json:"start_time"`
		EndTime     unixTime `json:"end_time"`
	}
	errorResponse struct {
		Error string `json:"error"`
	}
	// unixTime is encoded as fractional seconds since the epoch
	unixTime time.Time
)

func newLapPayload(lap *model.Lap) *lapPayload {
	return &lapPayload{
		Points: lapPoints{
			Lats: lo.Map(lap.Points, func(p model.Position, _ int) float64 { return p.Lat }),
			Lons: lo.Map(lap.Points, func(p model.Position, _ int) float64 { return p.Lon }),
		},
		StartTime: unixTime(lap.StartTime),
		EndTime:   unixTime(lap.EndTime),
	}
}

func newLapSummary(lap *model.Lap) lapSummary {
	return lapSummary{
		LapNumber:   lap.Number,
		LapDistance: lap.Distance,
		Points:      len(lap.Points),
		StartTime:   unixTime(lap.StartTime),
		EndTime:     unixTime(lap.EndTime),
	}
}

func (t unixTime) MarshalJSON() ([]byte, error) {
	secs := float64(time.Time(t).UnixNano()) / float64(time.Second)
	return strconv.AppendFloat(nil, secs, 'f', -1, 64), nil
}
