package dashboard

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/lapsim/pkg/model"
	"github.com/mpapenbr/lapsim/pkg/store"
)

var center = model.Position{Lat: 42.06639, Lon: -84.24139}

func TestHandler(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := store.New(store.WithInitialPosition(center))
	st.Publish(&store.Snapshot{
		Latest:  model.Position{Lat: 42.0701, Lon: -84.2410},
		Pending: []model.Position{{Lat: 42.0700, Lon: -84.2411}, {Lat: 42.0701, Lon: -84.2410}},
		Laps: []model.Lap{{
			Number:    7,
			Distance:  1543.21,
			Points:    []model.Position{center, {Lat: 42.0700, Lon: -84.2411}, center},
			StartTime: t0,
			EndTime:   t0.Add(20 * time.Second),
		}},
		NumLaps: 7,
	})

	rec := httptest.NewRecorder()
	NewHandler(st, center).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("Refresh"))
	body := rec.Body.String()
	assert.Contains(t, body, "<title>"+PageTitle+"</title>")
	assert.Contains(t, body, "pending run")
	assert.Contains(t, body, "last lap")
	assert.Contains(t, body, "lap 7: 1543.21 m in 20s")
}

func TestHandler_BeforeFirstLap(t *testing.T) {
	rec := httptest.NewRecorder()
	h := NewHandler(store.New(store.WithInitialPosition(center)), center, WithRefresh(2500*time.Millisecond))
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Refresh"))
	assert.Contains(t, rec.Body.String(), "pending samples: 0")
}

func TestRefreshSeconds(t *testing.T) {
	for d, want := range map[time.Duration]string{
		time.Second:             "1",
		200 * time.Millisecond:  "1",
		1500 * time.Millisecond: "2",
		5 * time.Second:         "5",
	} {
		assert.Equal(t, want, refreshSeconds(d), d.String())
	}
}
