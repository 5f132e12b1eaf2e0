// Package nats publishes finalized laps to NATS and keeps the latest lap of
// each run in a JetStream key-value bucket.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/lapsim/log"
	"github.com/mpapenbr/lapsim/pkg/model"
)

const (
	DefaultSubject = "lapsim.laps"
	DefaultBucket  = "lapsim"
)

type (
	// Publisher sends raw messages, satisfied by *nats.Conn
	Publisher interface {
		Publish(subj string, data []byte) error
	}
	// KeyValue stores values by key, satisfied by jetstream.KeyValue
	KeyValue interface {
		Put(ctx context.Context, key string, value []byte) (uint64, error)
	}
	LapPublisher struct {
		pub     Publisher
		kv      KeyValue
		subject string
		runID   uuid.UUID
		l       *log.Logger
	}
	Option func(*LapPublisher)

	LapMessage struct {
		RunID       string           `json:"run_id"`
		LapNumber   int              `json:"lap_number"`
		LapDistance float64          `json:"lap_distance"`
		StartTime   time.Time        `json:"start_time"`
		EndTime     time.Time        `json:"end_time"`
		Points      []model.Position `json:"points"`
	}
)

// WithKeyValue stores the latest lap of the run under the run ID
func WithKeyValue(kv KeyValue) Option {
	return func(p *LapPublisher) {
		p.kv = kv
	}
}

// WithSubject sets the subject prefix, laps are published on <prefix>.<runID>
func WithSubject(prefix string) Option {
	return func(p *LapPublisher) {
		p.subject = prefix
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *LapPublisher) {
		p.l = l
	}
}

func NewLapPublisher(pub Publisher, runID uuid.UUID, opts ...Option) *LapPublisher {
	ret := &LapPublisher{
		pub:     pub,
		subject: DefaultSubject,
		runID:   runID,
		l:       log.Default().Named("nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (p *LapPublisher) Subject() string {
	return fmt.Sprintf("%s.%s", p.subject, p.runID)
}

func (p *LapPublisher) PublishLap(ctx context.Context, lap *model.Lap) error {
	data, err := json.Marshal(LapMessage{
		RunID:       p.runID.String(),
		LapNumber:   lap.Number,
		LapDistance: lap.Distance,
		StartTime:   lap.StartTime,
		EndTime:     lap.EndTime,
		Points:      lap.Points,
	})
	if err != nil {
		return err
	}
	if err := p.pub.Publish(p.Subject(), data); err != nil {
		return fmt.Errorf("publish lap %d: %w", lap.Number, err)
	}
	if p.kv != nil {
		if _, err := p.kv.Put(ctx, p.runID.String(), data); err != nil {
			return fmt.Errorf("store lap %d: %w", lap.Number, err)
		}
	}
	p.l.Debug("lap published",
		log.Int("lap", lap.Number),
		log.String("subject", p.Subject()))
	return nil
}

// Run publishes every lap received on laps until the channel is closed or
// ctx is done. Failures are logged, the next lap is tried anyway.
func (p *LapPublisher) Run(ctx context.Context, laps <-chan model.Lap) {
	for {
		select {
		case <-ctx.Done():
			return
		case lap, ok := <-laps:
			if !ok {
				return
			}
			if err := p.PublishLap(ctx, &lap); err != nil {
				p.l.Warn("could not publish lap", log.ErrorField(err))
			}
		}
	}
}

// Connect opens a connection to url and creates (or updates) the key-value
// bucket used for the latest laps.
//
//nolint:whitespace // editor/linter issue
func Connect(
	ctx context.Context, url, bucket string,
) (*nats.Conn, jetstream.KeyValue, error) {
	nc, err := nats.Connect(url, nats.Name("lapsim"))
	if err != nil {
		return nil, nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "latest lap per simulation run",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return nc, kv, nil
}
