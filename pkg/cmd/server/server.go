package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/lapsim/log"
	"github.com/mpapenbr/lapsim/pkg/cmd/util"
	"github.com/mpapenbr/lapsim/pkg/config"
	"github.com/mpapenbr/lapsim/pkg/endpoints/api"
	"github.com/mpapenbr/lapsim/pkg/endpoints/dashboard"
	"github.com/mpapenbr/lapsim/pkg/model"
	natspub "github.com/mpapenbr/lapsim/pkg/publish/nats"
	"github.com/mpapenbr/lapsim/pkg/sim"
	"github.com/mpapenbr/lapsim/pkg/sim/scheduler"
	"github.com/mpapenbr/lapsim/pkg/utils"
	"github.com/mpapenbr/lapsim/pkg/utils/broadcast"
)

// number of finalized laps that may wait for the fan-out
const lapBacklog = 16

var (
	setupTelemetry      = config.SetupTelemetry
	startRuntimeMetrics = func() error {
		return otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
	}
)

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "runs the simulation and serves the track API and dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"addr",
		"a",
		"localhost:5000",
		"HTTP server listen address")
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"restricts log output by logger name (e.g. \"debug:sim info:*\")")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (\"stdout\" prints the data)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"NATS server for lap publishing (disabled if empty)")
	cmd.Flags().StringVar(&config.NatsSubject,
		"nats-subject",
		natspub.DefaultSubject,
		"subject prefix for published laps")
	cmd.Flags().StringVar(&config.NatsBucket,
		"nats-bucket",
		natspub.DefaultBucket,
		"key-value bucket holding the latest lap of each run")
	return cmd
}

//nolint:funlen,cyclop // by design
func startServer(parent context.Context) error {
	if _, err := util.SetupLogger(os.Stderr); err != nil {
		return err
	}
	//nolint:errcheck // by design
	defer log.Default().Sync()
	if err := config.Sim.Validate(); err != nil {
		log.Error("invalid simulation parameters", log.ErrorField(err))
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	if config.EnableTelemetry {
		defer enableTelemetry(ctx)()
	}

	if err := waitForRequiredServices(ctx); err != nil {
		log.Error("required services not ready", log.ErrorField(err))
		return err
	}

	lapChan := make(chan model.Lap, lapBacklog)
	lapBroadcast := broadcast.NewBroadcastServer("laps", "laps", lapChan)
	defer lapBroadcast.Close()

	pipeline := sim.NewPipeline(config.Sim,
		scheduler.WithLapListener(func(l model.Lap) {
			select {
			case lapChan <- l:
			default:
				log.Warn("lap backlog full, lap not distributed", log.Int("lap", l.Number))
			}
		}))
	st := pipeline.Store
	log.Info("Simulation run", log.String("runId", st.RunID().String()))

	g, gctx := errgroup.WithContext(ctx)
	if config.NatsURL != "" {
		nc, kv, err := natspub.Connect(ctx, config.NatsURL, config.NatsBucket)
		if err != nil {
			log.Error("could not connect to NATS", log.ErrorField(err))
			return err
		}
		defer nc.Close()
		pub := natspub.NewLapPublisher(nc, st.RunID(),
			natspub.WithKeyValue(kv),
			natspub.WithSubject(config.NatsSubject))
		laps := lapBroadcast.Subscribe()
		g.Go(func() error {
			pub.Run(gctx, laps)
			return nil
		})
	}

	mux := http.NewServeMux()
	api.NewServer(st, api.WithLapStream(lapBroadcast)).Register(mux)
	mux.Handle("GET /{$}", dashboard.NewHandler(st, pipeline.Center,
		dashboard.WithRefresh(config.Sim.UIRefresh),
		dashboard.WithExtent(1.3*max(config.Sim.Semimajor, config.Sim.Semiminor))))

	server := newHTTPServer(gctx, config.ServerAddr, newHandler(mux), lapBroadcast.Close)
	g.Go(func() error {
		return pipeline.Scheduler.Run(gctx)
	})
	g.Go(func() error {
		log.Info("Starting HTTP server", log.String("addr", config.ServerAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	setupGoRoutinesDump()
	log.Info("Server started")

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", log.ErrorField(err))
		return err
	}
	log.Info("Server terminated")
	return nil
}

// newHTTPServer ties request contexts to ctx. The onShutdown funcs run when
// Shutdown is called and must end long running responses like /api/stream.
//
//nolint:whitespace // editor/linter issue
func newHTTPServer(
	ctx context.Context,
	addr string,
	handler http.Handler,
	onShutdown ...func(),
) *http.Server {
	ret := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	for _, f := range onShutdown {
		ret.RegisterOnShutdown(f)
	}
	return ret
}

// enableTelemetry returns the func to shut the providers down. Runtime metrics
// are only collected if the providers could be set up.
func enableTelemetry(ctx context.Context) func() {
	log.Info("Enabling telemetry")
	telemetry, err := setupTelemetry(ctx)
	if err != nil {
		log.Warn("Could not setup telemetry", log.ErrorField(err))
		return func() {}
	}
	if err := startRuntimeMetrics(); err != nil {
		log.Warn("Could not start runtime metrics", log.ErrorField(err))
	}
	return telemetry.Shutdown
}

func newHandler(mux *http.ServeMux) http.Handler {
	return h2c.NewHandler(newCORS().Handler(mux), &http2.Server{})
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func waitForRequiredServices(ctx context.Context) error {
	addr := utils.ExtractFromNatsURL(config.NatsURL)
	if addr == "" {
		return nil
	}
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	log.Debug("Waiting for connection checks to return")
	if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
		return err
	}
	log.Debug("Required services are available")
	return nil
}

func newCORS() *cors.Cors {
	// The API is read-only and public, every origin may use it.
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Content-Encoding",
		},
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
