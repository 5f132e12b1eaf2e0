package simulate

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/lapsim/log"
	"github.com/mpapenbr/lapsim/pkg/cmd/util"
	"github.com/mpapenbr/lapsim/pkg/config"
	"github.com/mpapenbr/lapsim/pkg/model"
	"github.com/mpapenbr/lapsim/pkg/sim"
	"github.com/mpapenbr/lapsim/pkg/sim/scheduler"
)

// virtual start time of headless runs
var simStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func NewSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "runs the simulation on a virtual clock and prints the completed laps",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(config.SimDuration)
			if err != nil {
				return fmt.Errorf("%w: duration: %w", config.ErrInvalidConfig, err)
			}
			if _, err := util.SetupLogger(os.Stderr); err != nil {
				return err
			}
			//nolint:errcheck // by design
			defer log.Default().Sync()
			return runSimulation(cmd.Context(), cmd.OutOrStdout(), config.Sim, d)
		},
	}
	cmd.Flags().StringVar(&config.SimDuration,
		"duration",
		"60s",
		"simulated time span")
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"warn",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"text",
		"controls the log output format")
	return cmd
}

// runSimulation processes all ticks within d without waiting for the wall clock.
//
//nolint:whitespace // editor/linter issue
func runSimulation(
	ctx context.Context, out io.Writer, cfg config.Simulation, d time.Duration,
) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LAP\tDISTANCE (m)\tSAMPLES\tDURATION")
	p := sim.NewPipeline(cfg,
		scheduler.WithLapListener(func(l model.Lap) {
			fmt.Fprintf(tw, "%d\t%.2f\t%d\t%s\n",
				l.Number, l.Distance, len(l.Points), l.Duration())
		}))

	ticks := int64(d / cfg.Tick)
	for i := int64(0); i <= ticks; i++ {
		if ctx.Err() != nil {
			break
		}
		p.Scheduler.Step(ctx, simStart.Add(time.Duration(i)*cfg.Tick))
	}
	snap := p.Store.Snapshot()
	fmt.Fprintf(tw, "\nlaps: %d, ticks: %d, pending samples: %d (%.2f m)\n",
		snap.NumLaps, snap.Tick, len(snap.Pending), snap.RunDistance)
	log.Debug("simulation done", log.Uint64("ticks", snap.Tick))
	return tw.Flush()
}
