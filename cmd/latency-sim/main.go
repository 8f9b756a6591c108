package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/latency-sim/core"
	"github.com/signalsfoundry/latency-sim/internal/httpapi"
	"github.com/signalsfoundry/latency-sim/internal/logging"
	"github.com/signalsfoundry/latency-sim/internal/observability"
	"github.com/signalsfoundry/latency-sim/kb"
	"github.com/signalsfoundry/latency-sim/model"
	"github.com/signalsfoundry/latency-sim/timectrl"
)

func main() {
	log := logging.NewFromEnv()

	root := &cobra.Command{
		Use:           "latency-sim",
		Short:         "Network latency simulation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDelaysCmd(log))
	root.AddCommand(newRunCmd(log))
	root.AddCommand(newServeCmd(log))

	if err := root.Execute(); err != nil {
		log.Error(context.Background(), "command failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadScenarioFile(path string, log logging.Logger) (*model.Path, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()
	return core.LoadScenario(f, log)
}

func newDelaysCmd(log logging.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "delays <scenario.json>",
		Short: "Print the delay breakdown for a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := loadScenarioFile(args[0], log)
			if err != nil {
				return err
			}

			delays := core.NewDelayModel(core.DefaultConfig())
			total, err := delays.TotalPathDelay(path)
			if err != nil {
				return err
			}
			rtt, err := delays.RoundTripTime(path)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "HOP\tLINK\tTRANSMIT\tPROPAGATE\tPROCESS\tQUEUE\tTOTAL")
			for i, b := range total.PerHop {
				fmt.Fprintf(w, "%d\t%s -> %s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
					i, path.Nodes[i].Name, path.Nodes[i+1].Name,
					b.TransmissionMs, b.PropagationMs, b.ProcessingMs, b.QueuingMs, b.TotalMs)
			}
			fmt.Fprintf(w, "\tone-way total\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
				total.TransmissionMs, total.PropagationMs, total.ProcessingMs, total.QueuingMs, total.TotalMs)
			w.Flush()

			fmt.Fprintf(cmd.OutOrStdout(), "\ndominant component: %s (%.1f%%)\n", total.Dominant, total.DominantPercent)
			fmt.Fprintf(cmd.OutOrStdout(), "round-trip time: %.4f ms\n", rtt)

			// Data in flight across the slowest link at this RTT.
			bottleneck := path.Hops[0].BandwidthBps
			for _, h := range path.Hops[1:] {
				if h.BandwidthBps > 0 && h.BandwidthBps < bottleneck {
					bottleneck = h.BandwidthBps
				}
			}
			bdp := delays.BandwidthDelayProduct(bottleneck, rtt)
			fmt.Fprintf(cmd.OutOrStdout(), "bandwidth-delay product (bottleneck %.0f bps): %.0f bits (%.0f bytes)\n",
				bottleneck, bdp.Bits, bdp.Bytes)
			return nil
		},
	}
}

func newRunCmd(log logging.Logger) *cobra.Command {
	var (
		duration    time.Duration
		tick        time.Duration
		accelerated bool
		speed       float64
		mode        string
		intervalMs  float64
		burstSize   int
		windowMs    float64
	)

	cmd := &cobra.Command{
		Use:   "run <scenario.json>",
		Short: "Drive a simulation from the wall clock and log its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
			if err != nil {
				return err
			}
			defer observability.ShutdownWithTimeout(ctx, shutdown, log)

			path, err := loadScenarioFile(args[0], log)
			if err != nil {
				return err
			}

			delays := core.NewDelayModel(core.DefaultConfig())
			tracker, err := core.NewTracker(delays, path)
			if err != nil {
				return err
			}
			tracker.SetPlaybackSpeed(speed)
			tracker.SetWindow(windowMs)
			tracker.SetSendMode(model.SendMode(mode), intervalMs, burstSize)

			collector, err := observability.NewSimCollector(nil)
			if err != nil {
				return err
			}
			collector.SetScenarioCounts(len(path.Nodes), len(path.Hops))
			if total, err := delays.TotalPathDelay(path); err == nil {
				collector.SetScenarioDelay(total)
			}

			ctrlMode := timectrl.RealTime
			if accelerated {
				ctrlMode = timectrl.Accelerated
			}
			controller := timectrl.NewTimeController(tracker, tick, ctrlMode)
			controller.AddListener(collector.ObserveTick)
			controller.AddListener(func(result core.TickResult) {
				for _, ev := range result.Events {
					switch ev.Kind {
					case core.EventPacketSent:
						log.Info(ctx, "packet sent",
							logging.Int("packet", ev.PacketID),
							logging.Float64("sim_time_ms", ev.TimeMs))
					case core.EventPacketDelivered:
						log.Info(ctx, "packet delivered",
							logging.Int("packet", ev.PacketID),
							logging.Float64("sim_time_ms", ev.TimeMs))
					case core.EventPacketLimit:
						log.Warn(ctx, "packet limit exceeded, spawn skipped",
							logging.Float64("sim_time_ms", ev.TimeMs))
					case core.EventCompleted:
						log.Info(ctx, "simulation complete",
							logging.Float64("sim_time_ms", ev.TimeMs))
					}
				}
			})

			tracer := otel.Tracer("latency-sim")
			ctx, span := tracer.Start(ctx, "simulation.run")
			span.SetAttributes(
				attribute.String("scenario", path.Name),
				attribute.Int("hops", len(path.Hops)),
				attribute.String("send_mode", mode),
			)
			defer span.End()

			log.Info(ctx, "simulation starting",
				logging.String("scenario", path.Name),
				logging.Any("duration", duration),
				logging.Any("tick", tick),
			)
			<-controller.Start(duration)

			final := tracker.Snapshot()
			log.Info(ctx, "simulation finished",
				logging.Float64("sim_time_ms", final.TimeMs),
				logging.Int("tracked_packets", len(final.Packets)),
			)
			return nil
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "total wall-clock run duration")
	cmd.Flags().DurationVar(&tick, "tick", 16*time.Millisecond, "tick interval")
	cmd.Flags().BoolVar(&accelerated, "accelerated", false, "step without waiting on the wall clock")
	cmd.Flags().Float64Var(&speed, "speed", 1, "playback speed multiplier")
	cmd.Flags().StringVar(&mode, "mode", string(model.SendSingle), "send mode: single, interval, burst, manual")
	cmd.Flags().Float64Var(&intervalMs, "interval", 100, "send interval in simulated ms (interval/burst modes)")
	cmd.Flags().IntVar(&burstSize, "burst", 3, "packets per burst (burst mode)")
	cmd.Flags().Float64Var(&windowMs, "window", 0, "simulation window in ms bounding scheduled sends; 0 = unbounded")
	return cmd
}

func newServeCmd(log logging.Logger) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [scenario.json ...]",
		Short: "Serve the snapshot and delay-query API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
			if err != nil {
				return err
			}
			defer observability.ShutdownWithTimeout(ctx, shutdown, log)

			collector, err := observability.NewSimCollector(nil)
			if err != nil {
				return err
			}

			store := kb.NewScenarioStore()
			for _, arg := range args {
				path, err := loadScenarioFile(arg, log)
				if err != nil {
					return err
				}
				// Duplicate file basenames are a caller mistake, not an update.
				name := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
				if err := store.Add(name, path); err != nil {
					return err
				}
				log.Info(ctx, "scenario loaded",
					logging.String("scenario", name),
					logging.Int("hops", len(path.Hops)),
				)
			}

			delays := core.NewDelayModel(core.DefaultConfig())
			server := httpapi.NewServer(store, delays, collector, log)

			log.Info(ctx, "api listening", logging.String("addr", addr))
			return http.ListenAndServe(addr, server.Router())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
