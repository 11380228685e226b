package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gridsentry/pdv-simulator/core"
	"github.com/gridsentry/pdv-simulator/internal/logging"
	"github.com/gridsentry/pdv-simulator/internal/observability"
	"github.com/gridsentry/pdv-simulator/kb"
	"github.com/gridsentry/pdv-simulator/model"
	"github.com/gridsentry/pdv-simulator/planner"
	"github.com/gridsentry/pdv-simulator/timectrl"
)

func main() {
	scenarioPath := flag.String("scenario", "configs/fleet_scenario.json", "path to the JSON fleet scenario")
	duration := flag.Duration("duration", 24*time.Hour, "total simulated duration")
	tick := flag.Duration("tick", 10*time.Minute, "simulated interval per tick")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	collector, err := observability.NewFlightCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	// ==== Fleet + vehicle setup ====

	fleet := kb.NewFleet()

	f, err := os.Open(*scenarioPath)
	if err != nil {
		log.Error(ctx, "failed to open fleet scenario", logging.String("path", *scenarioPath), logging.String("error", err.Error()))
		os.Exit(1)
	}
	scenario, err := core.LoadFleetScenario(fleet, f)
	f.Close()
	if err != nil {
		log.Error(ctx, "failed to load fleet scenario", logging.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info(ctx, "loaded fleet scenario",
		logging.String("path", *scenarioPath),
		logging.Int("nodes", len(scenario.NodeIDs)),
		logging.Int("requesting", scenario.Requesting),
	)

	pdv, err := core.New(scenario.PDVConfig)
	if err != nil {
		log.Error(ctx, "bad vehicle configuration", logging.String("error", err.Error()))
		os.Exit(1)
	}

	fleet.Subscribe(func(ev kb.Event) {
		switch ev.Type {
		case kb.EventNodeRequested:
			log.Debug(ctx, "node requests charge",
				logging.String("node", ev.Node.ID),
				logging.Float64("voltage", ev.Node.Voltage),
			)
		case kb.EventNodeCharged:
			log.Debug(ctx, "node recharged", logging.String("node", ev.Node.ID))
		}
	})

	// ==== Time controller + dispatch loop ====

	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), *tick, mode)

	tracer := otel.Tracer("pdv-simulator")
	var campaign core.FlightStats
	rounds := 0

	tc.AddListener(func(simTime time.Time, elapsed time.Duration) {
		fleet.DischargeAll(elapsed)
		collector.SetNodesRequesting(fleet.RequestingCount())

		nodes := fleet.ListNodes()
		if !pdv.TaskCheck(nodes) {
			return
		}

		runCtx, rlog := logging.WithRunLogger(ctx, log)
		runCtx, span := tracer.Start(runCtx, "charging_round")
		defer span.End()

		requestingBefore := requestingIDs(nodes)

		pdv.Reset()
		path := planner.Plan(pdv.Config().BaseStation, nodes)

		var stats core.FlightStats
		pct, err := pdv.FlightSimulation(&stats, nodes, path)
		if err != nil {
			rlog.Error(runCtx, "flight simulation failed", logging.String("error", err.Error()))
			return
		}

		// Notify subscribers of every node serviced this round.
		for _, id := range requestingBefore {
			if sn := fleet.GetNode(id); sn != nil && !sn.RequestsCharge {
				_ = fleet.MarkCharged(id)
			}
		}

		rounds++
		campaign.ChargedEnergyWh += stats.ChargedEnergyWh
		campaign.FlightTimeHours += stats.FlightTimeHours
		campaign.TargetsPlanned += stats.TargetsPlanned
		campaign.TargetsCharged += stats.TargetsCharged
		campaign.Aborts += stats.Aborts

		collector.ObserveRound(pct, stats.ChargedEnergyWh, stats.FlightTimeHours, stats.TargetsCharged, stats.Aborts > 0)
		collector.SetNodesRequesting(fleet.RequestingCount())

		span.SetAttributes(
			attribute.Int("targets.planned", stats.TargetsPlanned),
			attribute.Int("targets.charged", stats.TargetsCharged),
			attribute.Float64("completion.percent", pct),
		)

		rlog.Info(runCtx, "charging round complete",
			logging.String("sim_time", simTime.Format(time.RFC3339)),
			logging.Int("planned", stats.TargetsPlanned),
			logging.Int("charged", stats.TargetsCharged),
			logging.Float64("completion_pct", pct),
			logging.Float64("charged_wh", stats.ChargedEnergyWh),
			logging.Float64("flight_time_h", stats.FlightTimeHours),
			logging.Float64("remaining_wh", pdv.RemainingEnergyWh()),
		)
	})

	fmt.Printf("Starting simulation: duration=%s, tick=%s, mode=%v\n", *duration, *tick, mode)
	done := tc.Start(*duration)
	<-done

	fmt.Printf("Simulation complete: rounds=%d charged=%d/%d energy=%.1f Wh flight=%.2f h aborts=%d\n",
		rounds,
		campaign.TargetsCharged, campaign.TargetsPlanned,
		campaign.ChargedEnergyWh,
		campaign.FlightTimeHours,
		campaign.Aborts,
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

func requestingIDs(nodes []*model.SensorNode) []string {
	ids := make([]string, 0, len(nodes))
	for _, sn := range nodes {
		if sn != nil && sn.RequestsCharge {
			ids = append(ids, sn.ID)
		}
	}
	return ids
}

func serveMetrics(addr string, collector *observability.FlightCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
