package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dunenet.ai/internal/logger"
	"dunenet.ai/internal/perception"
	"dunenet.ai/internal/persistence/indexdb"
	persistlog "dunenet.ai/internal/persistence/log"
	"dunenet.ai/internal/sim/nav/grid"
	"dunenet.ai/internal/sim/tuning"
	"dunenet.ai/internal/sim/world"
	"dunenet.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		runID      = flag.String("run", "run_1", "mission run id")
		seed       = flag.Int64("seed", 1337, "costmap seed")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite mission index")
		live       = flag.Bool("live", false, "enable the perception loop against the inference server")
		logLevel   = flag.String("log_level", "info", "log level (debug|info|warn|error)")
		logFile    = flag.String("log_file", "", "optional log file path (rotated)")
	)
	flag.Parse()

	if err := logger.Init(*logLevel, *logFile); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			log.Infow("tuning not found, using defaults", "path", tp)
			tune = tuning.Defaults()
		} else {
			log.Fatalw("load tuning", "err", err)
		}
	}

	runDir := filepath.Join(*dataDir, "runs", *runID)
	_ = os.MkdirAll(runDir, 0o755)

	tickInterval := time.Second / time.Duration(tune.TickRateHz)
	debounceTicks := tune.ReplanDebounceMs / int(tickInterval.Milliseconds())
	if debounceTicks < 1 {
		debounceTicks = 1
	}

	w, err := world.New(world.Config{
		ID:                  *runID,
		Seed:                *seed,
		TickRateHz:          tune.TickRateHz,
		WorldSize:           tune.WorldSize,
		Costmap:             tune.Costmap,
		Terrain:             tune.Terrain,
		Planner:             tune.Planner,
		Rover:               tune.Rover,
		ReplanDebounceTicks: debounceTicks,
		TelemetryEvery:      time.Duration(tune.TelemetryEveryMs) * time.Millisecond,
		LiveMode:            *live,
	}, log)
	if err != nil {
		log.Fatalw("world", "err", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Persistence: JSONL is the source of truth, sqlite the query index.
	missionLog := persistlog.NewMissionLogger(runDir)
	eventLog := persistlog.NewEventLogger(runDir)
	defer missionLog.Close()
	defer eventLog.Close()

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(runDir, "index.db"), *runID)
		if err != nil {
			log.Fatalw("open mission index", "err", err)
		}
		defer idx.Close()
		if err := idx.RecordRun(*seed, tune); err != nil {
			log.Warnw("record run", "err", err)
		}
	}
	w.SetMissionLogger(multiMissionLogger{a: missionLog, b: idx})
	w.SetEventSink(multiEventSink{a: eventLog, b: idx})

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			log.Warnw("world stopped", "err", err)
		}
	}()

	if *live {
		startPerception(ctx, w, tune.Perception, log)
	}

	watchTuning(ctx, tp, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, *runID))
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		st, err := w.Status(ctx2)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(st)
	})
	mux.HandleFunc("/admin/v1/goal", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var goal grid.Point
		if err := json.NewDecoder(r.Body).Decode(&goal); err != nil {
			http.Error(rw, "bad goal json", http.StatusBadRequest)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		rw.Header().Set("Content-Type", "application/json")
		if err := w.SetGoal(ctx2, goal); err != nil {
			rw.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
	})
	mux.HandleFunc("/admin/v1/regenerate", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			Seed int64 `json:"seed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(rw, "bad json", http.StatusBadRequest)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		rw.Header().Set("Content-Type", "application/json")
		if err := w.Regenerate(ctx2, req.Seed); err != nil {
			rw.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(w, log).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	log.Infow("listening", "addr", *addr, "run", *runID, "seed", *seed, "live", *live)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalw("ListenAndServe", "err", err)
	}
}

func startPerception(ctx context.Context, w *world.World, cfg tuning.Perception, log *zap.SugaredLogger) {
	pcfg := perception.Config{
		Interval:      time.Duration(cfg.IntervalMs) * time.Millisecond,
		AngularSpread: cfg.AngularSpread,
		DepthMin:      cfg.DepthMin,
		DepthMax:      cfg.DepthMax,
	}
	client := perception.NewClient(cfg.BaseURL, time.Duration(cfg.TimeoutMs)*time.Millisecond)

	hctx, hcancel := context.WithTimeout(ctx, 5*time.Second)
	defer hcancel()
	if h, err := client.HealthCheck(hctx); err != nil {
		log.Warnw("inference server not reachable, perception will retry", "url", cfg.BaseURL, "err", err)
	} else {
		log.Infow("inference server up", "device", h.Device, "model_loaded", h.ModelLoaded)
	}

	it := perception.NewIntegrator(pcfg, client, w, perception.SyntheticCapture(w, pcfg), log)
	go it.Run(ctx)
}

// watchTuning revalidates the tuning file on edit. Values are applied at
// startup only; the watcher exists to catch a bad edit before the next
// restart would fail on it.
func watchTuning(ctx context.Context, path string, log *zap.SugaredLogger) {
	tw, err := tuning.NewWatcher(path)
	if err != nil {
		log.Debugw("tuning watch disabled", "err", err)
		return
	}
	go func() {
		defer tw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-tw.Events:
				log.Infow("tuning edited, restart to apply",
					"tick_rate_hz", t.TickRateHz,
					"replan_debounce_ms", t.ReplanDebounceMs)
			case err := <-tw.Errors:
				log.Warnw("tuning edit invalid", "err", err)
			}
		}
	}()
}

func metricsHandler(w *world.World, runID string) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP dunenet_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE dunenet_world_tick gauge\n")
		fmt.Fprintf(rw, "dunenet_world_tick{run=%q} %d\n", runID, tick)

		fmt.Fprintf(rw, "# HELP dunenet_clients Connected telemetry clients.\n")
		fmt.Fprintf(rw, "# TYPE dunenet_clients gauge\n")
		fmt.Fprintf(rw, "dunenet_clients{run=%q} %d\n", runID, m.Clients)

		fmt.Fprintf(rw, "# HELP dunenet_costmap_version Active costmap version.\n")
		fmt.Fprintf(rw, "# TYPE dunenet_costmap_version gauge\n")
		fmt.Fprintf(rw, "dunenet_costmap_version{run=%q} %d\n", runID, m.CostmapVersion)

		fmt.Fprintf(rw, "# HELP dunenet_replans_total Completed replan attempts.\n")
		fmt.Fprintf(rw, "# TYPE dunenet_replans_total counter\n")
		fmt.Fprintf(rw, "dunenet_replans_total{run=%q} %d\n", runID, m.ReplansTotal)

		fmt.Fprintf(rw, "# HELP dunenet_unreachable_total Replans that found no path.\n")
		fmt.Fprintf(rw, "# TYPE dunenet_unreachable_total counter\n")
		fmt.Fprintf(rw, "dunenet_unreachable_total{run=%q} %d\n", runID, m.UnreachableTotal)

		fmt.Fprintf(rw, "# HELP dunenet_perception_cycles_total Applied perception cycles.\n")
		fmt.Fprintf(rw, "# TYPE dunenet_perception_cycles_total counter\n")
		fmt.Fprintf(rw, "dunenet_perception_cycles_total{run=%q} %d\n", runID, m.PerceptionCycles)

		fmt.Fprintf(rw, "# HELP dunenet_perception_failures_total Failed perception cycles.\n")
		fmt.Fprintf(rw, "# TYPE dunenet_perception_failures_total counter\n")
		fmt.Fprintf(rw, "dunenet_perception_failures_total{run=%q} %d\n", runID, m.PerceptionFailures)

		fmt.Fprintf(rw, "# HELP dunenet_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE dunenet_step_ms gauge\n")
		fmt.Fprintf(rw, "dunenet_step_ms{run=%q} %.3f\n", runID, m.StepMS)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type multiMissionLogger struct {
	a world.MissionLogger
	b *indexdb.SQLiteIndex
}

func (m multiMissionLogger) WriteSample(entry world.MissionSample) error {
	if m.a != nil {
		_ = m.a.WriteSample(entry)
	}
	if m.b != nil {
		_ = m.b.WriteSample(entry)
	}
	return nil
}

type multiEventSink struct {
	a world.EventSink
	b *indexdb.SQLiteIndex
}

func (m multiEventSink) WriteEvent(entry world.Event) error {
	if m.a != nil {
		_ = m.a.WriteEvent(entry)
	}
	if m.b != nil {
		_ = m.b.WriteEvent(entry)
	}
	return nil
}
