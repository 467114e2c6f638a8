package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"vigil/audio"
	"vigil/breath"
	"vigil/config"
	"vigil/enforce"
	"vigil/evidence"
	"vigil/log"
	"vigil/notify"
	"vigil/server"
	"vigil/store"
)

var version = "dev"

var frameCount atomic.Uint64

var shutdownOnce sync.Once

func main() {
	run()
}

func run() {
	configFlag := flag.String("config", "vigil.yaml", "Path to YAML config file")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	modeFlag := flag.String("mode", "", "Detection mode: single or two_person")
	engineFlag := flag.String("engine", "", "Storage engine: sqlite or json")
	storeFlag := flag.String("store", "", "Storage path (database file)")
	replayFlag := flag.String("replay", "", "Replay a WAV file instead of live capture")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Flag overrides ride the env path so they pass validation with
	// everything else.
	setEnvIf("VIGIL_DEVICE", *deviceFlag)
	setEnvIf("VIGIL_MODE", *modeFlag)
	setEnvIf("VIGIL_STORE_ENGINE", *engineFlag)
	setEnvIf("VIGIL_STORE_PATH", *storeFlag)

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
		os.Exit(1)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(cmp.Or(*logPathFlag, cfg.LogPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("vigil %s\n", version)
		os.Exit(0)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	st, err := store.NewByEngine(cfg.Store.Engine, cfg.Store.Path)
	if err != nil {
		log.Errorf("store init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: opening store: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	today := enforce.DateOf(now)
	day, ok, err := st.LoadDay(today)
	if err != nil {
		log.Errorf("load day %s: %v", today, err)
	}
	if !ok {
		day = enforce.NewDayRecord(today, 1)
	}
	state, _, err := st.LoadState()
	if err != nil {
		log.Errorf("load state: %v", err)
	}

	recorder := evidence.NewRecorder(st)

	var sinkMu sync.Mutex
	sinks := notify.Multi{notify.LogSink{}}
	if cfg.Webhook.URL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.Webhook.URL))
	}
	sinks = append(sinks, notify.Func(func(ev notify.Event) {
		if ev.Kind != notify.KindPenalty {
			return
		}
		if id, err := recorder.Flush(ev.Time); err != nil {
			log.Errorf("evidence flush: %v", err)
		} else if id != "" {
			log.Infof("evidence saved: %s", id)
		}
	}))
	addSink := func(n notify.Notifier) {
		sinkMu.Lock()
		sinks = append(sinks, n)
		sinkMu.Unlock()
	}
	notifier := notify.Func(func(ev notify.Event) {
		sinkMu.Lock()
		fanout := make(notify.Multi, len(sinks))
		copy(fanout, sinks)
		sinkMu.Unlock()
		if err := fanout.Notify(ev); err != nil {
			log.Warnf("notify: %v", err)
		}
	})

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sched := enforce.New(day, state, st, notifier, rng, now)

	mon := breath.NewMonitor()
	if cfg.Audio.Mode == "two_person" {
		mon.SetMode(breath.ModeTwoPerson)
	}
	mon.Subscribe(func(m breath.Metrics) {
		frameCount.Add(1)
		sched.HandleMetrics(m, m.Time)
	})
	mon.SetRawTap(recorder.Feed)

	var actx audio.Context
	if *replayFlag != "" {
		actx, err = audio.NewFakeContext(*replayFlag, true)
	} else {
		actx, err = audio.NewContext()
	}
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}

	if *setupFlag && cfg.Audio.Device == "" {
		dev, err := audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
			fmt.Fprintln(os.Stderr, "Falling back to default device")
		} else if dev != nil {
			cfg.Audio.Device = dev.Name
		}
	}

	var selectedDevice *audio.DeviceInfo
	if cfg.Audio.Device != "" {
		if devices, err := actx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == cfg.Audio.Device {
					selectedDevice = &devices[i]
					break
				}
			}
		}
	}

	deviceName := "system default"
	if selectedDevice != nil {
		deviceName = selectedDevice.Name
	}
	log.SessionStart(deviceName, cfg.Audio.Mode, cfg.Store.Engine)

	// A dead microphone is an enforcement event, not a fatal error: the
	// scheduler keeps ticking and reports monitoring as degraded.
	if err := mon.Start(actx, selectedDevice); err != nil {
		log.Errorf("capture start: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: capture unavailable: %v\n", err)
		sched.HandleUnavailable(time.Now())
	}

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(sched, mon, st)
		mon.Subscribe(srv.BroadcastMetrics)
		addSink(notify.Func(srv.BroadcastEvent))
		go func() {
			if err := srv.ListenAndServe(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
				log.Errorf("server: %v", err)
			}
		}()
	}

	gracefulShutdown := func() {
		shutdownOnce.Do(func() {
			mon.Stop()
			actx.Close()
			if srv != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				if err := srv.Shutdown(ctx); err != nil {
					log.Errorf("server shutdown: %v", err)
				}
				cancel()
			}
			if err := st.Close(); err != nil {
				log.Errorf("store close: %v", err)
			}
			log.SessionEnd(frameCount.Load())
			log.Close()
			tuiMu.Lock()
			p := tuiProgram
			tuiMu.Unlock()
			if p != nil {
				p.Quit()
			}
			os.Exit(0)
		})
	}

	// Catch up on anything that came due while the process was down.
	sched.Tick(time.Now())

	go func() {
		ticker := time.NewTicker(time.Duration(cfg.TickSecs) * time.Second)
		defer ticker.Stop()
		for t := range ticker.C {
			sched.Tick(t)
		}
	}()

	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(sched)
		tuiMu.Unlock()

		mon.Subscribe(func(m breath.Metrics) { tuiSend(metricsMsg(m)) })
		addSink(notify.Func(func(ev notify.Event) { tuiSend(eventMsg(ev)) }))

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			gracefulShutdown()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	gracefulShutdown()
}

func setEnvIf(key, val string) {
	if val != "" {
		os.Setenv(key, val)
	}
}
