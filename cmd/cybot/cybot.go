package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/cybot.radar/internal/api"
	"github.com/banshee-data/cybot.radar/internal/config"
	"github.com/banshee-data/cybot.radar/internal/hub"
	"github.com/banshee-data/cybot.radar/internal/monitoring"
	"github.com/banshee-data/cybot.radar/internal/perception/events"
	"github.com/banshee-data/cybot.radar/internal/perception/pipeline"
	"github.com/banshee-data/cybot.radar/internal/recorder"
	"github.com/banshee-data/cybot.radar/internal/serialmux"
	"github.com/banshee-data/cybot.radar/internal/telemetry"
	"github.com/banshee-data/cybot.radar/internal/version"
)

var (
	transport      = flag.String("transport", "tcp", "Robot link: serial, tcp, replay or none")
	devMode        = flag.Bool("dev", false, "Run in dev mode (replay the fixture instead of talking to a robot)")
	serialPath     = flag.String("serial", "/dev/ttyUSB0", "Serial device for -transport=serial")
	baudRate       = flag.Int("baud", serialmux.DefaultBaudRate, "Baud rate for -transport=serial")
	tcpAddr        = flag.String("tcp", serialmux.DefaultTCPAddr, "Robot address for -transport=tcp")
	fixture        = flag.String("fixture", "fixtures/cybot_session.txt", "Line fixture for -transport=replay")
	replayInterval = flag.Duration("replay-interval", serialmux.DefaultReplayInterval, "Delay between replayed lines")
	replayLoop     = flag.Bool("loop", false, "Restart the fixture when it ends")
	listen         = flag.String("listen", ":8080", "Listen address")
	allowOrigins   = flag.String("allow-origin", "", "Comma-separated extra page hosts allowed to open /ws (e.g. localhost:5173)")
	configPath     = flag.String("config", "", "Tuning config JSON (defaults to the built-in values)")
	recordPath     = flag.String("record", "", "Record sweeps, trail and bumps to this sqlite file")
	logLevel       = flag.String("log-level", "ops", "Perception log verbosity: ops, diag or trace")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

// resolveTransport applies -dev on top of -transport.
func resolveTransport(kind string, dev bool) string {
	if dev {
		return "replay"
	}
	return kind
}

// loadTuning returns the tuning config at path, or the built-in defaults
// when path is empty.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// openLink opens the robot link for kind.
func openLink(kind string, tuning *config.TuningConfig) (serialmux.SerialMuxInterface, error) {
	switch kind {
	case "serial":
		return serialmux.NewRealSerialMux(*serialPath, serialmux.PortOptions{BaudRate: *baudRate})
	case "tcp":
		return serialmux.NewTCPSerialMux(*tcpAddr, tuning.GetDialTimeout())
	case "replay":
		return serialmux.NewReplaySerialMux(*fixture, *replayInterval, *replayLoop)
	case "none":
		return serialmux.NewDisabledSerialMux(), nil
	default:
		return nil, fmt.Errorf("unknown transport %q: expected serial, tcp, replay or none", kind)
	}
}

func configureLogging(level string) error {
	lvl, err := monitoring.ParseLevel(level)
	if err != nil {
		return err
	}
	w := monitoring.NewLogWriters(lvl, os.Stderr)
	pipeline.SetLogWriters(w)
	telemetry.SetLogWriters(w)
	return nil
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("cybot %s\n", version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if err := configureLogging(*logLevel); err != nil {
		log.Fatal(err)
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		log.Fatalf("failed to load tuning config: %v", err)
	}

	kind := resolveTransport(*transport, *devMode)
	link, err := openLink(kind, tuning)
	if err != nil {
		log.Fatalf("failed to open %s link: %v", kind, err)
	}
	defer link.Close()
	log.Printf("cybot %s using %s link", version.String(), kind)

	queue := events.NewQueue(tuning.GetQueueCapacity())
	core := pipeline.NewCore(tuning.PipelineConfig(), queue, nil)
	renderers := hub.New(core, link)
	renderers.AllowOrigins(strings.Split(*allowOrigins, ",")...)
	sinks := pipeline.MultiSink{renderers}

	var rec *recorder.Recorder
	if *recordPath != "" {
		rec, err = recorder.Open(*recordPath, kind)
		if err != nil {
			log.Fatalf("failed to open recorder: %v", err)
		}
		defer rec.Close()
		sinks = append(sinks, rec)
	}
	core.SetSink(sinks)

	bridge := telemetry.NewBridge(link, queue)

	// Create a wait group for the link monitor, bridge, core, hub, recorder
	// and HTTP server routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the bridge is the only producer; closing the queue lets the core
	// drain and return
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer queue.Close()
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("telemetry bridge stopped: %v", err)
		}
		log.Print("bridge routine terminated")
	}()

	// run the monitor routine to manage IO on the robot link once the
	// bridge is listening
	<-bridge.Ready()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := link.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("robot link monitor stopped: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := core.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("perception core stopped: %v", err)
		}
		log.Print("core routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		renderers.Run(ctx)
		log.Print("hub routine terminated")
	}()

	if rec != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.Run(ctx)
			log.Print("recorder routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(core, link, api.Options{
			Bridge: bridge,
			Hub:    renderers,
			Tuning: tuning,
		}).ServeMux()

		link.AttachAdminRoutes(mux)
		if rec != nil {
			rec.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
