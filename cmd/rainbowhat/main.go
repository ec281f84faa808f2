package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/rainbowhat"
	"github.com/coreman2200/rainbowhat/bus"
	"github.com/coreman2200/rainbowhat/internal/config"
	"github.com/coreman2200/rainbowhat/internal/preview"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		mode       = flag.String("mode", "rainbow", "demo: rainbow | scroll | melody | touch")
		driver     = flag.String("driver", "periph", "bus driver: periph | sim")
		text       = flag.String("text", "", "text for the display")
		fps        = flag.Int("fps", 0, "frames per second")
		brightness = flag.Float64("brightness", 0, "LED brightness 0..1")
		addr       = flag.String("addr", "", "preview HTTP listen address (sim driver)")
		console    = flag.Bool("console", false, "draw the LEDs in the terminal (sim driver)")
		melodyFile = flag.String("melody", "", "Standard MIDI File to play in melody mode")
		track      = flag.Int("track", -1, "MIDI track to play (-1 picks the first with notes)")
		level      = flag.String("log-level", "", "log level: debug | info | warn | error")
		duration   = flag.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// ---- Config: file over defaults, flags given on the command line over both ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		}
		cfg = config.Default()
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "driver":
			cfg.Driver = *driver
		case "text":
			cfg.Text = *text
		case "fps":
			cfg.FPS = *fps
		case "brightness":
			cfg.Brightness = *brightness
		case "addr":
			cfg.Preview.Addr = *addr
		case "console":
			cfg.Preview.Console = *console
		case "melody":
			cfg.MelodyFile = *melodyFile
		case "track":
			cfg.MelodyTrack = *track
		case "log-level":
			cfg.Log.Level = *level
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && cfg.Log.Level != "" {
		zerolog.SetGlobalLevel(lvl)
	}

	// ---- Shutdown on signal or after -duration ----
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	// ---- Bus: periph, falling back to the simulator ----
	b, sim := openBus(cfg)
	var srv *http.Server
	if sim != nil {
		srv = startPreview(cfg, sim)
	}

	hat, err := rainbowhat.New(b)
	if err != nil {
		log.Fatal().Err(err).Msg("rainbow hat init failed")
	}

	log.Info().Str("mode", *mode).Str("driver", cfg.Driver).Int("fps", cfg.FPS).Msg("starting")
	if err := run(ctx, hat, cfg, *mode); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		log.Error().Err(err).Str("mode", *mode).Msg("demo failed")
	}
	log.Info().Msg("shutting down")

	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
	}
	_ = hat.Close()
}

func openBus(cfg *config.Config) (bus.Bus, *bus.Sim) {
	if cfg.Driver == "periph" {
		p, err := bus.OpenPeriph(cfg.BusOpts())
		if err == nil {
			return p, nil
		}
		log.Warn().Err(err).
			Str("driver", "periph").
			Str("spi", cfg.SPI.Port).
			Msg("periph init failed; falling back to SIM")
		cfg.Driver = "sim"
	}
	sim := bus.NewSim()
	sim.Discard()
	return sim, sim
}

func startPreview(cfg *config.Config, sim *bus.Sim) *http.Server {
	p := preview.New()
	if cfg.Preview.Console {
		p.WithConsole()
	}
	p.Attach(sim)
	if cfg.Preview.Addr == "" {
		return nil
	}

	srv := &http.Server{
		Addr:         cfg.Preview.Addr,
		Handler:      withCORS(p.Handler()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("preview server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("preview server stopped")
		}
	}()
	return srv
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
