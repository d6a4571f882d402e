package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Publisher/internal/adapters/codec/ivf"
	"github.com/dkeye/Publisher/internal/adapters/codec/opus"
	router "github.com/dkeye/Publisher/internal/adapters/http"
	"github.com/dkeye/Publisher/internal/adapters/rtc"
	wssignal "github.com/dkeye/Publisher/internal/adapters/signal"
	"github.com/dkeye/Publisher/internal/app/session"
	"github.com/dkeye/Publisher/internal/config"
)

func setLevel(name string) {
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func main() {
	configFile := flag.String("config", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	autostart := flag.Bool("start", false, "start publishing immediately")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var (
		store *config.Store
		err   error
	)
	if *configFile != "" {
		store, err = config.LoadFile(*configFile)
	} else {
		store, err = config.Load()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg := store.Current()
	setLevel(cfg.LogLevel)
	store.Watch(func(c *config.Config) { setLevel(c.LogLevel) })

	engines := &rtc.Factory{
		Log:               log.Logger,
		AudioEncoders:     opus.NewEncoder,
		DefaultICEServers: []string{rtc.DefaultSTUN},
	}
	if cfg.Capture.VideoFile != "" {
		engines.VideoEncoders = ivf.Factory(cfg.Capture.VideoFile)
	} else {
		log.Warn().Msg("capture.video_file not set, video frames will be dropped")
	}
	signals := &wssignal.Factory{PingPeriod: cfg.PingPeriod, ReadLimit: cfg.ReadLimit, Log: log.Logger}

	h := newHost(ctx, store, log.Logger)
	ctrl := session.New(store, engines, signals, h, log.Logger, session.WithStatsInterval(cfg.StatsInterval))
	h.attach(ctrl, newTestSource(cfg.Capture, ctrl, log.Logger))

	r := router.SetupRouter(cfg, h, nil)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Publisher control API started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	if *autostart && !h.Start() {
		log.Warn().Str("error", h.LastError()).Msg("autostart failed")
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	h.Stop()
	ctrl.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Publisher exited gracefully")
}
