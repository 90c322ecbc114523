package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"botd/internal/config"
	"botd/internal/httpapi"
	"botd/internal/logging"
	"botd/internal/platform/sim"
	"botd/internal/settings"
	"botd/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// newPlatform selects the host services backing every session.
func newPlatform(name string, log zerolog.Logger) (transport.Platform, error) {
	switch name {
	case "sim":
		return sim.NewHost(log), nil
	}
	return nil, fmt.Errorf("unsupported platform %q", name)
}

// newSettings seeds the shared tunables from the configuration.
func newSettings(cfg config.Config, logs *logging.Service) *settings.Settings {
	s := settings.New()
	s.SetButtonClickSleepMS(int64(cfg.ButtonClickSleepMS))
	s.SetKeySleepMS(int64(cfg.KeySleepMS))
	s.SetPollRateMS(int64(cfg.PollRateMS))
	s.SetFingerDiameter(uint32(cfg.FingerDiameter))
	s.SetCompat(cfg.Compat())
	s.SetVerbose(cfg.EnableLogs)
	s.OnVerbose(logs.SetVerbose)
	return s
}

// runAgent serves clients until ctx is cancelled. started, if set, is called
// once the transport server exists.
func runAgent(ctx context.Context, cfg config.Config, started func(*transport.Server)) error {
	logs, err := logging.New(logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogBackups,
		Console:    cfg.LogConsole,
		Level:      cfg.LogLevel,
		Verbose:    cfg.EnableLogs,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logs.Close()
	log := logs.Component("botd")

	platform, err := newPlatform(cfg.Platform, logs.Component("platform"))
	if err != nil {
		return err
	}
	srv := transport.NewServer(transport.Options{
		Transport:     cfg.Transport,
		Addr:          cfg.Addr,
		USBDevice:     cfg.USBDevice,
		QueueCapacity: cfg.QueueCapacity,
		MaxLineBytes:  cfg.MaxLineBytes,
		EarlyWake:     time.Duration(cfg.EarlyWakeUS) * time.Microsecond,
	}, platform, newSettings(cfg, logs), logs.Logger())
	if started != nil {
		started(srv)
	}

	var status *http.Server
	if cfg.MetricsAddr != "" {
		httpapi.SetLogger(logs.Component("http"))
		httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins)
		status = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           httpapi.NewMux(srv),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("status api listening")
			if err := status.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status api stopped")
			}
		}()
	}

	log.Info().
		Str("transport", cfg.Transport).
		Str("platform", cfg.Platform).
		Bool("compat", cfg.Compat()).
		Msg("agent starting")
	serveErr := srv.Serve(ctx)

	if status != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := status.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("status api shutdown")
		}
	}
	log.Info().Msg("agent stopped")
	return serveErr
}
