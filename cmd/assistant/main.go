// Command assistant runs the realtime voice assistant over raw PCM pipes:
// 16-bit mono 16 kHz audio on stdin, 24 kHz audio on stdout.
//
//	arecord -f S16_LE -r 16000 -c 1 -t raw | assistant | aplay -f S16_LE -r 24000 -c 1 -t raw
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"studio/internal/infra"
	"studio/internal/live"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := infra.NewLoggerTo(os.Stderr, cfg.AppEnv).With().Str("cmd", "assistant").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ended := make(chan struct{})
	var endOnce sync.Once
	session, err := live.NewSession(live.Options{
		Devices: &live.StreamDevices{In: os.Stdin, Out: os.Stdout},
		Dialer:  &live.GeminiDialer{APIKey: cfg.GeminiAPIKey},
		Config: live.Config{
			Model:             cfg.LiveModel,
			Voice:             cfg.TTSVoice,
			SystemInstruction: live.SystemInstruction,
		},
		OnStatus: func(active bool) {
			if active {
				logger.Info().Msg("assistant connected; speak now")
				return
			}
			endOnce.Do(func() { close(ended) })
		},
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build session")
	}

	if err := session.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			logger.Info().Msg("interrupted; disconnecting")
		case <-ended:
			logger.Info().Msg("session ended")
		}
		session.Disconnect()
		return nil
	})
	_ = g.Wait()
}
