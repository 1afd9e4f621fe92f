package main

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mfgsight/mfgsight-ai-go/internal/services"
)

func TestRunRetrainSweepStopsOnCancel(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	registry := services.NewModelRegistry(services.RegistryConfig{Seed: 1}, logger)
	controller := services.NewRetrainController(registry, nil, nil, nil, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runRetrainSweep(ctx, controller, 5*time.Millisecond, logger)
		close(done)
	}()

	// Let at least one tick fire against the empty registry.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweep loop did not stop after context cancellation")
	}
}
