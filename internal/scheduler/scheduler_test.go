package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotaledger/internal/model"
	"quotaledger/internal/service"
)

type stubEngine struct {
	service.Engine

	resets chan struct{}
}

func (s *stubEngine) ResetDuePools(context.Context) (*model.ResetSummary, error) {
	s.resets <- struct{}{}
	return &model.ResetSummary{RunID: "run-1"}, nil
}

func TestStart_InvalidSpec(t *testing.T) {
	s := New(&stubEngine{}, "not a cron spec")
	err := s.Start(context.Background())
	require.Error(t, err)
}

func TestStart_RunsResetOnSchedule(t *testing.T) {
	svc := &stubEngine{resets: make(chan struct{}, 1)}
	s := New(svc, "@every 20ms")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-svc.resets:
	case <-time.After(5 * time.Second):
		t.Fatal("reset pass never ran")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
