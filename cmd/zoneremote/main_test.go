package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneremote/zoneremote-go/pkg/persistence"
	"github.com/zoneremote/zoneremote-go/pkg/service"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
)

func TestRememberPairing(t *testing.T) {
	store := persistence.NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan service.Event, 4)
	done := make(chan struct{})
	go func() {
		rememberPairing(ctx, events, store, logger)
		close(done)
	}()

	pairedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	events <- service.Event{Type: service.EventZonesChanged}
	events <- service.Event{Type: service.EventPaired, Time: pairedAt, Core: &wire.CoreInfo{CoreID: "core-7", DisplayName: "Living Room Core"}}
	close(events)
	<-done
	cancel()

	state, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "core-7", state.PairedCoreID)
	assert.Equal(t, "Living Room Core", state.CoreName)
	assert.True(t, state.PairedAt.Equal(pairedAt))
}

func TestRememberPairingStopsOnCancel(t *testing.T) {
	store := persistence.NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rememberPairing(ctx, make(chan service.Event), store, slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("rememberPairing did not return after cancel")
	}

	state, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, state)
}
