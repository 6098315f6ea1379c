package transport

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func fastKeepAlive() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   20 * time.Millisecond,
		PongTimeout:    10 * time.Millisecond,
		MaxMissedPongs: 2,
	}
}

func TestKeepAliveDefaults(t *testing.T) {
	ka := NewKeepAlive(KeepAliveConfig{}, func(uint32) error { return nil }, nil)
	if ka.config != DefaultKeepAliveConfig() {
		t.Errorf("config = %+v, want defaults", ka.config)
	}
	if d := DefaultKeepAliveConfig().DetectionDelay(); d != 95*time.Second {
		t.Errorf("DetectionDelay = %v, want 95s", d)
	}
}

func TestKeepAliveTimeout(t *testing.T) {
	var pings atomic.Int32
	timedOut := make(chan struct{})

	ka := NewKeepAlive(fastKeepAlive(), func(uint32) error {
		pings.Add(1)
		return nil
	}, func() { close(timedOut) })

	ka.Start(context.Background())
	defer ka.Stop()

	select {
	case <-timedOut:
	case <-time.After(2 * time.Second):
		t.Fatal("keep-alive did not time out")
	}

	if pings.Load() < 2 {
		t.Errorf("pings = %d, want at least 2", pings.Load())
	}
	if ka.Stats().MissedPongs < 2 {
		t.Errorf("MissedPongs = %d, want 2", ka.Stats().MissedPongs)
	}
}

func TestKeepAlivePongsPreventTimeout(t *testing.T) {
	var ka *KeepAlive
	var timedOut atomic.Bool

	ka = NewKeepAlive(fastKeepAlive(), func(seq uint32) error {
		// Answer immediately, like a healthy peer
		go ka.PongReceived(seq)
		return nil
	}, func() { timedOut.Store(true) })

	ka.Start(context.Background())

	time.Sleep(150 * time.Millisecond)
	ka.Stop()

	if timedOut.Load() {
		t.Error("unexpected timeout with answered pings")
	}
	stats := ka.Stats()
	if stats.MissedPongs != 0 {
		t.Errorf("MissedPongs = %d, want 0", stats.MissedPongs)
	}
	if stats.LastPongTime.IsZero() {
		t.Error("LastPongTime not recorded")
	}
}

func TestKeepAliveStopAndRestart(t *testing.T) {
	ka := NewKeepAlive(fastKeepAlive(), func(uint32) error { return nil }, nil)

	ka.Start(context.Background())
	if !ka.IsRunning() {
		t.Fatal("expected running")
	}
	ka.Start(context.Background()) // no-op

	ka.Stop()
	ka.Stop() // no-op
	if ka.IsRunning() {
		t.Fatal("expected stopped")
	}

	ka.Start(context.Background())
	if !ka.IsRunning() {
		t.Fatal("expected running after restart")
	}
	ka.Stop()
}

func TestKeepAliveContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var timedOut atomic.Bool

	ka := NewKeepAlive(KeepAliveConfig{PingInterval: time.Hour}, func(uint32) error { return nil }, func() { timedOut.Store(true) })
	ka.Start(ctx)
	cancel()

	time.Sleep(20 * time.Millisecond)
	if timedOut.Load() {
		t.Error("timeout fired after cancel")
	}
	if ka.Stats().CurrentSeq != 1 {
		t.Errorf("CurrentSeq = %d, want 1 (initial ping)", ka.Stats().CurrentSeq)
	}
}
