package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneremote/zoneremote-go/pkg/simcore"
)

func TestParseZones(t *testing.T) {
	zones, err := parseZones([]byte(`
zones:
  - id: z-office
    name: Office
    outputs:
      - id: o-desk
        name: Desk Speakers
  - id: z-bath
    name: Bathroom
    state: paused
`))
	require.NoError(t, err)
	require.Len(t, zones, 2)

	assert.Equal(t, "Office", zones[0].DisplayName)
	assert.Equal(t, "stopped", zones[0].State)
	require.Len(t, zones[0].Outputs, 1)
	assert.Equal(t, "o-desk", zones[0].Outputs[0].ID)
	assert.Equal(t, "z-office", zones[0].Outputs[0].ZoneID)

	assert.Equal(t, "paused", zones[1].State)
	assert.Empty(t, zones[1].Outputs)
}

func TestParseZonesErrors(t *testing.T) {
	tests := map[string]string{
		"missing name": "zones:\n  - id: a\n",
		"duplicate":    "zones:\n  - id: a\n    name: A\n  - id: a\n    name: B\n",
		"not yaml":     "zones: [",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseZones([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestPortOf(t *testing.T) {
	assert.Equal(t, uint16(9330), portOf(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9330}))
	assert.Equal(t, uint16(0), portOf(&net.UnixAddr{Name: "sock", Net: "unix"}))
}

func TestRunChurn(t *testing.T) {
	sim := simcore.New(simcore.Config{Address: "127.0.0.1:0"})
	require.NoError(t, sim.Start(context.Background()))
	defer sim.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runChurn(ctx, sim, 20*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	hasPatio := func() bool {
		for _, z := range sim.Zones() {
			if z.ID == "zone-patio" {
				return true
			}
		}
		return false
	}
	require.Eventually(t, hasPatio, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !hasPatio() }, time.Second, 5*time.Millisecond)
}
