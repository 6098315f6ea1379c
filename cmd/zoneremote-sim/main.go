// Command zoneremote-sim runs a simulated audio core for developing and
// testing zoneremote without real hardware.
//
// The simulated core speaks the remote protocol, serves a small browse
// hierarchy and keeps transport state per zone. It can advertise itself
// via mDNS so remotes find it without configuration.
//
// Usage:
//
//	zoneremote-sim [flags]
//
// Flags:
//
//	-listen string        Listen address (default ":9330")
//	-name string          Core display name (default "Simulated Core")
//	-core-id string       Core ID (default "sim-core")
//	-zones string         YAML file with the zone list
//	-advertise            Advertise the core via mDNS
//	-interface string     Network interface for mDNS
//	-cert string          TLS certificate file (enables TLS)
//	-key string           TLS key file
//	-churn duration       Add and remove a "Patio" zone at this interval
//	-protocol-log string  Capture protocol events to this file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Simulated core on the default port, discoverable on the LAN
//	zoneremote-sim -advertise
//
//	# Exercise zone add/remove handling in the remote
//	zoneremote-sim -churn 10s -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zoneremote/zoneremote-go/pkg/discovery"
	"github.com/zoneremote/zoneremote-go/pkg/log"
	"github.com/zoneremote/zoneremote-go/pkg/simcore"
	"github.com/zoneremote/zoneremote-go/pkg/transport"
	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

var (
	listen      = flag.String("listen", fmt.Sprintf(":%d", discovery.DefaultPort), "Listen address")
	name        = flag.String("name", "Simulated Core", "Core display name")
	coreID      = flag.String("core-id", "sim-core", "Core ID")
	zonesFile   = flag.String("zones", "", "YAML file with the zone list")
	advertise   = flag.Bool("advertise", false, "Advertise the core via mDNS")
	iface       = flag.String("interface", "", "Network interface for mDNS")
	certFile    = flag.String("cert", "", "TLS certificate file (enables TLS)")
	keyFile     = flag.String("key", "", "TLS key file")
	churn       = flag.Duration("churn", 0, "Add and remove a \"Patio\" zone at this interval")
	protocolLog = flag.String("protocol-log", "", "Capture protocol events to this file")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger); err != nil {
		logger.Error("simulator failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := simcore.Config{
		Address: *listen,
		CoreID:  *coreID,
		Name:    *name,
		Logger:  logger,
	}

	if *zonesFile != "" {
		zones, err := loadZones(*zonesFile)
		if err != nil {
			return err
		}
		cfg.Zones = zones
	}

	if *certFile != "" {
		tc, err := transport.NewServerTLSConfig(transport.TLSOptions{CertFile: *certFile, KeyFile: *keyFile})
		if err != nil {
			return fmt.Errorf("TLS: %w", err)
		}
		cfg.TLSConfig = tc
	}

	if *protocolLog != "" {
		fl, err := log.NewFileLogger(*protocolLog)
		if err != nil {
			return fmt.Errorf("opening protocol log: %w", err)
		}
		defer fl.Close()
		cfg.ProtocolLogger = fl
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := simcore.New(cfg)
	if err := sim.Start(ctx); err != nil {
		return fmt.Errorf("starting core: %w", err)
	}
	defer sim.Stop()

	info := sim.Info()
	logger.Info("simulated core listening", "address", sim.Addr().String(), "name", info.DisplayName, "core_id", info.CoreID)
	for _, z := range sim.Zones() {
		logger.Info("zone", "name", z.DisplayName, "zone_id", z.ID, "outputs", len(z.Outputs))
	}

	if *advertise {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{
			Interface: *iface,
			TTL:       discovery.DefaultAdvertiserConfig().TTL,
		})
		err := adv.Advertise(&discovery.CoreInfo{
			CoreID:  info.CoreID,
			Name:    info.DisplayName,
			Version: info.Version,
			Port:    portOf(sim.Addr()),
		})
		if err != nil {
			return fmt.Errorf("advertising: %w", err)
		}
		defer adv.Stop()
		logger.Info("advertising", "service", discovery.ServiceType)
	}

	if *churn > 0 {
		go runChurn(ctx, sim, *churn, logger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal", "signal", sig)
	return nil
}

// zoneFile is the YAML layout of -zones.
type zoneFile struct {
	Zones []struct {
		ID      string `yaml:"id"`
		Name    string `yaml:"name"`
		State   string `yaml:"state"`
		Outputs []struct {
			ID   string `yaml:"id"`
			Name string `yaml:"name"`
		} `yaml:"outputs"`
	} `yaml:"zones"`
}

func loadZones(path string) ([]zone.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return parseZones(data)
}

func parseZones(data []byte) ([]zone.Zone, error) {
	var f zoneFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing zones: %w", err)
	}

	zones := make([]zone.Zone, 0, len(f.Zones))
	seen := make(map[string]bool)
	for i, fz := range f.Zones {
		if fz.ID == "" || fz.Name == "" {
			return nil, fmt.Errorf("zone %d: id and name are required", i)
		}
		if seen[fz.ID] {
			return nil, fmt.Errorf("zone %d: duplicate id %q", i, fz.ID)
		}
		seen[fz.ID] = true

		z := zone.Zone{ID: fz.ID, DisplayName: fz.Name, State: fz.State}
		if z.State == "" {
			z.State = "stopped"
		}
		for _, o := range fz.Outputs {
			z.Outputs = append(z.Outputs, zone.Output{ID: o.ID, ZoneID: fz.ID, DisplayName: o.Name})
		}
		zones = append(zones, z)
	}
	return zones, nil
}

func portOf(addr net.Addr) uint16 {
	_, p, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(n)
}

// runChurn alternately adds and removes a zone.
func runChurn(ctx context.Context, sim *simcore.Core, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	patio := zone.Zone{
		ID:          "zone-patio",
		DisplayName: "Patio",
		State:       "stopped",
		Outputs:     []zone.Output{{ID: "out-patio", ZoneID: "zone-patio", DisplayName: "Patio Speakers"}},
	}

	present := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if present {
				sim.RemoveZone(patio.ID)
				logger.Info("[SIM] zone removed", "zone_id", patio.ID)
			} else {
				sim.AddZone(patio)
				logger.Info("[SIM] zone added", "zone_id", patio.ID)
			}
			present = !present
		}
	}
}
