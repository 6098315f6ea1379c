package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/zoneremote/zoneremote-go/pkg/core"
)

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// Timeout bounds Resolve. Default: 10 seconds.
	Timeout time.Duration

	// CoreID restricts Resolve to one core. Empty accepts the first core
	// found.
	CoreID string

	// Logger is the optional logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Timeout: BrowseTimeout,
	}
}

// browseFunc streams found and lost cores until ctx is done.
type browseFunc func(ctx context.Context, found, lost chan<- *CoreService) error

// Browser finds cores with mDNS.
type Browser struct {
	config BrowserConfig
	logger *slog.Logger
	browse browseFunc

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	if config.Timeout <= 0 {
		config.Timeout = BrowseTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &Browser{config: config, logger: logger}
	b.browse = b.browseMDNS
	return b
}

// Browse searches for cores. Services are aggregated by instance name:
// addresses from multiple interfaces are combined and each core is
// reported once. The channel is closed when ctx is done or Stop is called.
func (b *Browser) Browse(ctx context.Context) (<-chan *CoreService, error) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	out := make(chan *CoreService)
	found := make(chan *CoreService)
	lost := make(chan *CoreService)

	go func() {
		defer close(out)

		services := make(map[string]*CoreService)
		for {
			select {
			case svc := <-found:
				existing, ok := services[svc.InstanceName]
				if ok {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.InstanceName] = svc
				b.logger.Debug("core found", "instance", svc.InstanceName, "core_id", svc.CoreID, "addresses", svc.Addresses)

				cp := *svc
				cp.Addresses = append([]string(nil), svc.Addresses...)
				select {
				case out <- &cp:
				case <-ctx.Done():
					return
				}

			case svc := <-lost:
				if existing, ok := services[svc.InstanceName]; ok {
					existing.Addresses = removeAddresses(existing.Addresses, svc.Addresses)
					if len(existing.Addresses) == 0 {
						delete(services, svc.InstanceName)
						b.logger.Debug("core lost", "instance", svc.InstanceName)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := b.browse(ctx, found, lost); err != nil {
			b.logger.Warn("mDNS browse failed", "error", err)
		}
	}()

	return out, nil
}

// FindCore returns the first core whose ID is coreID, or any core if
// coreID is empty.
func (b *Browser) FindCore(ctx context.Context, coreID string) (*CoreService, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case svc, ok := <-results:
			if !ok {
				if ctx.Err() != nil {
					return nil, fmt.Errorf("%w: %w", ErrNotFound, ctx.Err())
				}
				return nil, ErrNotFound
			}
			if coreID == "" || svc.CoreID == coreID {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNotFound, ctx.Err())
		}
	}
}

// Resolve finds the configured core and returns its dial address.
func (b *Browser) Resolve(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	svc, err := b.FindCore(ctx, b.config.CoreID)
	if err != nil {
		return "", err
	}
	addr, err := svc.Address()
	if err != nil {
		return "", fmt.Errorf("%s: %w", svc.InstanceName, err)
	}
	b.logger.Info("core discovered", "name", svc.Name, "core_id", svc.CoreID, "address", addr)
	return addr, nil
}

var _ core.Resolver = (*Browser)(nil)

// Stop stops all active browsing operations.
func (b *Browser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

func (b *Browser) browseMDNS(ctx context.Context, found, lost chan<- *CoreService) error {
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go forward(ctx, entries, found)
	go forward(ctx, removed, lost)

	return zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...)
}

// forward converts zeroconf entries until in closes or ctx is done.
func forward(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- *CoreService) {
	for {
		select {
		case entry, ok := <-in:
			if !ok {
				return
			}
			svc := entryToCore(entry)
			if svc == nil {
				continue
			}
			select {
			case out <- svc:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// browserOptions returns zeroconf client options based on config.
func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// entryToCore converts a zeroconf entry. Entries without a core ID are
// ignored.
func entryToCore(entry *zeroconf.ServiceEntry) *CoreService {
	if entry == nil {
		return nil
	}
	info, err := DecodeCoreTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	name := info.Name
	if name == "" {
		name = entry.Instance
	}

	return &CoreService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		CoreID:       info.CoreID,
		Name:         name,
		Version:      info.Version,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops gone from addresses.
func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
