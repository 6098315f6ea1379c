package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

const (
	// ServiceType is the DNS-SD service type of a core.
	ServiceType = "_zonecore._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default core port.
	DefaultPort = 9330

	// BrowseTimeout is the default timeout for finding a core.
	BrowseTimeout = 10 * time.Second

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyCoreID  = "id"
	TXTKeyName    = "name"
	TXTKeyVersion = "ver"
)

// Discovery errors.
var (
	ErrNotFound            = errors.New("core not found")
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInstanceNameTooLong = errors.New("instance name too long")
	ErrNoAddress           = errors.New("core has no usable address")
)

// CoreInfo is what a core publishes about itself.
type CoreInfo struct {
	CoreID  string
	Name    string
	Version string
	Port    uint16
}

// CoreService is a core found on the network.
type CoreService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	CoreID  string
	Name    string
	Version string
}

// Address returns host:port for dialing the core. IPv4 addresses are
// preferred over IPv6, and any address over the host name.
func (s *CoreService) Address() (string, error) {
	port := strconv.Itoa(int(s.Port))

	var v6 string
	for _, a := range s.Addresses {
		ip := net.ParseIP(a)
		if ip == nil {
			continue
		}
		if ip.To4() != nil {
			return net.JoinHostPort(a, port), nil
		}
		if v6 == "" {
			v6 = a
		}
	}
	if v6 != "" {
		return net.JoinHostPort(v6, port), nil
	}
	if s.Host != "" {
		return net.JoinHostPort(s.Host, port), nil
	}
	return "", ErrNoAddress
}
