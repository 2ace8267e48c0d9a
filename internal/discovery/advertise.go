package discovery

import (
	"fmt"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// Advertisement describes what the daemon announces.
type Advertisement struct {
	Instance   string
	Port       int
	StatusPort int // 0 leaves status_port out of the TXT record
	Path       string
	Version    string

	// Interfaces limits the announcement, typically to the AP-facing
	// interface. Empty means every multicast-capable interface.
	Interfaces []string
}

// TXT builds the TXT record strings for the advertisement.
func (a Advertisement) TXT() []string {
	path := a.Path
	if path == "" {
		path = "/index.html"
	}
	txt := []string{TxtPath + "=" + path}
	if a.StatusPort > 0 {
		txt = append(txt, TxtStatusPort+"="+strconv.Itoa(a.StatusPort))
	}
	if a.Version != "" {
		txt = append(txt, TxtVersion+"="+a.Version)
	}
	return txt
}

// Advertiser publishes the provisioning service over mDNS.
type Advertiser struct {
	server *zeroconf.Server
	logger *zap.Logger
}

// Advertise registers the service and keeps answering queries until
// Shutdown.
func Advertise(ad Advertisement, logger *zap.Logger) (*Advertiser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ifaces, err := lookupInterfaces(ad.Interfaces)
	if err != nil {
		return nil, err
	}

	server, err := zeroconf.Register(ad.Instance, ServiceType, ServiceDomain, ad.Port, ad.TXT(), ifaces)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logger.Info("Advertising provisioning service",
		zap.String("instance", ad.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", ad.Port),
		zap.Strings("txt", ad.TXT()),
		zap.Strings("interfaces", ad.Interfaces),
	)
	return &Advertiser{server: server, logger: logger}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.logger.Info("mDNS advertisement withdrawn")
}

func lookupInterfaces(names []string) ([]net.Interface, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ifaces := make([]net.Interface, 0, len(names))
	for _, name := range names {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", name, err)
		}
		ifaces = append(ifaces, *iface)
	}
	return ifaces, nil
}
