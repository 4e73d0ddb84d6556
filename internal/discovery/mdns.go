// ABOUTME: mDNS service discovery for the noise stream server
// ABOUTME: Handles advertisement by servers and browsing by remote clients
package discovery

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// ServiceType is the mDNS service the stream server registers
const ServiceType = "_noisevoice._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string // websocket path advertised in the TXT record
}

// Manager handles mDNS advertisement
type Manager struct {
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	server *mdns.Server
}

// NewManager creates a discovery manager
func NewManager(config Config, logger *zap.Logger) *Manager {
	if config.Path == "" {
		config.Path = "/noise"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		config: config,
		logger: logger,
	}
}

// Advertise publishes the service until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.mu.Lock()
	m.server = server
	m.mu.Unlock()

	m.logger.Info("Advertising mDNS service",
		zap.String("name", m.config.ServiceName),
		zap.Int("port", m.config.Port),
		zap.String("type", ServiceType))

	return nil
}

// Stop withdraws the advertisement
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server != nil {
		if err := m.server.Shutdown(); err != nil {
			m.logger.Warn("mDNS shutdown failed", zap.Error(err))
		}
		m.server = nil
	}
}

func (m *Manager) txtRecords() []string {
	return []string{"path=" + m.config.Path}
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// URL returns the websocket address of the server
func (s ServerInfo) URL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
		Path:   s.Path,
	}
	return u.String()
}

// Browse queries the network once for noise servers, returning what
// answered within timeout
func Browse(ctx context.Context, timeout time.Duration, logger *zap.Logger) ([]ServerInfo, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries := make(chan *mdns.ServiceEntry, 10)
	var servers []ServerInfo
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			if !strings.Contains(entry.Name, ServiceType) {
				continue
			}
			server := serverFromEntry(entry)
			logger.Debug("Discovered server",
				zap.String("name", server.Name),
				zap.String("url", server.URL()))
			servers = append(servers, server)
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-done

	if err != nil {
		return servers, fmt.Errorf("mdns query failed: %w", err)
	}
	return servers, nil
}

func serverFromEntry(entry *mdns.ServiceEntry) ServerInfo {
	server := ServerInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Port: entry.Port,
		Path: "/noise",
	}

	switch {
	case entry.AddrV4 != nil:
		server.Host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		server.Host = entry.AddrV6.String()
	default:
		server.Host = strings.TrimSuffix(entry.Host, ".")
	}

	for _, field := range entry.InfoFields {
		if path, ok := strings.CutPrefix(field, "path="); ok && path != "" {
			server.Path = path
		}
	}

	return server
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
