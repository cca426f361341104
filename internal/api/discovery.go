package api

import (
	"fmt"

	"github.com/grandcat/zeroconf"
)

// mdnsServiceType is the DNS-SD service type Web Things advertise.
const mdnsServiceType = "_webthing._tcp"

// mdnsService wraps the zeroconf registration so shutdown stays next
// to the one import of the library.
type mdnsService struct {
	server *zeroconf.Server
}

func (m *mdnsService) shutdown() {
	m.server.Shutdown()
}

// registerMDNS advertises this server on the local network. Clients
// browse for _webthing._tcp and follow the path TXT record to the
// thing tree.
func (s *Server) registerMDNS() error {
	instance := s.mdnsCfg.Instance
	if instance == "" {
		instance = s.things.Name()
	}

	path := s.cfg.BasePath + "/"
	txt := []string{"path=" + path}

	server, err := zeroconf.Register(instance, mdnsServiceType, "local.", s.cfg.Port, txt, nil)
	if err != nil {
		return fmt.Errorf("registering mDNS service: %w", err)
	}

	s.mdns = &mdnsService{server: server}
	s.logger.Info("mDNS service registered",
		"instance", instance,
		"type", mdnsServiceType,
		"port", s.cfg.Port,
		"path", path,
	)
	return nil
}
