package security

import (
	"context"
	"crypto/tls"
	"log/slog"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/config"
)

// Certificate states.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

// expiringDays is the remaining lifetime below which a certificate is reported
// as expiring.
const expiringDays = 30

// CertStatus describes the leaf certificate served by one HTTPS peer.
type CertStatus struct {
	Endpoint string
	Status   string
	DaysLeft int
	Issuer   string
	NotAfter time.Time
}

// Check dials endpoint and inspects its leaf certificate. It returns nil for
// non-HTTPS or unparseable endpoints.
func Check(ctx context.Context, endpoint string, tlsCfg config.TLSConfig, now time.Time) *CertStatus {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{Endpoint: endpoint}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: tlsCfg.InsecureSkipVerify, //nolint:gosec
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = StatusUnreachable
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}

	leaf := peerCerts[0]
	daysLeft := leaf.NotAfter.Sub(now).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC()
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(daysLeft))
	cs.Status = classify(daysLeft)
	return cs
}

func classify(daysLeft float64) string {
	switch {
	case daysLeft <= 0:
		return StatusExpired
	case daysLeft <= expiringDays:
		return StatusExpiring
	default:
		return StatusValid
	}
}

// Audit checks every HTTPS peer the agent talks to (http sources and the
// report server) and logs the result. Problems are logged at warn level and
// never stop the agent.
func Audit(ctx context.Context, cfg config.AgentConfig) []*CertStatus {
	type peer struct {
		endpoint string
		tls      config.TLSConfig
	}
	var peers []peer
	for _, src := range cfg.Sources {
		if src.Type == config.SourceHTTP {
			peers = append(peers, peer{src.Endpoint, src.TLS})
		}
	}
	if cfg.Server.Endpoint != "" {
		peers = append(peers, peer{cfg.Server.Endpoint, cfg.Server.TLS})
	}

	var out []*CertStatus
	now := time.Now()
	for _, p := range peers {
		cs := Check(ctx, p.endpoint, p.tls, now)
		if cs == nil {
			continue
		}
		out = append(out, cs)
		attrs := []any{"endpoint", cs.Endpoint, "status", cs.Status, "days_left", cs.DaysLeft, "issuer", cs.Issuer}
		if cs.Status == StatusValid {
			slog.Debug("security: certificate ok", attrs...)
		} else {
			slog.Warn("security: certificate problem", attrs...)
		}
	}
	return out
}
