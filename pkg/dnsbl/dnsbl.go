// Package dnsbl answers blocklist lookups over DNS so upload gates can ask
// whether an extension is blocked without speaking HTTP.
//
// A query for <extension>.<zone> returns 127.0.0.2 (A) or "blocked" (TXT)
// when the extension is active, NXDOMAIN otherwise. A TXT query for
// _all.<zone> lists every active extension.
package dnsbl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

const (
	DefaultTTL    = 30
	ListLabel     = "_all"
	lookupTimeout = 2 * time.Second
)

// BlockedAddr is the A record returned for a blocked extension.
var BlockedAddr = net.IPv4(127, 0, 0, 2)

// Checker answers blocklist questions from current persisted state.
type Checker interface {
	IsBlocked(ctx context.Context, ext string) (bool, error)
	ActiveExtensions(ctx context.Context) ([]string, error)
}

// Options configures a Server.
type Options struct {
	Listen       string
	Zone         string
	Checker      Checker
	QueryLogPath string
	Log          *slog.Logger
}

// Server is a UDP+TCP DNS responder for one zone.
type Server struct {
	listen   string
	zone     string
	checker  Checker
	log      *slog.Logger
	queryLog *queryLogger

	mu        sync.Mutex
	udpServer *dns.Server
	tcpServer *dns.Server
	baseCtx   context.Context
}

// New creates a Server. Zone is made fully qualified and lowercased.
func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		listen:   opts.Listen,
		zone:     dns.Fqdn(strings.ToLower(opts.Zone)),
		checker:  opts.Checker,
		log:      log,
		queryLog: newQueryLogger(opts.QueryLogPath, log),
		baseCtx:  context.Background(),
	}
}

// Start binds UDP and TCP on the configured address and serves in the
// background. Serve errors after startup are reported on the returned
// channel, which is closed once both listeners have stopped.
func (s *Server) Start(ctx context.Context) (<-chan error, error) {
	udpConn, err := net.ListenPacket("udp", s.listen)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", s.listen, err)
	}
	// Bind TCP on the port UDP actually got, so ":0" works in tests.
	tcpListener, err := net.Listen("tcp", udpConn.LocalAddr().String())
	if err != nil {
		_ = udpConn.Close()
		return nil, fmt.Errorf("listen tcp %s: %w", s.listen, err)
	}

	started := make(chan struct{}, 2)
	notify := func() { started <- struct{}{} }

	s.mu.Lock()
	s.baseCtx = ctx
	s.udpServer = &dns.Server{PacketConn: udpConn, Handler: s, NotifyStartedFunc: notify}
	s.tcpServer = &dns.Server{Listener: tcpListener, Handler: s, NotifyStartedFunc: notify}
	udpServer, tcpServer := s.udpServer, s.tcpServer
	s.mu.Unlock()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	for _, srv := range []*dns.Server{udpServer, tcpServer} {
		wg.Add(1)
		go func(srv *dns.Server) {
			defer wg.Done()
			if err := srv.ActivateAndServe(); err != nil && !errors.Is(err, net.ErrClosed) {
				errCh <- err
			}
		}(srv)
	}
	go func() {
		wg.Wait()
		close(errCh)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case err := <-errCh:
			_ = s.Shutdown(context.Background())
			return nil, fmt.Errorf("serve dns: %w", err)
		}
	}

	s.log.Info("starting dnsbl server", "address", udpConn.LocalAddr().String(), "zone", s.zone)
	return errCh, nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.udpServer != nil && s.udpServer.PacketConn != nil {
		return s.udpServer.PacketConn.LocalAddr().String()
	}
	return s.listen
}

// Shutdown stops both listeners and closes the query log.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	udpServer, tcpServer := s.udpServer, s.tcpServer
	s.mu.Unlock()

	var errs []error
	for _, srv := range []*dns.Server{udpServer, tcpServer} {
		if srv == nil {
			continue
		}
		if err := srv.ShutdownContext(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.queryLog.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ServeDNS implements dns.Handler.
func (s *Server) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	msg := new(dns.Msg)
	if r == nil || len(r.Question) == 0 {
		msg.Rcode = dns.RcodeFormatError
		s.writeResponse(w, r, msg)
		return
	}
	msg.SetReply(r)
	msg.Authoritative = true

	q := r.Question[0]
	name := strings.ToLower(q.Name)
	remote := remoteIP(w)

	s.log.Debug("received dnsbl query", "name", name, "type", q.Qtype, "client_ip", remote)

	label, ok := s.label(name)
	if !ok {
		msg.Authoritative = false
		msg.Rcode = dns.RcodeRefused
		s.writeResponse(w, r, msg)
		return
	}

	ctx, cancel := context.WithTimeout(s.requestContext(), lookupTimeout)
	defer cancel()

	switch {
	case label == "":
		// Zone apex: exists, no data.
	case label == ListLabel:
		if err := s.answerList(ctx, msg, q); err != nil {
			s.log.Error("failed to list active extensions", "error", err)
			msg.Rcode = dns.RcodeServerFailure
		}
	case strings.Contains(label, "."):
		msg.Rcode = dns.RcodeNameError
	default:
		blocked, err := s.checker.IsBlocked(ctx, label)
		if err != nil {
			s.log.Error("failed to check extension", "extension", label, "error", err)
			msg.Rcode = dns.RcodeServerFailure
			break
		}
		if !blocked {
			msg.Rcode = dns.RcodeNameError
			break
		}
		s.answerBlocked(msg, q)
		s.queryLog.Log(remote, name, q.Qtype)
	}

	s.writeResponse(w, r, msg)
}

// label returns the part of name left of the zone.
func (s *Server) label(name string) (string, bool) {
	if !dns.IsSubDomain(s.zone, name) {
		return "", false
	}
	if name == s.zone {
		return "", true
	}
	return strings.TrimSuffix(name, "."+s.zone), true
}

func (s *Server) answerBlocked(msg *dns.Msg, q dns.Question) {
	hdr := dns.RR_Header{Name: q.Name, Rrtype: q.Qtype, Class: dns.ClassINET, Ttl: DefaultTTL}
	switch q.Qtype {
	case dns.TypeA:
		msg.Answer = append(msg.Answer, &dns.A{Hdr: hdr, A: BlockedAddr})
	case dns.TypeTXT:
		msg.Answer = append(msg.Answer, &dns.TXT{Hdr: hdr, Txt: []string{"blocked"}})
	}
}

func (s *Server) answerList(ctx context.Context, msg *dns.Msg, q dns.Question) error {
	if q.Qtype != dns.TypeTXT {
		return nil
	}
	active, err := s.checker.ActiveExtensions(ctx)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}
	msg.Answer = append(msg.Answer, &dns.TXT{
		Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: DefaultTTL},
		Txt: active,
	})
	return nil
}

func (s *Server) requestContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// writeResponse echoes EDNS0 and, over UDP, truncates msg to the size the
// client advertised (512 bytes without EDNS0). A truncated reply carries TC so
// the client retries over TCP.
func (s *Server) writeResponse(w dns.ResponseWriter, r, msg *dns.Msg) {
	size := dns.MinMsgSize
	if r != nil {
		if opt := r.IsEdns0(); opt != nil {
			size = max(int(opt.UDPSize()), dns.MinMsgSize)
			msg.SetEdns0(uint16(size), false)
		}
	}
	if isUDP(w) && len(msg.Answer) > 0 {
		if msgSize := msg.Len(); msgSize > size {
			s.log.Debug("message too large", "size", msgSize, "max", size)
			msg.Truncate(size)
		}
	}

	if err := w.WriteMsg(msg); err != nil {
		s.log.Error("failed to write dnsbl response", "error", err)
	}
}

func isUDP(w dns.ResponseWriter) bool {
	addr := w.LocalAddr()
	return addr != nil && strings.HasPrefix(addr.Network(), "udp")
}

func remoteIP(w dns.ResponseWriter) string {
	addr := w.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
