// Package testutil provides helpers for registry, HTTP and DNS tests.
package testutil

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
)

// CaptureWriter is a dns.ResponseWriter that keeps the last written message.
type CaptureWriter struct {
	Remote net.Addr

	mu  sync.Mutex
	msg *dns.Msg
}

// NewCaptureWriter returns a writer whose RemoteAddr is a UDP client on
// 127.0.0.1.
func NewCaptureWriter() *CaptureWriter {
	return &CaptureWriter{Remote: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 53535}}
}

// Msg returns the last message written, or nil.
func (w *CaptureWriter) Msg() *dns.Msg {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.msg
}

func (w *CaptureWriter) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 53}
}

func (w *CaptureWriter) RemoteAddr() net.Addr {
	return w.Remote
}

func (w *CaptureWriter) WriteMsg(msg *dns.Msg) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msg = msg
	return nil
}

func (w *CaptureWriter) Write([]byte) (int, error) {
	return 0, nil
}

func (w *CaptureWriter) Close() error {
	return nil
}

func (w *CaptureWriter) TsigStatus() error {
	return nil
}

func (w *CaptureWriter) TsigTimersOnly(bool) {}

func (w *CaptureWriter) Hijack() {}

// Query builds a single-question request with recursion desired.
func Query(name string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	return m
}

// FreeAddr returns a 127.0.0.1 address whose TCP port was free a moment ago.
func FreeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

// WaitForTCP dials addr until it accepts a connection or the attempts run out.
func WaitForTCP(addr string) error {
	var lastErr error
	for i := 0; i < 50; i++ {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return lastErr
}
