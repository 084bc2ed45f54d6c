package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"

	"extblock/internal/testutil"
	"extblock/pkg/dnsbl"
	"extblock/pkg/handler"
	"extblock/pkg/registry"
)

func startServer(t *testing.T, opts Options) (*Server, *registry.Registry) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := testutil.NewRegistry(t, registry.Options{Log: log})

	srv := New(opts, reg, log)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, srv.Shutdown(ctx))
		require.NoError(t, srv.Wait())
	})
	require.NoError(t, testutil.WaitForTCP(srv.Addr()))
	return srv, reg
}

func TestServerServesAPI(t *testing.T) {
	srv, _ := startServer(t, Options{
		Listen:         "127.0.0.1:0",
		AllowedOrigins: []string{"http://localhost:5173"},
		Language:       registry.Korean,
	})
	base := "http://" + srv.Addr()

	resp, err := http.Post(base+"/api/extensions/custom", "application/json", strings.NewReader(`{"extension":"sh"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(handler.RequestIDHeader))

	resp, err = http.Get(base + "/api/extensions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body handler.ExtensionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.CustomCount)
	require.Empty(t, srv.DNSBLAddr())
}

func TestServerCORS(t *testing.T) {
	srv, _ := startServer(t, Options{
		Listen:         "127.0.0.1:0",
		AllowedOrigins: []string{"http://localhost:5173"},
		Language:       registry.Korean,
	})
	url := "http://" + srv.Addr() + "/api/extensions/custom/sh"

	preflight := func(origin string) *http.Response {
		req, err := http.NewRequest(http.MethodOptions, url, nil)
		require.NoError(t, err)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp
	}

	resp := preflight("http://localhost:5173")
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	require.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodDelete)

	resp = preflight("http://evil.example")
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServerWithDNSBL(t *testing.T) {
	srv, reg := startServer(t, Options{
		Listen:   "127.0.0.1:0",
		Language: registry.English,
		DNSBL: &dnsbl.Options{
			Listen: "127.0.0.1:0",
			Zone:   "ext.blocklist.",
		},
	})
	require.NotEmpty(t, srv.DNSBLAddr())

	_, err := reg.ToggleFixed(context.Background(), "exe")
	require.NoError(t, err)

	c := &dns.Client{Timeout: 2 * time.Second}
	resp, _, err := c.Exchange(testutil.Query("exe.ext.blocklist.", dns.TypeA), srv.DNSBLAddr())
	require.NoError(t, err)
	require.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 1)

	resp, _, err = c.Exchange(testutil.Query("bat.ext.blocklist.", dns.TypeA), srv.DNSBLAddr())
	require.NoError(t, err)
	require.Equal(t, dns.RcodeNameError, resp.Rcode)
}
