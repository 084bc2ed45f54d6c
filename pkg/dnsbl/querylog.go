package dnsbl

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/miekg/dns"
)

type queryLogger struct {
	file *os.File
	mu   sync.Mutex
}

func newQueryLogger(path string, log *slog.Logger) *queryLogger {
	if path == "" {
		return nil
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path provided via config.
	if err != nil {
		log.Error("failed to open dnsbl query log", "path", path, "error", err)
		return nil
	}
	return &queryLogger{file: file}
}

// Log appends one line per blocked lookup.
func (q *queryLogger) Log(remoteAddr string, name string, qtype uint16) {
	if q == nil || q.file == nil {
		return
	}
	recordType := dns.TypeToString[qtype]
	if recordType == "" {
		recordType = fmt.Sprintf("%d", qtype)
	}
	line := fmt.Sprintf("%s client=%s type=%s name=%s\n",
		time.Now().UTC().Format(time.RFC3339),
		remoteAddr,
		recordType,
		name,
	)
	q.mu.Lock()
	defer q.mu.Unlock()
	_, _ = q.file.WriteString(line)
}

func (q *queryLogger) Close() error {
	if q == nil || q.file == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.file.Close()
}
