// Package pgdriver connects pgstash pools to PostgreSQL using pgx.
package pgdriver

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pgstash/pgstash/pkg/config"
	"github.com/pgstash/pgstash/pkg/pool"
)

// clientAttrs are the option keys handled client-side. They are recorded on
// the handle instead of being sent to the server.
var clientAttrs = map[string]bool{
	"AutoCommit": true,
	"PrintError": true,
	"RaiseError": true,
}

// Driver dials PostgreSQL connections for a pool. The zero value is ready
// to use.
type Driver struct{}

var _ pool.Connector = Driver{}

// Connect implements pool.Connector by dialing with pgx.
func (Driver) Connect(ctx context.Context, cfg *config.Config) (pool.Conn, error) {
	conn, err := pgx.Connect(ctx, ConnString(cfg))
	if err != nil {
		return nil, err
	}
	return &Handle{conn: conn, attrs: clientAttributes(cfg)}, nil
}

// ConnString renders a Config as a pgx keyword/value connection string.
// The address supplies dbname/host/port; credentials and any option key the
// driver does not handle client-side are appended as parameters (pgx
// forwards unrecognized keys to the server as runtime parameters). Option
// keys are emitted in sorted order so the result is deterministic.
func ConnString(cfg *config.Config) string {
	var b strings.Builder
	b.WriteString(cfg.Address())

	writeParam := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(quoteValue(value))
	}

	if cfg.User() != "" {
		writeParam("user", cfg.User())
	}
	if cfg.Password() != "" {
		writeParam("password", cfg.Password())
	}

	options := cfg.Options()
	for _, key := range slices.Sorted(maps.Keys(options)) {
		if clientAttrs[key] {
			continue
		}
		writeParam(key, options[key])
	}
	return b.String()
}

// quoteValue escapes a parameter value per the libpq keyword/value rules:
// values containing spaces, quotes or backslashes are single-quoted with
// backslash escapes. Empty values are quoted too.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// clientAttributes extracts the client-side attribute subset of the options.
func clientAttributes(cfg *config.Config) map[string]string {
	attrs := make(map[string]string, len(clientAttrs))
	for key, value := range cfg.Options() {
		if clientAttrs[key] {
			attrs[key] = value
		}
	}
	return attrs
}

// Handle is one pooled pgx connection.
type Handle struct {
	conn  *pgx.Conn
	attrs map[string]string
}

var _ pool.Conn = (*Handle)(nil)

// Conn exposes the underlying pgx connection for the query layer.
func (h *Handle) Conn() *pgx.Conn { return h.conn }

// Attr returns the client-side attribute recorded for key (AutoCommit,
// PrintError or RaiseError).
func (h *Handle) Attr(key string) (string, bool) {
	value, ok := h.attrs[key]
	return value, ok
}

// IsAlive pings the server and reports whether the round trip succeeded.
func (h *Handle) IsAlive(ctx context.Context) bool {
	return h.conn.Ping(ctx) == nil
}

// IsActive reports whether the connection has not been closed.
func (h *Handle) IsActive() bool { return !h.conn.IsClosed() }

// Close closes the underlying connection.
func (h *Handle) Close(ctx context.Context) error { return h.conn.Close(ctx) }
