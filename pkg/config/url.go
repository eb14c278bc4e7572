package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL reports a malformed or non-postgresql connection URL.
var ErrInvalidURL = errors.New("invalid connection string")

// scheme is the only protocol token accepted by ApplyURL.
const scheme = "postgresql"

// ApplyURL parses a connection URL of the form
//
//	postgresql://[user[:password]@][host][:port]/database[?opt1=v1&opt2=v2]
//
// and applies it to the Config. An empty URL is a no-op. Application is
// all-or-nothing: every component is extracted and validated before any
// field is assigned, so on error the Config is exactly as it was before the
// call. Applying the same URL twice is idempotent.
//
// The address is rebuilt from the URL as "dbname=<database> host=<host>
// port=<port>", omitting absent components. The host may be percent-encoded
// to name a unix socket path (e.g. %2ftmp%2fpg.sock for /tmp/pg.sock).
// Userinfo of the form "user" or "user:password" sets the matching fields;
// absent userinfo leaves them untouched. Query parameters overlay the
// options map, last writer wins.
func (c *Config) ApplyURL(raw string) error {
	if raw == "" {
		return nil
	}

	parsed, err := parseURL(raw)
	if err != nil {
		return err
	}

	c.address = parsed.address()
	if parsed.user != "" {
		c.user = parsed.user
	}
	if parsed.hasPassword {
		c.password = parsed.password
	}
	c.SetOptions(parsed.options)
	return nil
}

// parsedURL is the staging area for ApplyURL: the whole URL is decomposed
// and decoded here before any Config field is touched.
type parsedURL struct {
	database    string
	host        string
	port        string
	user        string
	password    string
	hasPassword bool
	options     map[string]string
}

// address renders the connection target as a keyword/value DSN, skipping
// absent components.
func (p *parsedURL) address() string {
	parts := make([]string, 0, 3)
	if p.database != "" {
		parts = append(parts, "dbname="+p.database)
	}
	if p.host != "" {
		parts = append(parts, "host="+p.host)
	}
	if p.port != "" {
		parts = append(parts, "port="+p.port)
	}
	return strings.Join(parts, " ")
}

// parseURL splits the URL by hand. net/url.Parse cannot be used wholesale
// here: it rejects percent-encoded ASCII in the host component, which this
// grammar requires for socket paths. net/url still does the unescaping and
// query parsing.
func parseURL(raw string) (*parsedURL, error) {
	rest, ok := strings.CutPrefix(raw, scheme+"://")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	rest, query, _ := strings.Cut(rest, "?")
	authority, path, _ := strings.Cut(rest, "/")

	var p parsedURL
	var err error

	hostport := authority
	if userinfo, after, found := cutLast(authority, "@"); found {
		hostport = after
		name, password, hasPassword := strings.Cut(userinfo, ":")
		if p.user, err = url.PathUnescape(name); err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrInvalidURL, err)
		}
		if hasPassword {
			p.hasPassword = true
			if p.password, err = url.PathUnescape(password); err != nil {
				return nil, fmt.Errorf("%w: password: %v", ErrInvalidURL, err)
			}
		}
	}

	host := hostport
	if before, after, found := cutLast(hostport, ":"); found && isPort(after) {
		host, p.port = before, after
	}
	if p.host, err = url.PathUnescape(host); err != nil {
		return nil, fmt.Errorf("%w: host: %v", ErrInvalidURL, err)
	}

	// Database name is the first path segment.
	database, _, _ := strings.Cut(path, "/")
	if p.database, err = url.PathUnescape(database); err != nil {
		return nil, fmt.Errorf("%w: database: %v", ErrInvalidURL, err)
	}

	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return nil, fmt.Errorf("%w: query: %v", ErrInvalidURL, err)
		}
		p.options = make(map[string]string, len(values))
		for key, vals := range values {
			// Duplicate keys within one query string: last writer wins.
			p.options[key] = vals[len(vals)-1]
		}
	}

	return &p, nil
}

// cutLast slices s around the last instance of sep.
func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// isPort reports whether s is a non-empty decimal port number.
func isPort(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
