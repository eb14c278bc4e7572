// Package config holds the connection configuration for a pgstash pool and
// builds it from postgresql:// connection URLs.
package config

import "maps"

// Defaults applied by New.
const (
	// DefaultAddress points at a local test database.
	DefaultAddress = "dbname=testdb"

	// DefaultCapacity bounds how many idle connections a pool caches.
	DefaultCapacity = 5
)

// defaultOptions returns a fresh copy of the default driver attributes.
func defaultOptions() map[string]string {
	return map[string]string{
		"AutoCommit": "1",
		"PrintError": "0",
		"RaiseError": "1",
	}
}

// Config is the connection configuration for one logical pool: where to
// connect, as whom, with which driver attributes, and how many idle
// connections to cache.
//
// Fields are set through the setters (or ApplyURL) before the pool is first
// used. Config does no synchronization of its own; callers mutating a Config
// shared across goroutines must synchronize externally.
type Config struct {
	address  string
	user     string
	password string
	options  map[string]string
	capacity int
}

// New returns a Config with the default address, empty credentials, the
// default attribute set (AutoCommit on, PrintError off, RaiseError on) and
// the default capacity.
func New() *Config {
	return &Config{
		address:  DefaultAddress,
		options:  defaultOptions(),
		capacity: DefaultCapacity,
	}
}

// Address returns the connection target as a keyword/value DSN
// (e.g. "dbname=db3 host=localhost port=5433").
func (c *Config) Address() string { return c.address }

// SetAddress replaces the connection target.
func (c *Config) SetAddress(address string) { c.address = address }

// User returns the username used for new connections.
func (c *Config) User() string { return c.user }

// SetUser replaces the username.
func (c *Config) SetUser(user string) { c.user = user }

// Password returns the password used for new connections.
func (c *Config) Password() string { return c.password }

// SetPassword replaces the password.
func (c *Config) SetPassword(password string) { c.password = password }

// Capacity returns the pool's capacity bound.
func (c *Config) Capacity() int { return c.capacity }

// SetCapacity replaces the pool's capacity bound.
func (c *Config) SetCapacity(capacity int) { c.capacity = capacity }

// Options returns a copy of the driver attribute map. Mutating the returned
// map does not affect the Config.
func (c *Config) Options() map[string]string {
	options := make(map[string]string, len(c.options))
	maps.Copy(options, c.options)
	return options
}

// Option returns the attribute recorded for key.
func (c *Config) Option(key string) (string, bool) {
	value, ok := c.options[key]
	return value, ok
}

// SetOption records a single driver attribute, replacing any prior value.
func (c *Config) SetOption(key, value string) {
	c.options[key] = value
}

// SetOptions overlays options onto the attribute map. On key collision the
// incoming value wins (last writer wins); keys absent from options keep
// their prior values.
func (c *Config) SetOptions(options map[string]string) {
	maps.Copy(c.options, options)
}
