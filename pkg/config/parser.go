// Package config loads the server's TOML configuration.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ashpect/webserv/pkg/errs"
)

const (
	defaultCacheCapacity = 128
	defaultIdleTimeout   = 60 * time.Second
	defaultSweepInterval = time.Second
	defaultBodySize      = 1 << 20
	defaultIndex         = "index.html"
)

var allowedMethods = map[string]bool{"GET": true, "HEAD": true, "POST": true, "DELETE": true}

func defaultSystemCfg() *SystemCfg {
	return &SystemCfg{
		Root:          "./www",
		CacheCapacity: defaultCacheCapacity,
		IdleTimeout:   defaultIdleTimeout,
		SweepInterval: defaultSweepInterval,
		LogFormat:     "text",
	}
}

// LoadConfig decodes the file at path over the defaults and validates it.
func LoadConfig(path string) (*SystemCfg, error) {
	cfg := defaultSystemCfg()
	md, err := toml.DecodeFile(path, cfg)
	return finish(cfg, "config.Load "+path, md, err)
}

// Parse is LoadConfig for an in-memory document.
func Parse(doc string) (*SystemCfg, error) {
	cfg := defaultSystemCfg()
	md, err := toml.Decode(doc, cfg)
	return finish(cfg, "config.Parse", md, err)
}

// finish rejects decode errors and unknown keys, then validates cfg.
func finish(cfg *SystemCfg, op string, md toml.MetaData, err error) (*SystemCfg, error) {
	if err != nil {
		return nil, errs.E(errs.Configuration, op, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errs.Configf(op, "unknown keys: %v", undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fills per-server and per-location defaults and rejects
// configurations the server cannot start with.
func (c *SystemCfg) Validate() error {
	const op = "config.Validate"
	if c.CacheCapacity < 0 {
		return errs.Configf(op, "cache_capacity must be >= 0, got %d", c.CacheCapacity)
	}
	if c.IdleTimeout <= 0 {
		return errs.Configf(op, "idle_timeout must be > 0")
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return errs.Configf(op, "log_format must be text or json, got %q", c.LogFormat)
	}
	if len(c.Servers) == 0 {
		return errs.Configf(op, "at least one [[server]] block is required")
	}

	for i := range c.Servers {
		s := &c.Servers[i]
		if s.Listen <= 0 || s.Listen > 65535 {
			return errs.Configf(op, "server %d: listen port %d out of range", i, s.Listen)
		}
		if s.ClientMaxBodySize < 0 {
			return errs.Configf(op, "server %d: client_max_body_size must be >= 0", i)
		}
		if s.ClientMaxBodySize == 0 {
			s.ClientMaxBodySize = defaultBodySize
		}
		for code := range s.ErrorPages {
			n, err := strconv.Atoi(code)
			if err != nil || n < 400 || n > 599 {
				return errs.Configf(op, "server %d: error page code %q must be 400..599", i, code)
			}
		}
		if len(s.Locations) == 0 {
			s.Locations = []LocationCfg{{Path: "/"}}
		}
		for j := range s.Locations {
			if err := c.validateLocation(&s.Locations[j]); err != nil {
				return errs.Configf(op, "server %d location %d: %v", i, j, err)
			}
		}
	}
	return nil
}

func (c *SystemCfg) validateLocation(l *LocationCfg) error {
	if !strings.HasPrefix(l.Path, "/") {
		return fmt.Errorf("path %q must start with /", l.Path)
	}
	if l.Root == "" {
		l.Root = c.Root
	}
	if l.Root == "" {
		return fmt.Errorf("no root for %q", l.Path)
	}
	if l.Index == "" {
		l.Index = defaultIndex
	}
	if len(l.Methods) == 0 {
		l.Methods = []string{"GET", "HEAD"}
	}
	for k, m := range l.Methods {
		m = strings.ToUpper(m)
		if !allowedMethods[m] {
			return fmt.Errorf("method %q not supported", m)
		}
		l.Methods[k] = m
	}
	return nil
}

// ErrorPage returns the custom page path configured for status, if any.
func (s *ServerCfg) ErrorPage(status int) (string, bool) {
	p, ok := s.ErrorPages[strconv.Itoa(status)]
	return p, ok
}

// Allows reports whether method is permitted in this location.
func (l *LocationCfg) Allows(method string) bool {
	for _, m := range l.Methods {
		if m == method {
			return true
		}
	}
	return false
}
