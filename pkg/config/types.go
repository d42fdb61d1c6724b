package config

import "time"

// LocationCfg maps a URL prefix to a directory.
type LocationCfg struct {
	Path      string   `toml:"path"`
	Root      string   `toml:"root"`
	Index     string   `toml:"index"`
	Autoindex bool     `toml:"autoindex"`
	Methods   []string `toml:"methods"`
	CGI       bool     `toml:"cgi"`
}

// ServerCfg is one virtual server bound to a port.
type ServerCfg struct {
	Listen            int               `toml:"listen"`
	Host              string            `toml:"host"`
	ServerName        string            `toml:"server_name"`
	ClientMaxBodySize int64             `toml:"client_max_body_size"`
	ErrorPages        map[string]string `toml:"error_pages"`
	Locations         []LocationCfg     `toml:"location"`
}

type SystemCfg struct {
	Root          string        `toml:"root"`
	CacheCapacity int           `toml:"cache_capacity"`
	IdleTimeout   time.Duration `toml:"idle_timeout"`
	SweepInterval time.Duration `toml:"sweep_interval"`
	LogLevel      string        `toml:"log_level"`
	LogFormat     string        `toml:"log_format"`
	MetricsAddr   string        `toml:"metrics_addr"`
	Servers       []ServerCfg   `toml:"server"`
}
