package conn

import (
	"net"
	"strings"
	"time"
)

// Config describes one named database connection.
//
// With Deploy set, Hostname and Hostport may hold comma separated lists; the
// first MasterNum hosts are masters and the rest serve reads when RWSeparate
// is on. Credentials are shared by every host.
type Config struct {
	Type     string // registered driver type: mysql, postgres, sqlite, sqlite3
	Hostname string
	Hostport string
	Socket   string
	Database string
	Username string
	Password string
	Charset  string
	Prefix   string
	Params   map[string]string

	Deploy     bool
	RWSeparate bool
	MasterNum  int
	SlaveNo    int // 1-based read host; 0 picks at random
	ReadMaster bool

	BreakReconnect bool
	BreakMatchStr  []string

	Debug bool
	// Explain logs the plan of every SELECT while Debug is on.
	Explain bool

	Timeout      time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// StmtCache is the number of prepared statements cached per handle;
	// zero disables statement caching.
	StmtCache int
}

// Host is one database endpoint.
type Host struct {
	Name string
	Port string
}

// Addr returns host:port, or only the host when no port is set.
func (h Host) Addr() string {
	if h.Port == "" {
		return h.Name
	}
	return net.JoinHostPort(h.Name, h.Port)
}

// Hosts splits Hostname and Hostport into endpoints. A missing port entry
// falls back to the first port.
func (c *Config) Hosts() []Host {
	names := splitList(c.Hostname)
	if len(names) == 0 {
		names = []string{""}
	}
	ports := splitList(c.Hostport)

	hosts := make([]Host, len(names))
	for i, name := range names {
		h := Host{Name: name}
		switch {
		case i < len(ports):
			h.Port = ports[i]
		case len(ports) > 0:
			h.Port = ports[0]
		}
		hosts[i] = h
	}
	return hosts
}

func (c *Config) masterNum() int {
	if c.MasterNum <= 0 {
		return 1
	}
	return c.MasterNum
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
