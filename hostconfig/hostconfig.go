// Package hostconfig describes the static set of Redis shard endpoints a
// cluster client is configured with: the HostMap never mutates after
// construction, and every host_name a router ever produces must exist in it.
package hostconfig

// TLSOptions configures the optional TLS wrapping of a TCP connection to a
// shard. Unlike the original's opaque "ssl_options" bag, Go's crypto/tls
// needs concrete material, so this is a concrete struct.
type TLSOptions struct {
	InsecureSkipVerify bool
	ServerName         string
	CAFile             string
	CertFile           string
	KeyFile            string
}

// HostConfig is the immutable description of one Redis shard endpoint.
// HostName is the identifier used everywhere else in the library (routing,
// pool lookups, buffer labeling); it need not match Host/Port.
type HostConfig struct {
	HostName       string
	Host           string // ignored when UnixSocketPath is set
	Port           int    // ignored when UnixSocketPath is set
	UnixSocketPath string
	DB             int
	Password       string
	SSL            bool
	SSLOptions     *TLSOptions
}

// String returns HostName, the identity a HostConfig goes by everywhere
// else (the consistent router builds its ring over host names).
func (h HostConfig) String() string {
	return h.HostName
}

// HostMap is the static mapping of host_name to its configuration. It is
// built once at construction and never mutated.
type HostMap map[string]HostConfig

// Names returns the host names in the map, order unspecified.
func (m HostMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}
