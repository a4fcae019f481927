package channel

import (
	"net"
	"path"
	"strings"

	"github.com/dnp3go/dnp3/pkg/config"
)

// matchAddressFilter reports whether remoteHost satisfies f: any, an
// exact match, a subnet, or a wildcard pattern, for outstation listeners.
func matchAddressFilter(f config.AddressFilter, remoteHost string) bool {
	switch f.Kind {
	case config.FilterAny:
		return true
	case config.FilterExact:
		return remoteHost == f.Pattern
	case config.FilterSubnet:
		_, ipnet, err := net.ParseCIDR(f.Pattern)
		if err != nil {
			return false
		}
		ip := net.ParseIP(remoteHost)
		return ip != nil && ipnet.Contains(ip)
	case config.FilterWildcard:
		ok, err := path.Match(f.Pattern, remoteHost)
		return err == nil && ok
	default:
		return false
	}
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.TrimSpace(addr)
	}
	return host
}
