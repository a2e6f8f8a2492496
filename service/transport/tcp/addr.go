package tcp

import (
	"fmt"
	"github.com/ValentinKolb/dEcho/service/common"
	"net"
	"strconv"
)

// unknownPeer is logged for peers whose address cannot be formatted
const unknownPeer = "unknown"

// FormatPeer renders a peer address into its numeric host and port.
// Only IPv4 and IPv6 addresses can be formatted, everything else yields
// common.ErrUnformattable. IPv6 hosts keep their zone (fe80::1%eth0).
// Safe for concurrent use.
func FormatPeer(addr net.Addr) (host string, port int, err error) {
	var ip net.IP
	var zone string

	switch a := addr.(type) {
	case *net.TCPAddr:
		if a == nil {
			return "", 0, common.ErrUnformattable
		}
		ip, port, zone = a.IP, a.Port, a.Zone
	case *net.UDPAddr:
		if a == nil {
			return "", 0, common.ErrUnformattable
		}
		ip, port, zone = a.IP, a.Port, a.Zone
	case *net.IPAddr:
		if a == nil {
			return "", 0, common.ErrUnformattable
		}
		ip, zone = a.IP, a.Zone
	default:
		return "", 0, fmt.Errorf("%w: unsupported address type %T", common.ErrUnformattable, addr)
	}

	if ip4 := ip.To4(); ip4 != nil {
		return ip4.String(), port, nil
	}
	if len(ip) == net.IPv6len {
		if zone != "" {
			return ip.String() + "%" + zone, port, nil
		}
		return ip.String(), port, nil
	}
	return "", 0, fmt.Errorf("%w: invalid ip length %d", common.ErrUnformattable, len(ip))
}

// PeerString renders addr as "host:port" (IPv6 hosts in brackets) or "unknown"
func PeerString(addr net.Addr) string {
	host, port, err := FormatPeer(addr)
	if err != nil {
		return unknownPeer
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
