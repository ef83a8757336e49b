package datacall

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"net"
	"net/netip"
	"os"
	"strings"
)

const (
	DefaultInterface = "ppp0"
	DefaultRouteFile = "/proc/net/route"
)

// Link is the observed state of the packet interface.
type Link struct {
	Up      bool
	Address string
	Gateway string
}

// LinkProber inspects a network interface.
type LinkProber interface {
	Probe(ifname string) (Link, error)
}

// NetProber reads interface flags and addresses from the kernel and the
// default gateway from the IPv4 routing table.
type NetProber struct {
	RouteFile string
}

// Probe reports a missing interface as down.
func (p NetProber) Probe(ifname string) (Link, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		// pppd has not created the interface yet
		return Link{}, nil
	}
	link := Link{Up: iface.Flags&net.FlagUp != 0}
	if !link.Up {
		return link, nil
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return link, err
	}
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err == nil && prefix.Addr().Is4() {
			link.Address = prefix.Addr().String()
			break
		}
	}

	routes := p.RouteFile
	if routes == "" {
		routes = DefaultRouteFile
	}
	link.Gateway, err = defaultGateway(routes, ifname)
	return link, err
}

// defaultGateway finds the default route of ifname in a /proc/net/route
// style table. An interface without a default route yields 0.0.0.0.
func defaultGateway(path, ifname string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// header
	scanner.Scan()
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[0] != ifname || fields[1] != "00000000" {
			continue
		}
		return routeAddr(fields[2])
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return netip.IPv4Unspecified().String(), nil
}

// routeAddr decodes the host-order hex address used by the kernel routing
// table.
func routeAddr(field string) (string, error) {
	raw, err := hex.DecodeString(field)
	if err != nil || len(raw) != 4 {
		return "", errors.New("malformed route address " + field)
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], binary.LittleEndian.Uint32(raw))
	return netip.AddrFrom4(b).String(), nil
}
