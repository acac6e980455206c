// Package netutil provides IPv4 range enumeration and TCP port scanning.
package netutil

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"
)

// MaxHosts bounds how many addresses one scan may enumerate.
const MaxHosts = 1 << 16

// ErrRangeTooLarge is returned for ranges larger than MaxHosts.
var ErrRangeTooLarge = errors.New("address range too large")

// ParseCIDR parses a CIDR notation string and returns all IP addresses in the range.
// Example: "192.168.1.0/24" returns all 254 usable IPs (excludes network and broadcast).
func ParseCIDR(cidr string) ([]string, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR: %w", err)
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("only IPv4 networks are supported: %s", cidr)
	}
	ip = ip.To4()
	if ones, bits := ipnet.Mask.Size(); bits-ones > 16 {
		return nil, fmt.Errorf("%w: %s", ErrRangeTooLarge, cidr)
	}

	var ips []string
	for ip := ip.Mask(ipnet.Mask); ipnet.Contains(ip); incIP(ip) {
		ips = append(ips, ip.String())
	}

	// Remove network address and broadcast address for IPv4
	if len(ips) > 2 {
		return ips[1 : len(ips)-1], nil
	}

	return ips, nil
}

// ParseTarget accepts either a CIDR ("192.168.1.0/24") or an inclusive
// range ("192.168.1.10-192.168.1.40").
func ParseTarget(target string) ([]string, error) {
	if start, end, ok := strings.Cut(target, "-"); ok {
		return ParseRange(strings.TrimSpace(start), strings.TrimSpace(end))
	}
	if !strings.Contains(target, "/") {
		if ip := net.ParseIP(target); ip != nil && ip.To4() != nil {
			return []string{ip.String()}, nil
		}
	}
	return ParseCIDR(strings.TrimSpace(target))
}

// ParseRange parses an IP range and returns all IPs between start and end (inclusive).
// Example: "192.168.1.1", "192.168.1.10" returns 10 IPs.
func ParseRange(startIP, endIP string) ([]string, error) {
	start := net.ParseIP(startIP)
	if start == nil {
		return nil, fmt.Errorf("invalid start IP: %s", startIP)
	}

	end := net.ParseIP(endIP)
	if end == nil {
		return nil, fmt.Errorf("invalid end IP: %s", endIP)
	}

	start = start.To4()
	end = end.To4()

	if start == nil || end == nil {
		return nil, fmt.Errorf("only IPv4 addresses are supported")
	}

	startInt := ipToUint32(start)
	endInt := ipToUint32(end)

	if startInt > endInt {
		return nil, fmt.Errorf("start IP must be less than or equal to end IP")
	}
	if endInt-startInt >= MaxHosts {
		return nil, fmt.Errorf("%w: %s-%s", ErrRangeTooLarge, startIP, endIP)
	}

	ips := make([]string, 0, endInt-startInt+1)
	for n := uint64(startInt); n <= uint64(endInt); n++ {
		ips = append(ips, uint32ToIP(uint32(n)).String())
	}

	return ips, nil
}

// incIP increments an IP address by one.
func incIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

// ipToUint32 converts an IPv4 address to a uint32.
func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	return binary.BigEndian.Uint32(ip)
}

// uint32ToIP converts a uint32 to an IPv4 address.
func uint32ToIP(n uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, n)
	return ip
}
