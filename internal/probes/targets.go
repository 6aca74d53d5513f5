package probes

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/user/netrecon/internal/scanerr"
)

// Target is one resolved address with the name it was given as, if any.
type Target struct {
	Name string
	IP   net.IP
}

func (t Target) String() string {
	if t.Name != "" && t.Name != t.IP.String() {
		return fmt.Sprintf("%s (%s)", t.Name, t.IP)
	}
	return t.IP.String()
}

// ExpandTargets turns target specs into a deduplicated, ordered address list.
// CIDR ranges are expanded and hostnames are resolved to their first IPv4
// address. Names that do not resolve are invalid targets.
func ExpandTargets(ctx context.Context, specs []string, res Resolver) ([]Target, error) {
	var out []Target
	seen := make(map[string]struct{})
	add := func(t Target) {
		key := t.IP.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}

	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		switch {
		case strings.Contains(spec, "/"):
			ips, err := expandCIDR(spec)
			if err != nil {
				return nil, scanerr.InvalidTarget(spec, err)
			}
			for _, ip := range ips {
				add(Target{IP: ip})
			}
		case net.ParseIP(spec) != nil:
			ip := net.ParseIP(spec).To4()
			if ip == nil {
				return nil, scanerr.InvalidTarget(spec, fmt.Errorf("not an IPv4 address"))
			}
			add(Target{IP: ip})
		default:
			ip, err := resolveIPv4(ctx, spec, res)
			if err != nil {
				return nil, scanerr.InvalidTarget(spec, err)
			}
			add(Target{Name: spec, IP: ip})
		}
	}
	if len(out) == 0 {
		return nil, scanerr.Config("target list expands to no addresses")
	}
	return out, nil
}

func resolveIPv4(ctx context.Context, name string, res Resolver) (net.IP, error) {
	ans, err := res.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, ip := range ans.Addresses {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("%s has no IPv4 address", name)
}

// expandCIDR expands a CIDR to its host addresses. Network and broadcast
// addresses are dropped for ranges with more than two addresses.
func expandCIDR(cidr string) ([]net.IP, error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}
	if ip.To4() == nil {
		return nil, fmt.Errorf("not an IPv4 range")
	}

	var ips []net.IP
	for cur := ip.Mask(ipnet.Mask).To4(); ipnet.Contains(cur); incIP(cur) {
		ips = append(ips, append(net.IP(nil), cur...))
	}
	if len(ips) > 2 {
		ips = ips[1 : len(ips)-1]
	}
	return ips, nil
}

func incIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}
