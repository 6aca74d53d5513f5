package probes

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/util"
)

// ErrNoRecord is returned when a name has no answer of the asked type.
var ErrNoRecord = errors.New("no such record")

// Answer is the resolution of one name.
type Answer struct {
	Addresses []net.IP
	CNAME     string
}

// Resolver performs the DNS lookups the engine needs.
type Resolver interface {
	// Resolve returns the A and AAAA addresses of name, following CNAMEs.
	Resolve(ctx context.Context, name string) (Answer, error)
	// LookupAddr returns the first PTR name of ip.
	LookupAddr(ctx context.Context, ip net.IP) (string, error)
	// Records returns the base record set of a domain.
	Records(ctx context.Context, domain string) ([]model.DNSRecord, error)
}

const (
	defaultResolvConf = "/etc/resolv.conf"
	fallbackServer    = "1.1.1.1:53"
)

// DNSResolver talks to one recursive server over UDP, retrying over TCP
// when the answer is truncated.
type DNSResolver struct {
	server string
	client *dns.Client
}

// NewDNSResolver returns a resolver for server ("host:port"). An empty
// server means the first nameserver of the system configuration.
func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if server == "" {
		server = systemServer()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &DNSResolver{
		server: server,
		client: &dns.Client{Timeout: timeout},
	}
}

// Server returns the address queries are sent to.
func (r *DNSResolver) Server() string {
	return r.server
}

func systemServer() string {
	cfg, err := dns.ClientConfigFromFile(defaultResolvConf)
	if err != nil || len(cfg.Servers) == 0 {
		util.Warn("no system resolver configured, using %s", fallbackServer)
		return fallbackServer
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}

func (r *DNSResolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err == nil && in.Truncated {
		tcp := &dns.Client{Net: "tcp", Timeout: r.client.Timeout}
		in, _, err = tcp.ExchangeContext(ctx, m, r.server)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s %s: %w", dns.TypeToString[qtype], name, err)
	}
	switch in.Rcode {
	case dns.RcodeSuccess:
		return in, nil
	case dns.RcodeNameError:
		return nil, ErrNoRecord
	}
	return nil, fmt.Errorf("query %s %s: %s", dns.TypeToString[qtype], name, dns.RcodeToString[in.Rcode])
}

// Resolve implements Resolver.
func (r *DNSResolver) Resolve(ctx context.Context, name string) (Answer, error) {
	var ans Answer
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		in, err := r.exchange(ctx, name, qtype)
		if err != nil {
			if errors.Is(err, ErrNoRecord) {
				return Answer{}, err
			}
			util.Debug("resolve %s: %v", name, err)
			continue
		}
		for _, rr := range in.Answer {
			switch v := rr.(type) {
			case *dns.A:
				ans.Addresses = append(ans.Addresses, v.A)
			case *dns.AAAA:
				ans.Addresses = append(ans.Addresses, v.AAAA)
			case *dns.CNAME:
				if ans.CNAME == "" {
					ans.CNAME = strings.TrimSuffix(v.Target, ".")
				}
			}
		}
	}
	if len(ans.Addresses) == 0 {
		return ans, ErrNoRecord
	}
	return ans, nil
}

// LookupAddr implements Resolver.
func (r *DNSResolver) LookupAddr(ctx context.Context, ip net.IP) (string, error) {
	arpa, err := dns.ReverseAddr(ip.String())
	if err != nil {
		return "", err
	}
	in, err := r.exchange(ctx, arpa, dns.TypePTR)
	if err != nil {
		return "", err
	}
	for _, rr := range in.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", ErrNoRecord
}

var recordTypes = []uint16{
	dns.TypeA, dns.TypeAAAA, dns.TypeCNAME, dns.TypeMX, dns.TypeNS, dns.TypeTXT, dns.TypeSOA,
}

// Records implements Resolver.
func (r *DNSResolver) Records(ctx context.Context, domain string) ([]model.DNSRecord, error) {
	var out []model.DNSRecord
	for _, qtype := range recordTypes {
		in, err := r.exchange(ctx, domain, qtype)
		if err != nil {
			if errors.Is(err, ErrNoRecord) {
				return out, nil
			}
			util.Debug("records %s: %v", domain, err)
			continue
		}
		for _, rr := range in.Answer {
			if rr.Header().Rrtype != qtype {
				continue
			}
			out = append(out, model.DNSRecord{
				Type:  dns.TypeToString[qtype],
				Name:  strings.TrimSuffix(rr.Header().Name, "."),
				Value: recordValue(rr),
				TTL:   rr.Header().Ttl,
			})
		}
	}
	return out, nil
}

func recordValue(rr dns.RR) string {
	switch v := rr.(type) {
	case *dns.A:
		return v.A.String()
	case *dns.AAAA:
		return v.AAAA.String()
	case *dns.CNAME:
		return strings.TrimSuffix(v.Target, ".")
	case *dns.MX:
		return fmt.Sprintf("%d %s", v.Preference, strings.TrimSuffix(v.Mx, "."))
	case *dns.NS:
		return strings.TrimSuffix(v.Ns, ".")
	case *dns.TXT:
		return strings.Join(v.Txt, " ")
	case *dns.SOA:
		return fmt.Sprintf("%s %s %d", strings.TrimSuffix(v.Ns, "."), strings.TrimSuffix(v.Mbox, "."), v.Serial)
	}
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}
