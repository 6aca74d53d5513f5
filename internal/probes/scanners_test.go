package probes

import (
	"context"
	"fmt"
	"net"
	"sort"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netrecon/internal/model"
	"github.com/user/netrecon/internal/scanerr"
	"github.com/user/netrecon/internal/sigdb"
)

func newTestEngine(t *testing.T, tr Transport, res Resolver) *Engine {
	t.Helper()
	db, err := sigdb.Default()
	require.NoError(t, err)
	if res == nil {
		res = &mapResolver{}
	}
	return NewEngine(tr, res, db)
}

func TestPortScanConnectScenario(t *testing.T) {
	target := net.ParseIP("10.0.0.5").To4()
	tr := &scriptedTransport{handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
		switch spec.Kind {
		case ProbeICMPEcho:
			out := responded(ReplyEchoReply, ip)
			out.TTL = 57
			return out, nil
		case ProbeTCPConnect:
		default:
			return Outcome{}, fmt.Errorf("unexpected probe %s", spec.Kind)
		}
		switch spec.Port {
		case 22:
			return responded(ReplyReset, ip), nil
		case 80:
			out := responded(ReplyConnected, ip)
			if string(spec.Payload) == "GET / HTTP/1.0\r\n\r\n" {
				out.Payload = []byte("HTTP/1.1 200 OK\r\nServer: nginx/1.18.0\r\n\r\n")
			}
			return out, nil
		}
		return timedOut("deadline"), nil
	}}
	e := newTestEngine(t, tr, nil)

	cfg := model.DefaultScanConfig()
	cfg.Targets = []string{target.String()}
	cfg.Ports = []int{22, 80, 443}
	cfg.ServiceDetection = true
	cfg.OSDetection = true

	res, events, err := collect(func(ctx context.Context, r *Reporter) (*model.PortScanResult, error) {
		return e.PortScan(ctx, cfg, r)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"START_PORTSCAN", "END_PORTSCAN",
		"START_SERVICEDETECTION", "END_SERVICEDETECTION",
		"START_OSDETECTION", "END_OSDETECTION",
	}, tags(events))

	require.Len(t, res.Hosts, 1)
	host := res.Hosts[0]
	assert.Equal(t, "10.0.0.5", host.IP)
	assert.Equal(t, 57, host.TTL)
	assert.Equal(t, "Linux/Unix", host.OS)

	require.Len(t, host.Ports, 3)
	assert.Equal(t, model.PortEntry{Port: 22, Protocol: model.ProtocolTCP, State: model.StateClosed, RTTMs: 2}, host.Ports[0])
	assert.Equal(t, 80, host.Ports[1].Port)
	assert.Equal(t, model.StateOpen, host.Ports[1].State)
	assert.Equal(t, "http", host.Ports[1].Service)
	assert.Equal(t, "nginx/1.18.0", host.Ports[1].Version)
	assert.Equal(t, "HTTP/1.1 200 OK", host.Ports[1].Banner)
	assert.Equal(t, model.PortEntry{Port: 443, Protocol: model.ProtocolTCP, State: model.StateFiltered}, host.Ports[2])

	assert.NotEmpty(t, res.ProbeID)
	assert.Equal(t, model.KindPortScan, res.Kind)
}

func TestPortScanReverseLookup(t *testing.T) {
	tr := &scriptedTransport{handle: func(net.IP, ProbeSpec) (Outcome, error) {
		return timedOut("deadline"), nil
	}}
	res := &mapResolver{
		hosts: map[string][]net.IP{"db.lan": {net.ParseIP("10.0.0.6").To4()}},
		ptr:   map[string]string{"10.0.0.5": "web.lan", "10.0.0.6": "db-01.lan"},
	}
	e := newTestEngine(t, tr, res)

	cfg := model.DefaultScanConfig()
	cfg.Targets = []string{"10.0.0.5", "db.lan", "10.0.0.7"}
	cfg.Ports = []int{80}

	tests := []struct {
		name   string
		lookup bool
		want   []string
	}{
		{name: "enabled", lookup: true, want: []string{"web.lan", "db.lan", ""}},
		{name: "disabled", lookup: false, want: []string{"", "db.lan", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.ReverseLookup = tt.lookup
			result, events, err := collect(func(ctx context.Context, r *Reporter) (*model.PortScanResult, error) {
				return e.PortScan(ctx, cfg, r)
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"START_PORTSCAN", "END_PORTSCAN"}, tags(events))

			require.Len(t, result.Hosts, 3)
			for i, want := range tt.want {
				assert.Equal(t, want, result.Hosts[i].Hostname, result.Hosts[i].IP)
			}
		})
	}
}

func TestPortScanEntryCountAndOrder(t *testing.T) {
	tr := &scriptedTransport{
		delay: time.Millisecond,
		handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
			switch spec.Port % 3 {
			case 0:
				return responded(ReplyConnected, ip), nil
			case 1:
				return responded(ReplyReset, ip), nil
			}
			return timedOut("deadline"), nil
		},
	}
	e := newTestEngine(t, tr, nil)

	cfg := model.DefaultScanConfig()
	cfg.Targets = []string{"10.0.0.1", "10.0.0.2"}
	cfg.Ports = make([]int, 0, 60)
	for p := 1; p <= 60; p++ {
		cfg.Ports = append(cfg.Ports, p)
	}
	cfg.Concurrency = 4

	res, err := e.PortScan(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, res.Hosts, 2)

	for _, h := range res.Hosts {
		require.Len(t, h.Ports, len(cfg.Ports))
		assert.True(t, sort.SliceIsSorted(h.Ports, func(a, b int) bool {
			return h.Ports[a].Port < h.Ports[b].Port
		}))
		for _, p := range h.Ports {
			assert.Contains(t, []model.PortState{model.StateOpen, model.StateClosed, model.StateFiltered}, p.State)
		}
	}
	assert.LessOrEqual(t, tr.peak.Load(), int64(cfg.Concurrency))
}

func TestPortScanUDP(t *testing.T) {
	dnsAnswer := []byte{0x00, 0x00, 0x81, 0x80}
	tr := &scriptedTransport{handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
		switch spec.Port {
		case 53:
			assert.NotEmpty(t, spec.Payload)
			out := responded(ReplyData, ip)
			out.Payload = dnsAnswer
			return out, nil
		case 161:
			return responded(ReplyPortUnreachable, ip), nil
		case 7:
			return unreachable("host unreachable"), nil
		}
		return timedOut("deadline"), nil
	}}
	e := newTestEngine(t, tr, nil)

	cfg := model.DefaultScanConfig()
	cfg.Technique = model.TechniqueUDP
	cfg.Targets = []string{"10.0.0.9"}
	cfg.Ports = []int{7, 53, 161, 9999}
	cfg.ServiceDetection = true

	res, err := e.PortScan(context.Background(), cfg, nil)
	require.NoError(t, err)

	ports := res.Hosts[0].Ports
	require.Len(t, ports, 4)
	assert.Equal(t, model.StateFiltered, ports[0].State)
	assert.Equal(t, model.StateOpen, ports[1].State)
	assert.Equal(t, "dns", ports[1].Service)
	assert.Equal(t, model.StateClosed, ports[2].State)
	assert.Equal(t, model.StateOpenFiltered, ports[3].State)
	for _, p := range ports {
		assert.Equal(t, model.ProtocolUDP, p.Protocol)
	}
	assert.Empty(t, tr.callsOf(ProbeTCPConnect))
}

func TestPortScanErrors(t *testing.T) {
	t.Run("configuration error before probing", func(t *testing.T) {
		tr := &scriptedTransport{handle: func(net.IP, ProbeSpec) (Outcome, error) {
			assert.Fail(t, "no probe expected")
			return Outcome{}, nil
		}}
		e := newTestEngine(t, tr, nil)
		cfg := model.DefaultScanConfig()
		cfg.Targets = []string{"10.0.0.1"}

		_, err := e.PortScan(context.Background(), cfg, nil)
		assert.True(t, scanerr.IsConfig(err))
	})

	t.Run("privilege error aborts", func(t *testing.T) {
		tr := &scriptedTransport{handle: func(net.IP, ProbeSpec) (Outcome, error) {
			return Outcome{}, scanerr.Privilege("raw TCP socket", syscall.EPERM)
		}}
		e := newTestEngine(t, tr, nil)
		cfg := model.DefaultScanConfig()
		cfg.Technique = model.TechniqueSYN
		cfg.Targets = []string{"10.0.0.1"}
		cfg.Ports = []int{22, 80}

		res, err := e.PortScan(context.Background(), cfg, nil)
		assert.Nil(t, res)
		assert.True(t, scanerr.IsPrivilege(err))
	})

	t.Run("unresolvable hostname", func(t *testing.T) {
		e := newTestEngine(t, &scriptedTransport{}, nil)
		cfg := model.DefaultScanConfig()
		cfg.Targets = []string{"nowhere.invalid"}
		cfg.Ports = []int{80}

		_, err := e.PortScan(context.Background(), cfg, nil)
		assert.Equal(t, scanerr.CodeTargetInvalid, scanerr.CodeOf(err))
	})
}

func TestClassifyPort(t *testing.T) {
	tests := []struct {
		technique model.Technique
		out       Outcome
		want      model.PortState
	}{
		{model.TechniqueConnect, Outcome{Status: StatusResponded, Reply: ReplyConnected}, model.StateOpen},
		{model.TechniqueConnect, Outcome{Status: StatusResponded, Reply: ReplyReset}, model.StateClosed},
		{model.TechniqueConnect, Outcome{Status: StatusTimedOut}, model.StateFiltered},
		{model.TechniqueConnect, Outcome{Status: StatusUnreachable}, model.StateFiltered},
		{model.TechniqueSYN, Outcome{Status: StatusResponded, Reply: ReplySynAck}, model.StateOpen},
		{model.TechniqueSYN, Outcome{Status: StatusResponded, Reply: ReplyReset}, model.StateClosed},
		{model.TechniqueSYN, Outcome{Status: StatusTimedOut}, model.StateFiltered},
		{model.TechniqueUDP, Outcome{Status: StatusResponded, Reply: ReplyData}, model.StateOpen},
		{model.TechniqueUDP, Outcome{Status: StatusResponded, Reply: ReplyPortUnreachable}, model.StateClosed},
		{model.TechniqueUDP, Outcome{Status: StatusTimedOut}, model.StateOpenFiltered},
		{model.TechniqueUDP, Outcome{Status: StatusUnreachable}, model.StateFiltered},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("%s/%s/%d", tt.technique, tt.out.Status, tt.out.Reply)
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPort(tt.technique, tt.out))
		})
	}
}

func TestHostScanARPSweep(t *testing.T) {
	vmware, _ := net.ParseMAC("00:50:56:aa:bb:cc")
	pi, _ := net.ParseMAC("b8:27:eb:01:02:03")

	tr := &scriptedTransport{handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
		last := ip.To4()[3]
		switch spec.Kind {
		case ProbeARP:
			switch last {
			case 1:
				out := responded(ReplyARP, ip)
				out.MAC = vmware
				return out, nil
			case 3:
				out := responded(ReplyARP, ip)
				out.MAC = pi
				return out, nil
			case 5:
				return Outcome{Status: StatusUnreachable, Reason: ReasonNotOnLink}, nil
			}
			return timedOut("no arp reply"), nil
		case ProbeICMPEcho:
			switch last {
			case 1:
				out := responded(ReplyEchoReply, ip)
				out.TTL = 64
				return out, nil
			case 5:
				out := responded(ReplyEchoReply, ip)
				out.TTL = 120
				return out, nil
			}
			return timedOut("no echo reply"), nil
		}
		return Outcome{}, fmt.Errorf("unexpected probe %s", spec.Kind)
	}}
	res := &mapResolver{ptr: map[string]string{"192.168.1.1": "router.lan"}}
	e := newTestEngine(t, tr, res)

	cfg := model.DefaultScanConfig()
	cfg.Technique = model.TechniqueARPSweep
	cfg.Targets = []string{"192.168.1.0/29"}
	cfg.OSDetection = true

	result, events, err := collect(func(ctx context.Context, r *Reporter) (*model.HostScanResult, error) {
		return e.HostScan(ctx, cfg, r)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"START_HOSTSCAN", "END_HOSTSCAN",
		"START_LOOKUP", "END_LOOKUP",
		"START_OSDETECTION", "END_OSDETECTION",
	}, tags(events))

	require.Len(t, result.Hosts, 3)
	assert.Equal(t, model.Host{
		IP: "192.168.1.1", MAC: "00:50:56:aa:bb:cc", Vendor: "VMware, Inc.",
		Hostname: "router.lan", TTL: 64, OS: "Linux/Unix", RTTMs: 2,
	}, result.Hosts[0])

	assert.Equal(t, "192.168.1.3", result.Hosts[1].IP)
	assert.Equal(t, "Raspberry Pi Foundation", result.Hosts[1].Vendor)
	assert.Empty(t, result.Hosts[1].OS)
	assert.Empty(t, result.Hosts[1].Hostname)

	assert.Equal(t, "192.168.1.5", result.Hosts[2].IP)
	assert.Empty(t, result.Hosts[2].MAC)
	assert.Equal(t, 120, result.Hosts[2].TTL)
	assert.Equal(t, "Windows", result.Hosts[2].OS)

	// One ARP request per address in the range.
	assert.Len(t, tr.callsOf(ProbeARP), 6)
}

func TestHostScanICMPFallsBackWhenARPUnsupported(t *testing.T) {
	tr := &scriptedTransport{handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
		if spec.Kind == ProbeARP {
			return Outcome{}, scanerr.ErrUnsupported
		}
		if ip.To4()[3] == 2 {
			return responded(ReplyEchoReply, ip), nil
		}
		return timedOut("no echo reply"), nil
	}}
	e := newTestEngine(t, tr, nil)

	cfg := model.DefaultScanConfig()
	cfg.Technique = model.TechniqueARPSweep
	cfg.Targets = []string{"10.1.0.0/30", "10.1.0.2"}
	cfg.ReverseLookup = false

	res, err := e.HostScan(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, res.Hosts, 1)
	assert.Equal(t, "10.1.0.2", res.Hosts[0].IP)
	assert.Len(t, tr.callsOf(ProbeICMPEcho), 2)
}

func TestPing(t *testing.T) {
	tr := &scriptedTransport{handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
		assert.Equal(t, ProbeICMPEcho, spec.Kind)
		if spec.Seq == 2 {
			return timedOut("no echo reply"), nil
		}
		out := responded(ReplyEchoReply, ip)
		out.TTL = 55
		out.RTT = time.Duration(spec.Seq+1) * 10 * time.Millisecond
		return out, nil
	}}
	res := &mapResolver{hosts: map[string][]net.IP{"example.com": {net.ParseIP("93.184.216.34")}}}
	e := newTestEngine(t, tr, res)

	cfg := model.DefaultScanConfig()
	cfg.Targets = []string{"example.com"}
	cfg.PingCount = 4
	cfg.PingInterval = time.Millisecond

	stat, events, err := collect(func(ctx context.Context, r *Reporter) (*model.PingStat, error) {
		return e.Ping(ctx, cfg, r)
	})
	require.NoError(t, err)

	assert.Equal(t, "93.184.216.34", stat.IP)
	assert.Equal(t, 4, stat.Sent)
	assert.Equal(t, 3, stat.Received)
	assert.InDelta(t, 25.0, stat.LossPercent, 1e-9)
	assert.InDelta(t, 10.0, stat.MinMs, 1e-9)
	assert.InDelta(t, 40.0, stat.MaxMs, 1e-9)
	assert.InDelta(t, 70.0/3, stat.AvgMs, 1e-9)
	assert.Greater(t, stat.StdDevMs, 0.0)

	require.Len(t, stat.Replies, 4)
	assert.True(t, stat.Replies[2].Lost)
	assert.Equal(t, 55, stat.Replies[0].TTL)

	out := lines(events)
	assert.Contains(t, out, "64 bytes from 93.184.216.34: seq=0 ttl=55 time=10.000 ms")
	assert.Contains(t, out, "Request timeout for seq 2")
	assert.Contains(t, out, "4 packets transmitted, 3 packets received, 25.0% packet loss")
	assert.Empty(t, tags(events))
}

func TestPingTCP(t *testing.T) {
	tr := &scriptedTransport{handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
		assert.Equal(t, ProbeTCPConnect, spec.Kind)
		assert.Equal(t, 443, spec.Port)
		return responded(ReplyReset, ip), nil
	}}
	e := newTestEngine(t, tr, nil)

	cfg := model.DefaultScanConfig()
	cfg.Targets = []string{"10.0.0.1"}
	cfg.PingCount = 2
	cfg.PingInterval = 0
	cfg.PingProtocol = "tcp"
	cfg.PingPort = 443

	stat, err := e.Ping(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stat.Received)
	assert.Zero(t, stat.LossPercent)
	assert.Zero(t, stat.StdDevMs)
}

func TestPingAllLost(t *testing.T) {
	tr := &scriptedTransport{handle: func(net.IP, ProbeSpec) (Outcome, error) {
		return timedOut("no echo reply"), nil
	}}
	e := newTestEngine(t, tr, nil)

	cfg := model.DefaultScanConfig()
	cfg.Targets = []string{"10.0.0.1"}
	cfg.PingCount = 3
	cfg.PingInterval = 0

	stat, err := e.Ping(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stat.Sent)
	assert.Equal(t, 0, stat.Received)
	assert.InDelta(t, 100.0, stat.LossPercent, 1e-9)
	assert.Zero(t, stat.AvgMs)
}

func TestTraceReachesTarget(t *testing.T) {
	target := net.ParseIP("10.9.9.9").To4()
	tr := &scriptedTransport{handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
		assert.Equal(t, ProbeUDPTrace, spec.Kind)
		assert.Equal(t, tracePortBase+spec.TTL-1, spec.Port)
		switch {
		case spec.TTL == 2:
			return timedOut("no reply"), nil
		case spec.TTL < 4:
			return responded(ReplyTimeExceeded, net.IPv4(10, 0, 0, byte(spec.TTL)).To4()), nil
		}
		return responded(ReplyPortUnreachable, ip), nil
	}}
	res := &mapResolver{ptr: map[string]string{"10.0.0.1": "gw.lan"}}
	e := newTestEngine(t, tr, res)

	cfg := model.DefaultScanConfig()
	cfg.Targets = []string{target.String()}
	cfg.TraceProtocol = "udp"
	cfg.MaxHops = 30

	result, events, err := collect(func(ctx context.Context, r *Reporter) (*model.TraceResult, error) {
		return e.Trace(ctx, cfg, r)
	})
	require.NoError(t, err)

	assert.True(t, result.Reached)
	require.Len(t, result.Hops, 4)
	assert.Equal(t, "gw.lan", result.Hops[0].Hostname)
	assert.True(t, result.Hops[1].Lost)
	assert.Empty(t, result.Hops[1].IP)
	assert.Equal(t, "10.9.9.9", result.Hops[3].IP)
	for i, h := range result.Hops {
		assert.Equal(t, i+1, h.HopNum)
	}

	out := lines(events)
	require.Len(t, out, 5)
	assert.Equal(t, " 1  gw.lan (10.0.0.1)  2.000 ms", out[1])
	assert.Equal(t, " 2  *", out[2])
}

func TestTraceHopCap(t *testing.T) {
	tr := &scriptedTransport{handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
		assert.Equal(t, ProbeICMPEcho, spec.Kind)
		return responded(ReplyTimeExceeded, net.IPv4(172, 16, 0, byte(spec.TTL)).To4()), nil
	}}
	e := newTestEngine(t, tr, nil)

	cfg := model.DefaultScanConfig()
	cfg.Targets = []string{"10.9.9.9"}
	cfg.TraceProtocol = "icmp"
	cfg.MaxHops = 5
	cfg.ReverseLookup = false

	result, err := e.Trace(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.False(t, result.Reached)
	assert.Len(t, result.Hops, 5)
}

func TestTraceRecordsUnreachableRouters(t *testing.T) {
	target := net.ParseIP("10.9.9.9").To4()
	tr := &scriptedTransport{handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
		assert.Equal(t, ProbeICMPEcho, spec.Kind)
		switch spec.TTL {
		case 1:
			return responded(ReplyTimeExceeded, net.IPv4(10, 0, 0, 1).To4()), nil
		case 2:
			return Outcome{Status: StatusUnreachable, From: net.IPv4(10, 0, 0, 2).To4(),
				RTT: 3 * time.Millisecond, Reason: "destination unreachable"}, nil
		case 3:
			return timedOut("no response"), nil
		}
		return Outcome{Status: StatusUnreachable, From: ip, RTT: 4 * time.Millisecond,
			Reason: "destination unreachable"}, nil
	}}
	e := newTestEngine(t, tr, nil)

	cfg := model.DefaultScanConfig()
	cfg.Targets = []string{target.String()}
	cfg.TraceProtocol = "icmp"
	cfg.MaxHops = 30
	cfg.ReverseLookup = false

	result, events, err := collect(func(ctx context.Context, r *Reporter) (*model.TraceResult, error) {
		return e.Trace(ctx, cfg, r)
	})
	require.NoError(t, err)

	assert.False(t, result.Reached)
	require.Len(t, result.Hops, 4)
	assert.Equal(t, model.TraceHop{HopNum: 2, IP: "10.0.0.2", LatencyMs: 3}, result.Hops[1])
	assert.True(t, result.Hops[2].Lost)
	assert.Equal(t, model.TraceHop{HopNum: 4, IP: "10.9.9.9", LatencyMs: 4}, result.Hops[3])

	out := lines(events)
	assert.Contains(t, out, " 2  10.0.0.2  3.000 ms")
	assert.Contains(t, out, " 3  *")
}

func TestPingKeepsSendInterval(t *testing.T) {
	const interval = 50 * time.Millisecond
	var sends []time.Time
	tr := &scriptedTransport{handle: func(ip net.IP, spec ProbeSpec) (Outcome, error) {
		sends = append(sends, time.Now())
		if spec.Seq == 0 {
			// A lost probe holds the sender for most of the interval.
			time.Sleep(40 * time.Millisecond)
			return timedOut("no echo reply"), nil
		}
		return responded(ReplyEchoReply, ip), nil
	}}
	e := newTestEngine(t, tr, nil)

	cfg := model.DefaultScanConfig()
	cfg.Targets = []string{"10.0.0.1"}
	cfg.PingCount = 3
	cfg.PingInterval = interval

	stat, err := e.Ping(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stat.Received)

	require.Len(t, sends, 3)
	first := sends[1].Sub(sends[0])
	assert.GreaterOrEqual(t, first, interval-5*time.Millisecond)
	assert.Less(t, first, interval+30*time.Millisecond)
	assert.GreaterOrEqual(t, sends[2].Sub(sends[0]), 2*interval-5*time.Millisecond)
}

func TestDomainScan(t *testing.T) {
	res := &mapResolver{
		hosts: map[string][]net.IP{
			"www.example.com":  {net.ParseIP("93.184.216.34")},
			"mail.example.com": {net.ParseIP("93.184.216.35")},
		},
		cnames:  map[string]string{"www.example.com": "edge.example.net"},
		records: []model.DNSRecord{{Type: "MX", Name: "example.com", Value: "10 mail.example.com", TTL: 300}},
	}
	e := newTestEngine(t, &scriptedTransport{}, res)

	cfg := model.DefaultScanConfig()
	cfg.Domain = "Example.com."
	cfg.Subdomains = []string{"www", "mail", "doesnotexist", "WWW"}
	cfg.WithRecordSet = true

	result, events, err := collect(func(ctx context.Context, r *Reporter) (*model.DomainScanResult, error) {
		return e.DomainScan(ctx, cfg, r)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"START_DOMAINSCAN", "END_DOMAINSCAN"}, tags(events))
	assert.Equal(t, "example.com", result.Domain)
	require.Len(t, result.Entries, 3)
	assert.Equal(t, model.DomainEntry{
		Name: "www.example.com", Resolved: true,
		Addresses: []string{"93.184.216.34"}, CNAME: "edge.example.net",
	}, result.Entries[0])
	assert.True(t, result.Entries[1].Resolved)
	assert.Equal(t, model.DomainEntry{Name: "doesnotexist.example.com"}, result.Entries[2])
	assert.Equal(t, 2, result.ResolvedCount())
	assert.Len(t, result.Records, 1)
}

func TestCandidates(t *testing.T) {
	got := Candidates("example.org", []string{"a", " b ", "", "A", "@", "b."})
	assert.Equal(t, []string{"a.example.org", "b.example.org", "example.org"}, got)
}
