package probes

import (
	"errors"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ReasonNotOnLink marks ARP outcomes for targets behind a router.
const ReasonNotOnLink = "target is not on a directly attached segment"

var (
	broadcastMAC   = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	errNotOnLink   = errors.New(ReasonNotOnLink)
	errNoHWAddress = errors.New("interface has no hardware address")
)

// interfaceFor finds the up, non-loopback interface whose IPv4 network holds
// target, with the local address on that network.
func interfaceFor(target net.IP) (*net.Interface, net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, nil, err
	}
	for i := range ifaces {
		ifi := &ifaces[i]
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || ipnet.IP.To4() == nil || !ipnet.Contains(target) {
				continue
			}
			if len(ifi.HardwareAddr) != 6 {
				return nil, nil, errNoHWAddress
			}
			return ifi, ipnet.IP.To4(), nil
		}
	}
	return nil, nil, errNotOnLink
}

// buildARPRequest serializes a broadcast who-has frame for target.
func buildARPRequest(srcMAC net.HardwareAddr, srcIP, target net.IP) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       broadcastMAC,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(srcMAC),
		SourceProtAddress: []byte(srcIP.To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(target.To4()),
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, arp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseARPReply returns the sender MAC if frame is an ARP reply from target.
func parseARPReply(frame []byte, target net.IP) (net.HardwareAddr, bool) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	arp, ok := pkt.Layer(layers.LayerTypeARP).(*layers.ARP)
	if !ok || arp.Operation != layers.ARPReply {
		return nil, false
	}
	if !net.IP(arp.SourceProtAddress).Equal(target.To4()) {
		return nil, false
	}
	mac := make(net.HardwareAddr, len(arp.SourceHwAddress))
	copy(mac, arp.SourceHwAddress)
	return mac, true
}
