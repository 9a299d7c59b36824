package xpacket2

import (
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakateka/yanet2-sub001/common/go/xpacket"
)

func buildUDPv4(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		IHL:      5,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
	udp := &layers.UDP{SrcPort: 1234, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	payload := gopacket.Payload([]byte("hello"))

	pkt := xpacket.LayersToPacket(t, eth, ip, udp, payload)
	return pkt.Data()
}

func TestParseUDPv4(t *testing.T) {
	data := buildUDPv4(t)
	pkt, err := Parse(data, "eth0")
	require.NoError(t, err)

	assert.Equal(t, NetworkIPv4, pkt.NetworkProto)
	assert.Equal(t, TransportUDP, pkt.TransportProto)
	assert.Equal(t, "eth0", pkt.InputDevice)
	assert.Greater(t, pkt.TransportStart, pkt.NetworkStart)
	assert.NotZero(t, pkt.Hash)
}

func TestParseVLANTag(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeDot1Q,
	}
	dot1q := &layers.Dot1Q{VLANIdentifier: 42, Type: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, IHL: 5, Protocol: layers.IPProtocolUDP, SrcIP: net.IPv4(10, 0, 0, 1), DstIP: net.IPv4(10, 0, 0, 2)}
	udp := &layers.UDP{SrcPort: 1, DstPort: 2}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	built := xpacket.LayersToPacket(t, eth, dot1q, ip, udp)

	pkt, err := Parse(built.Data(), "eth1")
	require.NoError(t, err)
	assert.EqualValues(t, 42, pkt.VLAN)
}

func TestFrontAdvanceConcatenatesOutput(t *testing.T) {
	f := &Front{}
	a := &Packet{}
	b := &Packet{}
	f.Input = a
	a.Next = b

	for p := f.PopInput(); p != nil; p = f.PopInput() {
		f.PushOutput(p)
	}
	assert.Nil(t, f.Input)
	require.NotNil(t, f.Output)

	f.Advance()
	require.NotNil(t, f.Input)
	assert.Nil(t, f.Output)

	count := 0
	for p := f.Input; p != nil; p = p.Next {
		count++
	}
	assert.Equal(t, 2, count)
}

func TestFrontPushDropSetsVerdict(t *testing.T) {
	f := &Front{}
	p := &Packet{}
	f.PushDrop(p)
	assert.Equal(t, VerdictDrop, p.Verdict)
	assert.Same(t, p, f.Drop)
}
