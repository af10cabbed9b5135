package quic

import (
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/quince-io/quince/transport"
)

// ecnCodepointMask is the low two bits of the IPv4 TOS octet / IPv6
// traffic class octet that carry the ECN codepoint (RFC 3168 Section 5).
const ecnCodepointMask = 0x3

// packetSocket is the listener's view of its UDP socket: plain
// net.PacketConn when ECN reporting is off, or an ECN-aware wrapper
// around golang.org/x/net/ipv4 or ipv6 when it is on. net.UDPConn alone
// cannot read or set the IP-layer ECN codepoint (RFC 9000 Section
// 13.4.2 requires doing both to make ECN validation and reporting work),
// which is exactly the gap x/net's per-packet control messages close.
type packetSocket interface {
	ReadPacket(b []byte) (n int, ecn transport.ECN, addr net.Addr, err error)
	WritePacket(b []byte, ecn transport.ECN, addr net.Addr) error
	LocalAddr() net.Addr
	Close() error
}

// plainSocket is a packetSocket with no ECN visibility: reads always
// report transport.ECNNotECT, and writes ignore the requested codepoint.
type plainSocket struct {
	net.PacketConn
}

func (s *plainSocket) ReadPacket(b []byte) (int, transport.ECN, net.Addr, error) {
	n, addr, err := s.ReadFrom(b)
	return n, transport.ECNNotECT, addr, err
}

func (s *plainSocket) WritePacket(b []byte, _ transport.ECN, addr net.Addr) error {
	_, err := s.WriteTo(b, addr)
	return err
}

// newECNSocket wraps conn with an x/net ipv4 or ipv6 PacketConn selected
// by its local address family, enabling the TOS/TrafficClass control
// message on every read and write.
func newECNSocket(conn *net.UDPConn) (packetSocket, error) {
	addr, _ := conn.LocalAddr().(*net.UDPAddr)
	if addr != nil && addr.IP.To4() == nil && addr.IP.To16() != nil {
		p := ipv6.NewPacketConn(conn)
		if err := p.SetControlMessage(ipv6.FlagTrafficClass, true); err != nil {
			return nil, err
		}
		return &ecn6Socket{conn: conn, p: p}, nil
	}
	p := ipv4.NewPacketConn(conn)
	if err := p.SetControlMessage(ipv4.FlagTOS, true); err != nil {
		return nil, err
	}
	return &ecn4Socket{conn: conn, p: p}, nil
}

type ecn4Socket struct {
	conn *net.UDPConn
	p    *ipv4.PacketConn
}

func (s *ecn4Socket) ReadPacket(b []byte) (int, transport.ECN, net.Addr, error) {
	n, cm, addr, err := s.p.ReadFrom(b)
	if err != nil {
		return n, transport.ECNNotECT, addr, err
	}
	ecn := transport.ECNNotECT
	if cm != nil {
		ecn = transport.ECN(cm.TOS & ecnCodepointMask)
	}
	return n, ecn, addr, nil
}

func (s *ecn4Socket) WritePacket(b []byte, ecn transport.ECN, addr net.Addr) error {
	cm := &ipv4.ControlMessage{TOS: int(ecn) & ecnCodepointMask}
	_, err := s.p.WriteTo(b, cm, addr)
	return err
}

func (s *ecn4Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }
func (s *ecn4Socket) Close() error        { return s.conn.Close() }

type ecn6Socket struct {
	conn *net.UDPConn
	p    *ipv6.PacketConn
}

func (s *ecn6Socket) ReadPacket(b []byte) (int, transport.ECN, net.Addr, error) {
	n, cm, addr, err := s.p.ReadFrom(b)
	if err != nil {
		return n, transport.ECNNotECT, addr, err
	}
	ecn := transport.ECNNotECT
	if cm != nil {
		ecn = transport.ECN(cm.TrafficClass & ecnCodepointMask)
	}
	return n, ecn, addr, nil
}

func (s *ecn6Socket) WritePacket(b []byte, ecn transport.ECN, addr net.Addr) error {
	cm := &ipv6.ControlMessage{TrafficClass: int(ecn) & ecnCodepointMask}
	_, err := s.p.WriteTo(b, cm, addr)
	return err
}

func (s *ecn6Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }
func (s *ecn6Socket) Close() error        { return s.conn.Close() }
