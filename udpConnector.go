package arq

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// packetConn is the point-to-point channel contract both endpoints depend
// on. Sends are fire-and-forget, the channel may drop or corrupt but never
// reorders packets from the same direction.
type packetConn interface {
	sendPacket(packet) error
	receivePacket() (packet, error)
	Close() error
}

type udpConnector struct {
	udpSender   *net.UDPConn
	udpReceiver *net.UDPConn
}

func createUdpAddress(addressString string, port int) (*net.UDPAddr, error) {
	address := addressString + ":" + strconv.Itoa(port)
	udpAddress, err := net.ResolveUDPAddr("udp4", address)
	return udpAddress, errors.Wrapf(err, "resolve udp address %s", address)
}

func newUDPConnector(peerAddress string, peerPort, localPort int) (*udpConnector, error) {
	peer, err := createUdpAddress(peerAddress, peerPort)
	if err != nil {
		return nil, err
	}
	local, err := createUdpAddress("localhost", localPort)
	if err != nil {
		return nil, err
	}
	udpSender, err := net.DialUDP("udp4", nil, peer)
	if err != nil {
		return nil, errors.Wrap(err, "dial peer")
	}
	udpReceiver, err := net.ListenUDP("udp4", local)
	if err != nil {
		_ = udpSender.Close()
		return nil, errors.Wrap(err, "listen")
	}
	return &udpConnector{udpSender: udpSender, udpReceiver: udpReceiver}, nil
}

func (c *udpConnector) sendPacket(p packet) error {
	_, err := c.udpSender.Write(marshalPacket(p))
	return errors.Wrap(err, "write packet")
}

func (c *udpConnector) receivePacket() (packet, error) {
	buffer := make([]byte, packetLength)
	n, err := c.udpReceiver.Read(buffer)
	if err != nil {
		return packet{}, errors.Wrap(err, "read packet")
	}
	return unmarshalPacket(buffer[:n])
}

func (c *udpConnector) Close() error {
	senderError := c.udpSender.Close()
	receiverError := c.udpReceiver.Close()
	if senderError != nil {
		return senderError
	}
	return receiverError
}
