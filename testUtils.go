package arq

import (
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type arqTestSuite struct {
	suite.Suite
}

func (suite *arqTestSuite) handleTestError(err error) {
	if err != nil {
		suite.Errorf(err, "Error occurred")
	}
}

// manualTimer records arming without ever firing on its own; tests disarm
// it and invoke onTimeout themselves. Starting it while armed panics:
// stricter than rtoTimer, which replaces the outstanding timer, so that
// tests catch any machine path that rearms without stopping first.
type manualTimer struct {
	armed    bool
	duration time.Duration
	starts   int
	stops    int
}

func (t *manualTimer) start(d time.Duration) {
	if t.armed {
		panic("timer started while armed")
	}
	t.armed = true
	t.duration = d
	t.starts++
}

func (t *manualTimer) stop() {
	t.armed = false
	t.stops++
}

// packetRecorder captures everything a state machine hands to the channel.
type packetRecorder struct {
	packets []packet
}

func (r *packetRecorder) transmit(pkt packet) error {
	r.packets = append(r.packets, pkt)
	return nil
}

func (r *packetRecorder) last() packet {
	return r.packets[len(r.packets)-1]
}

func (r *packetRecorder) reset() {
	r.packets = nil
}

// corruptPayload flips one payload byte without fixing the checksum.
func corruptPayload(pkt packet) packet {
	pkt.payload[0] ^= 0xff
	return pkt
}

// channelConn is an in-memory packetConn; two of them with crossed channels
// form a loss-free duplex link for endpoint tests.
type channelConn struct {
	in   chan packet
	out  chan packet
	done chan struct{}
}

func newConnectedChannelConns() (*channelConn, *channelConn) {
	a, b := make(chan packet, 100), make(chan packet, 100)
	alpha := &channelConn{in: a, out: b, done: make(chan struct{})}
	beta := &channelConn{in: b, out: a, done: make(chan struct{})}
	return alpha, beta
}

func (c *channelConn) sendPacket(p packet) error {
	select {
	case c.out <- p:
		return nil
	case <-c.done:
		return errors.Wrap(net.ErrClosed, "send")
	}
}

func (c *channelConn) receivePacket() (packet, error) {
	select {
	case p := <-c.in:
		return p, nil
	case <-c.done:
		return packet{}, errors.Wrap(net.ErrClosed, "receive")
	}
}

func (c *channelConn) Close() error {
	close(c.done)
	return nil
}
