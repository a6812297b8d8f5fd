package arq

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	eventBacklog = 64
	errorBacklog = 16
	retryTimeout = 10 * time.Millisecond
)

var errEndpointClosed = errors.New("endpoint closed")

type eventKind uint8

const (
	eventSubmit eventKind = iota
	eventAck
	eventTimeout
	eventStats
)

type senderEvent struct {
	kind   eventKind
	pkt    packet
	msg    message
	result chan statusCode
	stats  chan SenderStats
}

// SenderEndpoint owns a sender state machine and serializes all its event
// sources into one loop: application submissions, inbound ACKs and timer
// fires each run to completion before the next event is dispatched, so the
// machine itself needs no locking.
type SenderEndpoint struct {
	machine   *sender
	conn      packetConn
	timer     *rtoTimer
	events    chan senderEvent
	done      chan struct{}
	errors    chan error
	closeOnce sync.Once
}

// NewSenderEndpoint connects the sending side of a pair over UDP.
func NewSenderEndpoint(peerAddress string, peerPort, localPort int, opts ...func(*Options)) (*SenderEndpoint, error) {
	conn, err := newUDPConnector(peerAddress, peerPort, localPort)
	if err != nil {
		return nil, err
	}
	return newSenderEndpoint(conn, opts...), nil
}

func newSenderEndpoint(conn packetConn, opts ...func(*Options)) *SenderEndpoint {
	e := &SenderEndpoint{
		conn:   conn,
		events: make(chan senderEvent, eventBacklog),
		done:   make(chan struct{}),
		errors: make(chan error, errorBacklog),
	}
	e.timer = newRtoTimer(e.postTimeout)
	e.machine = newSender(conn.sendPacket, e.timer, opts...)
	go e.loop()
	go e.readAcks()
	return e
}

// Send blocks until the payload is accepted into the send window, backing
// off briefly whenever the window is full.
func (e *SenderEndpoint) Send(payload []byte) error {
	result := make(chan statusCode, 1)
	msg := newMessage(payload)
	for {
		select {
		case <-e.done:
			return errEndpointClosed
		case e.events <- senderEvent{kind: eventSubmit, msg: msg, result: result}:
		}
		select {
		case <-e.done:
			return errEndpointClosed
		case status := <-result:
			if status != windowFull {
				return nil
			}
		}
		time.Sleep(retryTimeout)
	}
}

// Stats returns a snapshot taken inside the event loop.
func (e *SenderEndpoint) Stats() SenderStats {
	stats := make(chan SenderStats, 1)
	select {
	case <-e.done:
		return SenderStats{}
	case e.events <- senderEvent{kind: eventStats, stats: stats}:
	}
	select {
	case <-e.done:
		return SenderStats{}
	case snapshot := <-stats:
		return snapshot
	}
}

// Errors surfaces asynchronous transmit and read failures.
func (e *SenderEndpoint) Errors() <-chan error {
	return e.errors
}

func (e *SenderEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		e.timer.stop()
		log.Debug("sender endpoint closed")
		err = e.conn.Close()
	})
	return err
}

func (e *SenderEndpoint) loop() {
	for {
		select {
		case <-e.done:
			return
		case ev := <-e.events:
			switch ev.kind {
			case eventSubmit:
				status, err := e.machine.submit(ev.msg)
				e.reportError(err)
				ev.result <- status
			case eventAck:
				e.machine.onAck(ev.pkt)
			case eventTimeout:
				_, err := e.machine.onTimeout()
				e.reportError(err)
			case eventStats:
				ev.stats <- e.machine.stats
			}
		}
	}
}

func (e *SenderEndpoint) readAcks() {
	for {
		pkt, err := e.conn.receivePacket()
		if err != nil {
			select {
			case <-e.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// malformed datagram, keep reading
			e.reportError(err)
			continue
		}
		select {
		case <-e.done:
			return
		case e.events <- senderEvent{kind: eventAck, pkt: pkt}:
		}
	}
}

func (e *SenderEndpoint) postTimeout() {
	select {
	case <-e.done:
	case e.events <- senderEvent{kind: eventTimeout}:
	}
}

func (e *SenderEndpoint) reportError(err error) {
	if err == nil {
		return
	}
	select {
	case e.errors <- err:
	default:
		log.WithError(err).Error("error channel full, dropping")
	}
}

// SinkFunc accepts delivered payloads in strictly increasing sequence
// order, once each.
type SinkFunc func([]byte)

// ReceiverEndpoint owns a receiver state machine. Inbound packets are its
// only event source, so the read loop itself is the serial dispatcher.
type ReceiverEndpoint struct {
	mu        sync.Mutex
	machine   *receiver
	conn      packetConn
	done      chan struct{}
	errors    chan error
	closeOnce sync.Once
}

// NewReceiverEndpoint connects the receiving side of a pair over UDP.
func NewReceiverEndpoint(peerAddress string, peerPort, localPort int, sink SinkFunc, opts ...func(*Options)) (*ReceiverEndpoint, error) {
	conn, err := newUDPConnector(peerAddress, peerPort, localPort)
	if err != nil {
		return nil, err
	}
	return newReceiverEndpoint(conn, sink, opts...), nil
}

func newReceiverEndpoint(conn packetConn, sink SinkFunc, opts ...func(*Options)) *ReceiverEndpoint {
	e := &ReceiverEndpoint{
		conn:   conn,
		done:   make(chan struct{}),
		errors: make(chan error, errorBacklog),
	}
	deliver := func(msg message) {
		payload := make([]byte, payloadSize)
		copy(payload, msg.data[:])
		sink(payload)
	}
	e.machine = newReceiver(conn.sendPacket, deliver, opts...)
	go e.loop()
	return e
}

func (e *ReceiverEndpoint) Errors() <-chan error {
	return e.errors
}

// Stats returns a snapshot of the receiver counters.
func (e *ReceiverEndpoint) Stats() ReceiverStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.machine.stats
}

func (e *ReceiverEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		log.Debug("receiver endpoint closed")
		err = e.conn.Close()
	})
	return err
}

func (e *ReceiverEndpoint) loop() {
	for {
		pkt, err := e.conn.receivePacket()
		if err != nil {
			select {
			case <-e.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			e.reportError(err)
			continue
		}
		e.mu.Lock()
		_, err = e.machine.onPacket(pkt)
		e.mu.Unlock()
		e.reportError(err)
	}
}

func (e *ReceiverEndpoint) reportError(err error) {
	if err == nil {
		return
	}
	select {
	case e.errors <- err:
	default:
		log.WithError(err).Error("error channel full, dropping")
	}
}
