package arq

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type transmitFunc func(packet) error

// sender is the A-side state machine. It frames application messages into
// data packets, keeps at most windowSize of them in flight and retransmits
// the oldest unacknowledged one on timeout. All entry points are synchronous
// and must be called from a single control flow.
type sender struct {
	transmit transmitFunc
	timer    retransmissionTimer
	rto      time.Duration

	slots      []senderSlot
	sendBase   int
	nextSeqnum int
	windowSize int
	seqSpace   int

	stats SenderStats
}

type senderSlot struct {
	pkt   packet
	state slotState
}

func newSender(transmit transmitFunc, timer retransmissionTimer, opts ...func(*Options)) *sender {
	options := NewDefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &sender{
		transmit:   transmit,
		timer:      timer,
		rto:        options.Timeout,
		slots:      make([]senderSlot, options.seqSpace()),
		windowSize: options.WindowSize,
		seqSpace:   options.seqSpace(),
	}
}

func (s *sender) inSendWindow(x int) bool {
	return seqDistance(x, s.sendBase, s.seqSpace) < s.windowSize
}

// outstanding is the number of in-flight, unacknowledged packets.
func (s *sender) outstanding() int {
	return seqDistance(s.nextSeqnum, s.sendBase, s.seqSpace)
}

// submit frames one message and hands it to the channel. A full window
// rejects the message with windowFull, the caller re-offers it later. A
// transmit failure is reported but leaves the packet buffered: the
// retransmission timeout recovers it.
func (s *sender) submit(msg message) (statusCode, error) {
	if !s.inSendWindow(s.nextSeqnum) {
		s.stats.WindowFullDrops++
		log.WithField("seqnum", s.nextSeqnum).Debug("send window full, dropping message")
		return windowFull, nil
	}

	pkt := createDataPacket(s.nextSeqnum, msg)
	s.slots[pkt.seqnum] = senderSlot{pkt: pkt, state: slotInFlight}
	s.stats.MessagesAccepted++
	s.stats.PacketsSent++

	log.WithField("seqnum", pkt.seqnum).Trace("sending data packet")
	err := s.transmit(pkt)

	if s.sendBase == s.nextSeqnum {
		s.timer.start(s.rto)
	}
	s.nextSeqnum = (s.nextSeqnum + 1) % s.seqSpace

	if err != nil {
		return fail, err
	}
	return success, nil
}

// onAck processes one inbound acknowledgment. Corrupted, duplicate and
// out-of-window ACKs change no state beyond a counter.
func (s *sender) onAck(pkt packet) statusCode {
	if pkt.isCorrupted() {
		s.stats.CorruptedAcks++
		log.Trace("corrupted ACK, ignoring")
		return invalidPacket
	}

	ack := pkt.acknum
	if ack < 0 || ack >= s.seqSpace {
		s.stats.OutOfRangeAcks++
		log.WithField("acknum", ack).Warn("acknum outside sequence space, discarding")
		return seqOutOfRange
	}

	s.stats.TotalAcks++
	if !s.inSendWindow(ack) || s.slots[ack].state != slotInFlight {
		s.stats.DuplicateAcks++
		log.WithField("acknum", ack).Trace("duplicate or out-of-window ACK, ignoring")
		return duplicateAck
	}

	s.stats.NewAcks++
	s.slots[ack].state = slotAcked
	log.WithField("acknum", ack).Trace("new ACK received")

	// slide past the contiguous acked run, freeing each slot for reuse
	// after wraparound
	for s.slots[s.sendBase].state == slotAcked {
		s.slots[s.sendBase] = senderSlot{}
		s.sendBase = (s.sendBase + 1) % s.seqSpace
	}

	s.timer.stop()
	if s.sendBase != s.nextSeqnum {
		s.timer.start(s.rto)
	}
	return ackReceived
}

// onTimeout retransmits the base packet only, never the whole window.
func (s *sender) onTimeout() (statusCode, error) {
	if s.sendBase == s.nextSeqnum {
		// the timer must never be armed with an empty window
		log.Warn("timeout with no outstanding packets")
		return fail, nil
	}

	pkt := s.slots[s.sendBase].pkt
	s.stats.PacketsResent++
	log.WithField("seqnum", pkt.seqnum).Debug("timeout, resending base packet")
	err := s.transmit(pkt)
	s.timer.start(s.rto)
	return success, err
}
