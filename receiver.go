package arq

import (
	log "github.com/sirupsen/logrus"
)

type deliverFunc func(message)

// receiver is the B-side state machine. It buffers in-window arrivals,
// drains every contiguous run to the application sink in order and answers
// every data packet with exactly one acknowledgment: the packet's own
// seqnum when it is accepted, the previous in-order seqnum on every
// rejection path.
type receiver struct {
	transmit transmitFunc
	deliver  deliverFunc

	slots      []receiverSlot
	recvBase   int
	windowSize int
	seqSpace   int

	stats ReceiverStats
}

type receiverSlot struct {
	pkt   packet
	state slotState
}

func newReceiver(transmit transmitFunc, deliver deliverFunc, opts ...func(*Options)) *receiver {
	options := NewDefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &receiver{
		transmit:   transmit,
		deliver:    deliver,
		slots:      make([]receiverSlot, options.seqSpace()),
		windowSize: options.WindowSize,
		seqSpace:   options.seqSpace(),
	}
}

func (r *receiver) inRecvWindow(x int) bool {
	return seqDistance(x, r.recvBase, r.seqSpace) < r.windowSize
}

// prevInOrder is the sequence number most recently delivered in order, the
// acknowledgment value for every rejection path.
func (r *receiver) prevInOrder() int {
	return (r.recvBase + r.seqSpace - 1) % r.seqSpace
}

// onPacket processes one inbound data packet and answers it with exactly
// one acknowledgment. The single exception is a seqnum outside the sequence
// space: that cannot come from the peer's state machine, so it is discarded
// without a reply.
func (r *receiver) onPacket(pkt packet) (statusCode, error) {
	if pkt.isCorrupted() {
		r.stats.CorruptedPackets++
		log.WithField("acknum", r.prevInOrder()).Trace("corrupted packet, re-acknowledging previous in-order")
		return invalidPacket, r.sendAck(r.prevInOrder())
	}

	sn := pkt.seqnum
	if sn < 0 || sn >= r.seqSpace {
		// protocol violation, not a channel event: discard without an ACK
		r.stats.OutOfRangePackets++
		log.WithField("seqnum", sn).Warn("seqnum outside sequence space, discarding")
		return seqOutOfRange, nil
	}

	if !r.inRecvWindow(sn) || r.slots[sn].state == slotBuffered {
		r.stats.DuplicatePackets++
		log.WithFields(log.Fields{
			"seqnum": sn,
			"acknum": r.prevInOrder(),
		}).Trace("duplicate or out-of-window packet, re-acknowledging previous in-order")
		return duplicatePacket, r.sendAck(r.prevInOrder())
	}

	r.slots[sn] = receiverSlot{pkt: pkt, state: slotBuffered}
	log.WithField("seqnum", sn).Trace("packet received in window, acknowledging")

	for r.slots[r.recvBase].state == slotBuffered {
		r.deliver(message{data: r.slots[r.recvBase].pkt.payload})
		r.stats.PacketsDelivered++
		r.slots[r.recvBase] = receiverSlot{}
		r.recvBase = (r.recvBase + 1) % r.seqSpace
	}

	return success, r.sendAck(sn)
}

func (r *receiver) sendAck(acknum int) error {
	r.stats.AcksSent++
	return r.transmit(createAckPacket(acknum))
}
