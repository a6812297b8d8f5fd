package arq

import "time"

const (
	// payloadSize is the fixed length of every application message and of
	// the payload block carried by every packet.
	payloadSize = 20

	// notInUse fills the header field a packet has no meaning for: acknum
	// on data packets, seqnum on ACK packets.
	notInUse = -1

	defaultWindowSize = 6
)

var defaultRetransmissionTimeout = 200 * time.Millisecond

type statusCode int

const (
	success statusCode = iota
	fail
	windowFull
	ackReceived
	duplicateAck
	duplicatePacket
	invalidPacket
	seqOutOfRange
)

type position struct {
	Start int
	End   int
}

var seqnumPosition = position{0, 4}
var acknumPosition = position{4, 8}
var checksumPosition = position{8, 12}

const headerLength = 12
const packetLength = headerLength + payloadSize

// slotState tags the lifecycle of one sequence-number slot. The sender moves
// a slot empty -> inFlight -> acked -> empty, the receiver moves a slot
// empty -> buffered -> empty.
type slotState uint8

const (
	slotEmpty slotState = iota
	slotInFlight
	slotAcked
	slotBuffered
)
