package arq

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// message is an opaque fixed-size application payload. Shorter input is
// zero-padded, longer input is truncated.
type message struct {
	data [payloadSize]byte
}

func newMessage(data []byte) message {
	var msg message
	copy(msg.data[:], data)
	return msg
}

// packet is the single wire shape shared by data and ACK traffic. A data
// packet carries a valid seqnum and acknum == notInUse, an ACK packet
// carries a valid acknum, seqnum == notInUse and a zero payload.
type packet struct {
	seqnum   int
	acknum   int
	checksum int
	payload  [payloadSize]byte
}

// computeChecksum is the additive integrity tag over header and payload.
// It detects corruption, it does not correct it.
func computeChecksum(p packet) int {
	checksum := p.seqnum + p.acknum
	for _, b := range p.payload {
		checksum += int(b)
	}
	return checksum
}

func (p packet) isCorrupted() bool {
	return p.checksum != computeChecksum(p)
}

func (p packet) isAck() bool {
	return p.seqnum == notInUse
}

func createDataPacket(seqnum int, msg message) packet {
	p := packet{seqnum: seqnum, acknum: notInUse, payload: msg.data}
	p.checksum = computeChecksum(p)
	return p
}

func createAckPacket(acknum int) packet {
	p := packet{seqnum: notInUse, acknum: acknum}
	p.checksum = computeChecksum(p)
	return p
}

func marshalPacket(p packet) []byte {
	buffer := make([]byte, packetLength)
	binary.BigEndian.PutUint32(buffer[seqnumPosition.Start:seqnumPosition.End], uint32(int32(p.seqnum)))
	binary.BigEndian.PutUint32(buffer[acknumPosition.Start:acknumPosition.End], uint32(int32(p.acknum)))
	binary.BigEndian.PutUint32(buffer[checksumPosition.Start:checksumPosition.End], uint32(int32(p.checksum)))
	copy(buffer[headerLength:], p.payload[:])
	return buffer
}

func unmarshalPacket(buffer []byte) (packet, error) {
	if len(buffer) < packetLength {
		return packet{}, errors.Errorf("short packet: %d bytes", len(buffer))
	}
	p := packet{
		seqnum:   int(int32(binary.BigEndian.Uint32(buffer[seqnumPosition.Start:seqnumPosition.End]))),
		acknum:   int(int32(binary.BigEndian.Uint32(buffer[acknumPosition.Start:acknumPosition.End]))),
		checksum: int(int32(binary.BigEndian.Uint32(buffer[checksumPosition.Start:checksumPosition.End]))),
	}
	copy(p.payload[:], buffer[headerLength:packetLength])
	return p, nil
}

// seqDistance is the forward distance from base to x in the circular
// sequence space.
func seqDistance(x, base, seqSpace int) int {
	return (x - base + seqSpace) % seqSpace
}
