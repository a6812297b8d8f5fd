package arq

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestChecksumDetectsPayloadCorruption(t *testing.T) {
	pkt := createDataPacket(3, newMessage([]byte("some payload")))
	assert.False(t, pkt.isCorrupted())

	pkt.payload[7] ^= 0x01
	assert.True(t, pkt.isCorrupted())
}

func TestChecksumCoversHeaderFields(t *testing.T) {
	pkt := createDataPacket(3, newMessage([]byte("some payload")))

	pkt.seqnum = 4
	assert.True(t, pkt.isCorrupted())

	pkt = createAckPacket(2)
	pkt.acknum = 3
	assert.True(t, pkt.isCorrupted())
}

func TestAckPacketShape(t *testing.T) {
	pkt := createAckPacket(5)
	assert.True(t, pkt.isAck())
	assert.Equal(t, notInUse, pkt.seqnum)
	assert.Equal(t, 5, pkt.acknum)
	assert.Equal(t, [payloadSize]byte{}, pkt.payload)
	assert.False(t, pkt.isCorrupted())
}

func TestChecksumWithSentinelHeader(t *testing.T) {
	// the notInUse sentinel is negative and must survive the additive sum
	pkt := createDataPacket(0, message{})
	assert.Equal(t, notInUse, pkt.checksum)
	assert.False(t, pkt.isCorrupted())
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	data := createDataPacket(6, newMessage([]byte("twenty bytes at most")))
	ack := createAckPacket(0)

	for _, pkt := range []packet{data, ack} {
		decoded, err := unmarshalPacket(marshalPacket(pkt))
		assert.NoError(t, err)
		assert.Empty(t, cmp.Diff(pkt, decoded, cmp.AllowUnexported(packet{})))
		assert.False(t, decoded.isCorrupted())
	}
}

func TestUnmarshalRejectsShortBuffer(t *testing.T) {
	_, err := unmarshalPacket(make([]byte, headerLength))
	assert.Error(t, err)
}

func TestSeqDistanceWrapsAroundSpace(t *testing.T) {
	assert.Equal(t, 0, seqDistance(3, 3, 7))
	assert.Equal(t, 6, seqDistance(2, 3, 7))
	assert.Equal(t, 1, seqDistance(0, 6, 7))
}
