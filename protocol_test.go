package arq

import (
	"encoding/binary"
	"testing"

	"github.com/kelindar/bitmap"
	"github.com/stretchr/testify/suite"
)

type ProtocolTestSuite struct {
	arqTestSuite
	sim *simulator
}

func (suite *ProtocolTestSuite) SetupTest() {
	suite.sim = newSimulator(42)
}

func ordinalMessage(ordinal int) message {
	var payload [payloadSize]byte
	binary.BigEndian.PutUint32(payload[:4], uint32(ordinal))
	return message{data: payload}
}

func ordinalOf(msg message) uint32 {
	return binary.BigEndian.Uint32(msg.data[:4])
}

// pump feeds count messages through the simulated channel, stepping the
// simulation whenever the send window pushes back, then drains all pending
// events.
func (suite *ProtocolTestSuite) pump(count int) {
	for i := 0; i < count; i++ {
		msg := ordinalMessage(i)
		for suite.sim.submit(msg) == windowFull {
			suite.Require().True(suite.sim.step(), "simulation stalled with a full window")
		}
	}
	suite.sim.runUntilIdle()
}

func (suite *ProtocolTestSuite) TestLossFreeChannelDeliversInOrder() {
	suite.pump(50)

	suite.Require().Len(suite.sim.delivered, 50)
	for i, msg := range suite.sim.delivered {
		suite.Equal(uint32(i), ordinalOf(msg))
	}
	suite.Equal(0, suite.sim.sender.stats.PacketsResent)
	suite.False(suite.sim.timer.armed)
}

func (suite *ProtocolTestSuite) TestDataLossAndCorruptionDeliversExactlyOnce() {
	suite.sim.dataLoss = 0.2
	suite.sim.dataCorruption = 0.1

	suite.pump(200)

	suite.Require().Len(suite.sim.delivered, 200)
	var seen bitmap.Bitmap
	for i, msg := range suite.sim.delivered {
		ordinal := ordinalOf(msg)
		suite.Equal(uint32(i), ordinal)
		suite.False(seen.Contains(ordinal), "ordinal delivered twice")
		seen.Set(ordinal)
	}
	suite.Equal(200, seen.Count())
	suite.Positive(suite.sim.sender.stats.PacketsResent)
}

func (suite *ProtocolTestSuite) TestStopAndWaitWindowSurvivesAckLoss() {
	// window 1 keeps the minimal sequence space unambiguous, so exactly-once
	// holds even when acknowledgments are lost or corrupted
	suite.sim = newSimulator(7, WithWindowSize(1))
	suite.sim.dataLoss = 0.1
	suite.sim.dataCorruption = 0.1
	suite.sim.ackLoss = 0.2
	suite.sim.ackCorruption = 0.1

	suite.pump(100)

	suite.Require().Len(suite.sim.delivered, 100)
	for i, msg := range suite.sim.delivered {
		suite.Equal(uint32(i), ordinalOf(msg))
	}
}

func (suite *ProtocolTestSuite) TestScriptedDataLossRecoversByTimeout() {
	suite.sim.dropDataPacketOnce(0)

	suite.pump(1)

	suite.Require().Len(suite.sim.delivered, 1)
	suite.Equal(uint32(0), ordinalOf(suite.sim.delivered[0]))
	suite.Positive(suite.sim.sender.stats.PacketsResent)
}

func (suite *ProtocolTestSuite) TestScriptedAckLossRecoversByReAck() {
	suite.sim.dropAckPacketOnce(1)

	suite.pump(2)

	suite.Require().Len(suite.sim.delivered, 2)
	suite.Positive(suite.sim.sender.stats.PacketsResent)
	suite.Positive(suite.sim.receiver.stats.DuplicatePackets)
	suite.Equal(0, suite.sim.sender.outstanding())
}

// Losing the ACK of the base packet while the rest of the window is
// acknowledged forces a retransmission that the receiver, with its wrapped
// window, accepts as new: the stale copy is delivered a second time. This
// is the cost of a sequence space of windowSize+1 (full selective-repeat
// safety needs at least twice the window); the constants are pinned by the
// protocol definition, so the test pins the behavior instead.
func (suite *ProtocolTestSuite) TestMinimalSequenceSpaceDuplicatesOnBaseAckLoss() {
	suite.sim.dropAckPacketOnce(0)

	suite.pump(7)

	suite.Require().Len(suite.sim.delivered, 8)
	suite.Equal(uint32(0), ordinalOf(suite.sim.delivered[7]))
}

func TestProtocol(t *testing.T) {
	suite.Run(t, new(ProtocolTestSuite))
}
