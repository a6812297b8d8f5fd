package arq

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"
)

type UDPConnectorTestSuite struct {
	arqTestSuite
	alphaConnection *udpConnector
	betaConnection  *udpConnector
}

func (suite *UDPConnectorTestSuite) SetupTest() {
	alphaConnection, err := newUDPConnector("localhost", 3031, 3030)
	suite.handleTestError(err)
	betaConnection, err := newUDPConnector("localhost", 3030, 3031)
	suite.handleTestError(err)
	suite.alphaConnection = alphaConnection
	suite.betaConnection = betaConnection
}

func (suite *UDPConnectorTestSuite) TearDownTest() {
	suite.handleTestError(suite.alphaConnection.Close())
	suite.handleTestError(suite.betaConnection.Close())
}

func (suite *UDPConnectorTestSuite) TestPacketRoundTrip() {
	sent := createDataPacket(4, newMessage([]byte("over the wire")))
	suite.handleTestError(suite.alphaConnection.sendPacket(sent))

	received, err := suite.betaConnection.receivePacket()
	suite.handleTestError(err)
	suite.Empty(cmp.Diff(sent, received, cmp.AllowUnexported(packet{})))

	ack := createAckPacket(4)
	suite.handleTestError(suite.betaConnection.sendPacket(ack))

	received, err = suite.alphaConnection.receivePacket()
	suite.handleTestError(err)
	suite.True(received.isAck())
	suite.Equal(4, received.acknum)
}

func TestUdpConnector(t *testing.T) {
	suite.Run(t, new(UDPConnectorTestSuite))
}
