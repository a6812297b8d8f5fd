package arq

// SenderStats counts the sender-side protocol events.
type SenderStats struct {
	MessagesAccepted int
	WindowFullDrops  int
	PacketsSent      int
	PacketsResent    int
	TotalAcks        int
	NewAcks          int
	DuplicateAcks    int
	CorruptedAcks    int
	OutOfRangeAcks   int
}

// ReceiverStats counts the receiver-side protocol events.
type ReceiverStats struct {
	PacketsDelivered  int
	DuplicatePackets  int
	CorruptedPackets  int
	OutOfRangePackets int
	AcksSent          int
}
