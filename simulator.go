package arq

import (
	"math/rand"
	"time"
)

const (
	transitDelay  = 5 * time.Millisecond
	transitJitter = 5 * time.Millisecond
)

type simEventKind uint8

const (
	arrivalAtSender simEventKind = iota
	arrivalAtReceiver
)

type simEvent struct {
	at   time.Duration
	kind simEventKind
	pkt  packet
}

// simulator replays a sender/receiver pair under a deterministic lossy
// channel: a seeded RNG decides per-packet loss, corruption and delay, and
// a simulated clock drives the retransmission timer. Delivery per direction
// is never reordered or duplicated, matching the channel model.
type simulator struct {
	rng *rand.Rand
	now time.Duration

	queue []simEvent
	timer *simTimer

	sender   *sender
	receiver *receiver

	dataLoss       float64
	dataCorruption float64
	ackLoss        float64
	ackCorruption  float64

	dropDataOnce []int
	dropAckOnce  []int

	lastArrivalAtSender   time.Duration
	lastArrivalAtReceiver time.Duration

	delivered []message
}

// simTimer is the sender's timer inside simulated time. The pending fire is
// not queued as an event, it is re-evaluated on every step, which makes
// cancel-then-restart trivially atomic.
type simTimer struct {
	sim   *simulator
	armed bool
	at    time.Duration
}

func (t *simTimer) start(d time.Duration) {
	t.armed = true
	t.at = t.sim.now + d
}

func (t *simTimer) stop() {
	t.armed = false
}

func newSimulator(seed int64, opts ...func(*Options)) *simulator {
	sim := &simulator{rng: rand.New(rand.NewSource(seed))}
	sim.timer = &simTimer{sim: sim}
	sim.sender = newSender(sim.sendToReceiver, sim.timer, opts...)
	sim.receiver = newReceiver(sim.sendToSender, sim.collect, opts...)
	return sim
}

// dropDataPacketOnce drops the next data packet with the given seqnum,
// dropAckPacketOnce the next ACK with the given acknum. Scripted losses
// compose with the probabilistic ones.
func (s *simulator) dropDataPacketOnce(seqnum int) {
	s.dropDataOnce = append(s.dropDataOnce, seqnum)
}

func (s *simulator) dropAckPacketOnce(acknum int) {
	s.dropAckOnce = append(s.dropAckOnce, acknum)
}

// submit offers one message to the sender at the current simulated time.
func (s *simulator) submit(msg message) statusCode {
	status, _ := s.sender.submit(msg)
	return status
}

// step dispatches the earliest pending event. It reports false once neither
// an arrival nor a timer fire is outstanding.
func (s *simulator) step() bool {
	timerNext := s.timer.armed && (len(s.queue) == 0 || s.timer.at <= s.queue[0].at)
	if timerNext {
		s.now = s.timer.at
		s.timer.armed = false
		_, _ = s.sender.onTimeout()
		return true
	}
	if len(s.queue) == 0 {
		return false
	}

	ev := s.queue[0]
	s.queue = s.queue[1:]
	s.now = ev.at
	switch ev.kind {
	case arrivalAtSender:
		s.sender.onAck(ev.pkt)
	case arrivalAtReceiver:
		_, _ = s.receiver.onPacket(ev.pkt)
	}
	return true
}

func (s *simulator) runUntilIdle() {
	for s.step() {
	}
}

func (s *simulator) sendToReceiver(pkt packet) error {
	if dropScripted(&s.dropDataOnce, pkt.seqnum) {
		return nil
	}
	s.dispatch(arrivalAtReceiver, pkt, &s.lastArrivalAtReceiver, s.dataLoss, s.dataCorruption)
	return nil
}

func (s *simulator) sendToSender(pkt packet) error {
	if dropScripted(&s.dropAckOnce, pkt.acknum) {
		return nil
	}
	s.dispatch(arrivalAtSender, pkt, &s.lastArrivalAtSender, s.ackLoss, s.ackCorruption)
	return nil
}

func (s *simulator) dispatch(kind simEventKind, pkt packet, lastArrival *time.Duration, loss, corruption float64) {
	if s.rng.Float64() < loss {
		return
	}
	if s.rng.Float64() < corruption {
		pkt = corruptPacket(pkt, s.rng)
	}

	at := s.now + transitDelay + time.Duration(s.rng.Int63n(int64(transitJitter)))
	if at < *lastArrival {
		// per-direction delivery order is preserved
		at = *lastArrival
	}
	*lastArrival = at
	s.insert(simEvent{at: at, kind: kind, pkt: pkt})
}

func (s *simulator) insert(ev simEvent) {
	i := len(s.queue)
	for i > 0 && s.queue[i-1].at > ev.at {
		i--
	}
	s.queue = append(s.queue, simEvent{})
	copy(s.queue[i+1:], s.queue[i:])
	s.queue[i] = ev
}

func (s *simulator) collect(msg message) {
	s.delivered = append(s.delivered, msg)
}

func dropScripted(scripted *[]int, num int) bool {
	for i, v := range *scripted {
		if v == num {
			*scripted = append((*scripted)[:i], (*scripted)[i+1:]...)
			return true
		}
	}
	return false
}

func corruptPacket(pkt packet, rng *rand.Rand) packet {
	switch rng.Intn(3) {
	case 0:
		pkt.seqnum ^= 1 << uint(rng.Intn(8))
	case 1:
		pkt.payload[rng.Intn(payloadSize)] ^= 1 << uint(rng.Intn(8))
	default:
		pkt.checksum += 1 + rng.Intn(9)
	}
	return pkt
}
