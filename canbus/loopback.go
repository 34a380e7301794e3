package canbus

import "sync"

// Loopback is an in-memory CAN bus. Every endpoint opened from the same
// Loopback sees frames sent by every other endpoint, which is enough to
// emulate a two-node bus segment in tests and in the module simulator.
//
// Loopback also implements Driver; the channel name is ignored.
type Loopback struct {
	mu        sync.Mutex
	closed    bool
	endpoints map[*loopEndpoint]struct{}
}

func NewLoopback() *Loopback {
	return &Loopback{endpoints: make(map[*loopEndpoint]struct{})}
}

// Open attaches a new endpoint. Implements Driver.
func (l *Loopback) Open(channel string) (Bus, error) {
	return l.Endpoint(), nil
}

// Endpoint attaches a new endpoint to the bus.
func (l *Loopback) Endpoint() Bus {
	ep := &loopEndpoint{
		bus: l,
		rx:  make(chan CANMsg, 64),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		ep.dead = true
		close(ep.rx)
		return ep
	}
	l.endpoints[ep] = struct{}{}
	return ep
}

// Close detaches every endpoint. Pending frames are discarded.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for ep := range l.endpoints {
		ep.dead = true
		close(ep.rx)
	}
	l.endpoints = nil
	return nil
}

type loopEndpoint struct {
	bus  *Loopback
	rx   chan CANMsg
	dead bool // guarded by bus.mu
}

func (e *loopEndpoint) Send(msg CANMsg) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	if e.dead || e.bus.closed {
		return ERR_BUS_CLOSED
	}
	for ep := range e.bus.endpoints {
		if ep == e {
			continue
		}
		select {
		case ep.rx <- msg:
		default:
			// receiver has fallen behind, drop rather than stall the bus
		}
	}
	return nil
}

func (e *loopEndpoint) Receive() (CANMsg, error) {
	msg, ok := <-e.rx
	if !ok {
		return CANMsg{}, ERR_BUS_CLOSED
	}
	return msg, nil
}

func (e *loopEndpoint) Close() error {
	e.bus.mu.Lock()
	defer e.bus.mu.Unlock()
	if e.dead {
		return nil
	}
	e.dead = true
	close(e.rx)
	delete(e.bus.endpoints, e)
	return nil
}
