package control

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roadwire/gooscc/canbus"
	"github.com/roadwire/gooscc/protocol"
)

var (
	ErrAlreadyOpen = errors.New("control: channel already open")
	ErrNotOpen     = errors.New("control: channel not open")
)

// Session is one connection to the drive-by-wire modules. It owns the bus
// handle between Open and Close, runs the receive loop, and exposes the
// publish/subscribe surface. Sessions are independent: tests can run
// several against separate buses.
type Session struct {
	driver canbus.Driver
	logger *log.Logger

	modules *Modules
	reports *Dispatcher

	mu   sync.Mutex
	bus  canbus.Bus
	done chan struct{}
	wg   sync.WaitGroup

	seq     uint32
	dropped uint64
}

// NewSession creates a closed session using the given bus driver. A nil
// logger falls back to stdout.
func NewSession(driver canbus.Driver, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(os.Stdout, "[oscc] ", log.LstdFlags)
	}
	modules := NewModules()
	return &Session{
		driver:  driver,
		logger:  logger,
		modules: modules,
		reports: newDispatcher(modules, logger),
	}
}

// Open acquires the transport on the given channel and starts the receive
// loop. It fails if the session is already open or the driver rejects the
// channel.
func (s *Session) Open(channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus != nil {
		return ErrAlreadyOpen
	}

	bus, err := s.driver.Open(channel)
	if err != nil {
		return fmt.Errorf("open channel %q: %w", channel, err)
	}

	s.bus = bus
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.receive(bus, s.done)
	return nil
}

// Close stops the receive loop, releases the transport and returns every
// module to Disabled.
func (s *Session) Close() error {
	s.mu.Lock()
	bus := s.bus
	if bus == nil {
		s.mu.Unlock()
		return ErrNotOpen
	}
	s.bus = nil
	close(s.done)
	s.mu.Unlock()

	err := bus.Close() // unblocks Receive
	s.wg.Wait()
	s.modules.Reset()
	return err
}

// Enable arms all modules: it refuses while any module holds a fault, and
// otherwise sends the wire enable command to each module before marking it
// enabled locally.
func (s *Session) Enable() error {
	bus, err := s.currentBus()
	if err != nil {
		return err
	}
	if s.modules.AnyFaulted() {
		return ErrAlreadyFaulted
	}

	for _, kind := range protocol.ModuleKinds() {
		if err := s.send(bus, protocol.EnableCommand{Target: kind}); err != nil {
			return fmt.Errorf("enable %s: %w", kind, err)
		}
		if err := s.modules.Enable(kind); err != nil {
			// a fault report raced the enable, stop arming
			return fmt.Errorf("enable %s: %w", kind, err)
		}
	}
	return nil
}

// Disable disarms all modules. Local state is cleared first and
// unconditionally, so Disable is effective even when the transport is
// gone or the receive loop is mid-dispatch; wire disable commands are then
// sent best-effort.
func (s *Session) Disable() error {
	for _, kind := range protocol.ModuleKinds() {
		s.modules.Disable(kind)
	}

	bus, err := s.currentBus()
	if err != nil {
		return nil // nothing on the wire to disarm
	}

	var firstErr error
	for _, kind := range protocol.ModuleKinds() {
		if err := s.send(bus, protocol.DisableCommand{Target: kind}); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("disable %s: %w", kind, err)
		}
	}
	return firstErr
}

// PublishBrakePosition requests a brake pedal position in [0, 1].
func (s *Session) PublishBrakePosition(position float64) error {
	return s.publish(protocol.BrakePositionCommand{Position: position, Seq: s.nextSeq()})
}

// PublishBrakePressure requests a brake line pressure in [0, 1].
func (s *Session) PublishBrakePressure(pressure float64) error {
	return s.publish(protocol.BrakePressureCommand{Pressure: pressure, Seq: s.nextSeq()})
}

// PublishThrottlePosition requests a throttle pedal position in [0, 1].
func (s *Session) PublishThrottlePosition(position float64) error {
	return s.publish(protocol.ThrottlePositionCommand{Position: position, Seq: s.nextSeq()})
}

// PublishSteeringAngle requests a steering wheel angle in [-1, 1].
func (s *Session) PublishSteeringAngle(angle float64) error {
	return s.publish(protocol.SteeringAngleCommand{Angle: angle, Seq: s.nextSeq()})
}

// PublishSteeringTorque requests a steering wheel torque in [-1, 1].
func (s *Session) PublishSteeringTorque(torque float64) error {
	return s.publish(protocol.SteeringTorqueCommand{Torque: torque, Seq: s.nextSeq()})
}

// publish validates the command's domain, checks the module gate, then
// encodes and sends. The gate is the core safety invariant: while a module
// is Disabled or Faulted no frame reaches the transport.
func (s *Session) publish(cmd protocol.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	bus, err := s.currentBus()
	if err != nil {
		return err
	}
	if err := s.modules.Gate(cmd.Module()); err != nil {
		return fmt.Errorf("%s: %w", cmd.Module(), err)
	}

	return s.send(bus, cmd)
}

func (s *Session) send(bus canbus.Bus, cmd protocol.Command) error {
	msg, err := cmd.MarshalCANMsg()
	if err != nil {
		return err
	}
	return bus.Send(msg)
}

func (s *Session) SubscribeToBrakeReports(h BrakeHandler)       { s.reports.subscribeBrake(h) }
func (s *Session) SubscribeToThrottleReports(h ThrottleHandler) { s.reports.subscribeThrottle(h) }
func (s *Session) SubscribeToSteeringReports(h SteeringHandler) { s.reports.subscribeSteering(h) }
func (s *Session) SubscribeToFaultReports(h FaultHandler)       { s.reports.subscribeFault(h) }
func (s *Session) SubscribeToOBDMessages(h OBDHandler)          { s.reports.subscribeOBD(h) }

// States returns a consistent snapshot of every module.
func (s *Session) States() []ModuleStatus {
	return s.modules.Snapshot()
}

// DroppedFrames counts inbound protocol frames discarded for failing
// validation (bad magic, bad checksum, truncation).
func (s *Session) DroppedFrames() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

func (s *Session) currentBus() (canbus.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus == nil {
		return nil, ErrNotOpen
	}
	return s.bus, nil
}

func (s *Session) nextSeq() uint8 {
	return uint8(atomic.AddUint32(&s.seq, 1))
}

// receive is the session's single inbound loop. Malformed frames are
// counted and dropped; frames with non-protocol identifiers are relayed to
// OBD subscribers raw. Nothing that arrives on the bus can terminate the
// loop except the transport closing.
func (s *Session) receive(bus canbus.Bus, done chan struct{}) {
	defer s.wg.Done()

	for {
		msg, err := bus.Receive()
		if err != nil {
			select {
			case <-done:
			default:
				s.logger.Printf("receive loop stopped: %v", err)
			}
			return
		}

		rep, err := protocol.Decode(msg)
		switch {
		case err == nil:
			s.reports.dispatch(rep, time.Now())
		case errors.Is(err, protocol.ErrUnknownFrameID):
			s.reports.dispatchOBD(msg.ID, msg.Data)
		default:
			atomic.AddUint64(&s.dropped, 1)
		}
	}
}
