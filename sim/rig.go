// Package sim emulates the three drive-by-wire control modules on a
// loopback bus. It is used by tests and by the daemon's -sim flag to run
// the full stack without vehicle hardware.
package sim

import (
	"encoding/binary"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/roadwire/gooscc/canbus"
	"github.com/roadwire/gooscc/protocol"
)

const REPORT_INTERVAL = time.Second / 20

// SENSOR_JITTER is the peak noise added to echoed sensor values, in
// normalized units.
const SENSOR_JITTER = 0.002

type moduleState struct {
	enabled bool
	target  float64
}

// Rig plays the part of the module firmware: it honours enable/disable
// frames, tracks commanded targets, and periodically reports each module's
// measured value back onto the bus.
type Rig struct {
	bus    canbus.Bus
	logger *log.Logger

	mu      sync.Mutex
	modules map[protocol.ModuleKind]*moduleState
	jitter  float64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewRig attaches fake modules to the loopback bus and starts them.
func NewRig(lb *canbus.Loopback, logger *log.Logger) *Rig {
	if logger == nil {
		logger = log.New(os.Stdout, "[sim] ", log.LstdFlags)
	}

	r := &Rig{
		bus:     lb.Endpoint(),
		logger:  logger,
		modules: make(map[protocol.ModuleKind]*moduleState),
		jitter:  SENSOR_JITTER,
		done:    make(chan struct{}),
	}
	for _, kind := range protocol.ModuleKinds() {
		r.modules[kind] = &moduleState{}
	}

	r.wg.Add(2)
	go r.listen()
	go r.report()
	return r
}

// SetJitter overrides the sensor noise; tests use 0 for determinism.
func (r *Rig) SetJitter(j float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jitter = j
}

// InjectFault makes a module report a fault and drop out of enabled, the
// way real modules do on operator override.
func (r *Rig) InjectFault(kind protocol.ModuleKind, bits protocol.FaultBits) error {
	r.mu.Lock()
	r.modules[kind].enabled = false
	r.mu.Unlock()

	msg, err := protocol.FaultReport{Origin: kind, Faults: bits}.MarshalCANMsg()
	if err != nil {
		return err
	}
	return r.bus.Send(msg)
}

// Enabled reports whether the rig considers a module armed.
func (r *Rig) Enabled(kind protocol.ModuleKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modules[kind].enabled
}

func (r *Rig) Close() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	close(r.done)
	err := r.bus.Close()
	r.wg.Wait()
	return err
}

// listen consumes command frames the way module firmware would: enable and
// disable flip the armed flag, command frames stage a new target. Frames
// with a bad magic or checksum are ignored.
func (r *Rig) listen() {
	defer r.wg.Done()

	for {
		msg, err := r.bus.Receive()
		if err != nil {
			return
		}
		if len(msg.Data) != 8 {
			continue
		}
		if binary.LittleEndian.Uint16(msg.Data[0:2]) != protocol.OSCC_MAGIC {
			continue
		}
		if protocol.Checksum(msg.Data[:7]) != msg.Data[7] {
			continue
		}

		raw := binary.LittleEndian.Uint16(msg.Data[2:4])

		r.mu.Lock()
		switch msg.ID {
		case protocol.BRAKE_ENABLE_CAN_ID:
			r.modules[protocol.ModuleBrake].enabled = true
		case protocol.STEERING_ENABLE_CAN_ID:
			r.modules[protocol.ModuleSteering].enabled = true
		case protocol.THROTTLE_ENABLE_CAN_ID:
			r.modules[protocol.ModuleThrottle].enabled = true

		case protocol.BRAKE_DISABLE_CAN_ID:
			*r.modules[protocol.ModuleBrake] = moduleState{}
		case protocol.STEERING_DISABLE_CAN_ID:
			*r.modules[protocol.ModuleSteering] = moduleState{}
		case protocol.THROTTLE_DISABLE_CAN_ID:
			*r.modules[protocol.ModuleThrottle] = moduleState{}

		case protocol.BRAKE_POSITION_COMMAND_CAN_ID, protocol.BRAKE_PRESSURE_COMMAND_CAN_ID:
			r.stage(protocol.ModuleBrake, float64(raw)/0xFFFF)
		case protocol.THROTTLE_COMMAND_CAN_ID:
			r.stage(protocol.ModuleThrottle, float64(raw)/0xFFFF)
		case protocol.STEERING_ANGLE_COMMAND_CAN_ID, protocol.STEERING_TORQUE_COMMAND_CAN_ID:
			r.stage(protocol.ModuleSteering, float64(int16(raw))/0x7FFF)
		}
		r.mu.Unlock()
	}
}

// stage accepts a commanded target only while armed, mirroring the gate on
// the controller side.
func (r *Rig) stage(kind protocol.ModuleKind, target float64) {
	if st := r.modules[kind]; st.enabled {
		st.target = target
	}
}

// report periodically echoes each module's value back as a report frame.
func (r *Rig) report() {
	defer r.wg.Done()

	tick := time.NewTicker(REPORT_INTERVAL)
	defer tick.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-tick.C:
			r.sendReports()
		}
	}
}

func (r *Rig) sendReports() {
	r.mu.Lock()
	brake := *r.modules[protocol.ModuleBrake]
	steering := *r.modules[protocol.ModuleSteering]
	throttle := *r.modules[protocol.ModuleThrottle]
	jitter := r.jitter
	r.mu.Unlock()

	reports := []interface {
		MarshalCANMsg() (canbus.CANMsg, error)
	}{
		protocol.BrakeReport{
			PedalPosition: noisy(brake.target, jitter, 0, 1),
			Enabled:       brake.enabled,
		},
		protocol.SteeringReport{
			WheelAngle: noisy(steering.target, jitter, -1, 1),
			Enabled:    steering.enabled,
		},
		protocol.ThrottleReport{
			PedalPosition: noisy(throttle.target, jitter, 0, 1),
			Enabled:       throttle.enabled,
		},
	}

	for _, rep := range reports {
		msg, err := rep.MarshalCANMsg()
		if err != nil {
			r.logger.Printf("bad report: %v", err)
			continue
		}
		if err := r.bus.Send(msg); err != nil {
			return
		}
	}
}

func noisy(v, jitter, min, max float64) float64 {
	if jitter == 0 {
		return v
	}
	v += (rand.Float64()*2 - 1) * jitter
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
