package protocol

import (
	"encoding/binary"
	"errors"

	"github.com/roadwire/gooscc/canbus"
)

// Decode errors. Frames failing any of these checks are dropped by the
// receive loop, never dispatched.
var (
	ErrFrameLength    = errors.New("protocol: bad frame length")
	ErrBadMagic       = errors.New("protocol: bad magic tag")
	ErrBadChecksum    = errors.New("protocol: checksum mismatch")
	ErrUnknownFrameID = errors.New("protocol: unknown frame id")
	ErrBadOrigin      = errors.New("protocol: fault report from unknown module")
)

// Report is an inbound status message decoded from a module frame.
type Report interface {
	Kind() ReportKind
}

// BrakeReport carries the brake module's measured pedal position and its
// own operator-override enable state.
type BrakeReport struct {
	PedalPosition float64 // normalized [0, 1]
	Enabled       bool
	DTC           uint8 // module diagnostic code, 0 when healthy
}

func (BrakeReport) Kind() ReportKind { return ReportBrake }

func (r BrakeReport) MarshalCANMsg() (canbus.CANMsg, error) {
	if err := checkUnsigned("brake pedal position", r.PedalPosition); err != nil {
		return canbus.CANMsg{}, err
	}
	return buildReportFrame(BRAKE_REPORT_CAN_ID, scaleUnsigned(r.PedalPosition), r.Enabled, r.DTC), nil
}

// ThrottleReport carries the throttle module's measured pedal position.
type ThrottleReport struct {
	PedalPosition float64 // normalized [0, 1]
	Enabled       bool
	DTC           uint8
}

func (ThrottleReport) Kind() ReportKind { return ReportThrottle }

func (r ThrottleReport) MarshalCANMsg() (canbus.CANMsg, error) {
	if err := checkUnsigned("throttle pedal position", r.PedalPosition); err != nil {
		return canbus.CANMsg{}, err
	}
	return buildReportFrame(THROTTLE_REPORT_CAN_ID, scaleUnsigned(r.PedalPosition), r.Enabled, r.DTC), nil
}

// SteeringReport carries the steering module's measured wheel angle.
type SteeringReport struct {
	WheelAngle float64 // normalized [-1, 1]
	Enabled    bool
	DTC        uint8
}

func (SteeringReport) Kind() ReportKind { return ReportSteering }

func (r SteeringReport) MarshalCANMsg() (canbus.CANMsg, error) {
	if err := checkSigned("steering wheel angle", r.WheelAngle); err != nil {
		return canbus.CANMsg{}, err
	}
	return buildReportFrame(STEERING_REPORT_CAN_ID, uint16(scaleSigned(r.WheelAngle)), r.Enabled, r.DTC), nil
}

// FaultBits is the bitmask identifying which subsystems tripped.
type FaultBits uint16

const (
	FaultInvalidSensorValue FaultBits = 1 << iota
	FaultOperatorOverride
	FaultVoltageOutOfRange
	FaultActuatorTimeout
	FaultCommandTimeout
	FaultWatchdog
)

var faultNames = []struct {
	bit  FaultBits
	name string
}{
	{FaultInvalidSensorValue, "invalid sensor value"},
	{FaultOperatorOverride, "operator override"},
	{FaultVoltageOutOfRange, "voltage out of range"},
	{FaultActuatorTimeout, "actuator timeout"},
	{FaultCommandTimeout, "command timeout"},
	{FaultWatchdog, "watchdog"},
}

// Strings expands the mask into human-readable fault names.
func (f FaultBits) Strings() []string {
	var out []string
	for _, fn := range faultNames {
		if f&fn.bit != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

// FaultReport announces that a module can no longer safely accept
// commands.
type FaultReport struct {
	Origin ModuleKind
	Faults FaultBits
}

func (FaultReport) Kind() ReportKind { return ReportFault }

func (r FaultReport) MarshalCANMsg() (canbus.CANMsg, error) {
	switch r.Origin {
	case ModuleBrake, ModuleSteering, ModuleThrottle:
	default:
		return canbus.CANMsg{}, ErrBadOrigin
	}
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:2], OSCC_MAGIC)
	data[2] = byte(r.Origin)
	binary.LittleEndian.PutUint16(data[3:5], uint16(r.Faults))
	data[7] = Checksum(data[:7])
	return canbus.CANMsg{ID: FAULT_REPORT_CAN_ID, Data: data}, nil
}

func buildReportFrame(id uint32, value uint16, enabled bool, dtc uint8) canbus.CANMsg {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:2], OSCC_MAGIC)
	binary.LittleEndian.PutUint16(data[2:4], value)
	if enabled {
		data[4] = 1
	}
	data[5] = dtc
	data[7] = Checksum(data[:7])
	return canbus.CANMsg{ID: id, Data: data}
}

// Decode validates and decodes an inbound report frame. It is pure: no
// state is read or written. Frames whose identifier is not a known report
// fail with ErrUnknownFrameID and should be treated as bus noise (or OBD
// traffic) by the caller.
func Decode(msg canbus.CANMsg) (Report, error) {
	switch msg.ID {
	case BRAKE_REPORT_CAN_ID, THROTTLE_REPORT_CAN_ID, STEERING_REPORT_CAN_ID, FAULT_REPORT_CAN_ID:
	default:
		return nil, ErrUnknownFrameID
	}

	if len(msg.Data) != 8 {
		return nil, ErrFrameLength
	}
	if binary.LittleEndian.Uint16(msg.Data[0:2]) != OSCC_MAGIC {
		return nil, ErrBadMagic
	}
	if Checksum(msg.Data[:7]) != msg.Data[7] {
		return nil, ErrBadChecksum
	}

	switch msg.ID {
	case BRAKE_REPORT_CAN_ID:
		return BrakeReport{
			PedalPosition: unscaleUnsigned(binary.LittleEndian.Uint16(msg.Data[2:4])),
			Enabled:       msg.Data[4] != 0,
			DTC:           msg.Data[5],
		}, nil

	case THROTTLE_REPORT_CAN_ID:
		return ThrottleReport{
			PedalPosition: unscaleUnsigned(binary.LittleEndian.Uint16(msg.Data[2:4])),
			Enabled:       msg.Data[4] != 0,
			DTC:           msg.Data[5],
		}, nil

	case STEERING_REPORT_CAN_ID:
		return SteeringReport{
			WheelAngle: unscaleSigned(int16(binary.LittleEndian.Uint16(msg.Data[2:4]))),
			Enabled:    msg.Data[4] != 0,
			DTC:        msg.Data[5],
		}, nil

	default: // FAULT_REPORT_CAN_ID
		origin := ModuleKind(msg.Data[2])
		switch origin {
		case ModuleBrake, ModuleSteering, ModuleThrottle:
		default:
			return nil, ErrBadOrigin
		}
		return FaultReport{
			Origin: origin,
			Faults: FaultBits(binary.LittleEndian.Uint16(msg.Data[3:5])),
		}, nil
	}
}
