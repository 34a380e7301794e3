package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/roadwire/gooscc/canbus"
)

// Command is an outbound frame destined for a control module. Validate
// checks the value domain without encoding; MarshalCANMsg validates and
// encodes.
type Command interface {
	Module() ModuleKind
	Validate() error
	MarshalCANMsg() (canbus.CANMsg, error)
}

// buildFrame lays out the common command frame: magic, 16-bit value,
// sequence byte, trailing checksum.
func buildFrame(id uint32, value uint16, seq uint8) canbus.CANMsg {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:2], OSCC_MAGIC)
	binary.LittleEndian.PutUint16(data[2:4], value)
	data[4] = seq
	data[7] = Checksum(data[:7])
	return canbus.CANMsg{ID: id, Data: data}
}

// BrakePositionCommand requests a brake pedal position in [0, 1].
type BrakePositionCommand struct {
	Position float64
	Seq      uint8
}

func (BrakePositionCommand) Module() ModuleKind { return ModuleBrake }

func (c BrakePositionCommand) Validate() error {
	return checkUnsigned("brake position", c.Position)
}

func (c BrakePositionCommand) MarshalCANMsg() (canbus.CANMsg, error) {
	if err := c.Validate(); err != nil {
		return canbus.CANMsg{}, err
	}
	return buildFrame(BRAKE_POSITION_COMMAND_CAN_ID, scaleUnsigned(c.Position), c.Seq), nil
}

// BrakePressureCommand requests a brake line pressure in [0, 1].
type BrakePressureCommand struct {
	Pressure float64
	Seq      uint8
}

func (BrakePressureCommand) Module() ModuleKind { return ModuleBrake }

func (c BrakePressureCommand) Validate() error {
	return checkUnsigned("brake pressure", c.Pressure)
}

func (c BrakePressureCommand) MarshalCANMsg() (canbus.CANMsg, error) {
	if err := c.Validate(); err != nil {
		return canbus.CANMsg{}, err
	}
	return buildFrame(BRAKE_PRESSURE_COMMAND_CAN_ID, scaleUnsigned(c.Pressure), c.Seq), nil
}

// ThrottlePositionCommand requests a throttle pedal position in [0, 1].
type ThrottlePositionCommand struct {
	Position float64
	Seq      uint8
}

func (ThrottlePositionCommand) Module() ModuleKind { return ModuleThrottle }

func (c ThrottlePositionCommand) Validate() error {
	return checkUnsigned("throttle position", c.Position)
}

func (c ThrottlePositionCommand) MarshalCANMsg() (canbus.CANMsg, error) {
	if err := c.Validate(); err != nil {
		return canbus.CANMsg{}, err
	}
	return buildFrame(THROTTLE_COMMAND_CAN_ID, scaleUnsigned(c.Position), c.Seq), nil
}

// SteeringAngleCommand requests a steering wheel angle in [-1, 1].
type SteeringAngleCommand struct {
	Angle float64
	Seq   uint8
}

func (SteeringAngleCommand) Module() ModuleKind { return ModuleSteering }

func (c SteeringAngleCommand) Validate() error {
	return checkSigned("steering angle", c.Angle)
}

func (c SteeringAngleCommand) MarshalCANMsg() (canbus.CANMsg, error) {
	if err := c.Validate(); err != nil {
		return canbus.CANMsg{}, err
	}
	return buildFrame(STEERING_ANGLE_COMMAND_CAN_ID, uint16(scaleSigned(c.Angle)), c.Seq), nil
}

// SteeringTorqueCommand requests a steering wheel torque in [-1, 1].
type SteeringTorqueCommand struct {
	Torque float64
	Seq    uint8
}

func (SteeringTorqueCommand) Module() ModuleKind { return ModuleSteering }

func (c SteeringTorqueCommand) Validate() error {
	return checkSigned("steering torque", c.Torque)
}

func (c SteeringTorqueCommand) MarshalCANMsg() (canbus.CANMsg, error) {
	if err := c.Validate(); err != nil {
		return canbus.CANMsg{}, err
	}
	return buildFrame(STEERING_TORQUE_COMMAND_CAN_ID, uint16(scaleSigned(c.Torque)), c.Seq), nil
}

// EnableCommand arms one module.
type EnableCommand struct {
	Target ModuleKind
}

func (c EnableCommand) Module() ModuleKind { return c.Target }

func (c EnableCommand) Validate() error {
	_, err := enableID(c.Target)
	return err
}

func (c EnableCommand) MarshalCANMsg() (canbus.CANMsg, error) {
	id, err := enableID(c.Target)
	if err != nil {
		return canbus.CANMsg{}, err
	}
	return buildFrame(id, 0, 0), nil
}

// DisableCommand disarms one module.
type DisableCommand struct {
	Target ModuleKind
}

func (c DisableCommand) Module() ModuleKind { return c.Target }

func (c DisableCommand) Validate() error {
	_, err := disableID(c.Target)
	return err
}

func (c DisableCommand) MarshalCANMsg() (canbus.CANMsg, error) {
	id, err := disableID(c.Target)
	if err != nil {
		return canbus.CANMsg{}, err
	}
	return buildFrame(id, 0, 0), nil
}

func enableID(kind ModuleKind) (uint32, error) {
	switch kind {
	case ModuleBrake:
		return BRAKE_ENABLE_CAN_ID, nil
	case ModuleSteering:
		return STEERING_ENABLE_CAN_ID, nil
	case ModuleThrottle:
		return THROTTLE_ENABLE_CAN_ID, nil
	}
	return 0, fmt.Errorf("protocol: unknown module %d", kind)
}

func disableID(kind ModuleKind) (uint32, error) {
	switch kind {
	case ModuleBrake:
		return BRAKE_DISABLE_CAN_ID, nil
	case ModuleSteering:
		return STEERING_DISABLE_CAN_ID, nil
	case ModuleThrottle:
		return THROTTLE_DISABLE_CAN_ID, nil
	}
	return 0, fmt.Errorf("protocol: unknown module %d", kind)
}
