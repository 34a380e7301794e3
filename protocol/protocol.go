// Package protocol implements the OSCC drive-by-wire CAN codec: encoding
// actuation commands into wire frames and decoding module reports back out.
//
// Every frame is 8 bytes, little-endian, and carries the OSCC magic tag in
// bytes 0-1 and a CRC-8 (SAE J1850: poly 0x1D, init 0xFF, xor-out 0xFF)
// over bytes 0-6 in byte 7. Command and report frames place their scaled
// value in bytes 2-3; normalized [0, 1] values map onto the full unsigned
// 16-bit range (resolution 1/65535) and [-1, 1] values onto the signed
// 16-bit range (resolution 1/32767).
package protocol

// OSCC_MAGIC tags every command and report frame produced or accepted by
// this library. Frames without it are not ours.
const OSCC_MAGIC = 0x05CC

// Frame identifiers, one per command/report kind.
const (
	BRAKE_ENABLE_CAN_ID            = 0x070
	BRAKE_DISABLE_CAN_ID           = 0x071
	BRAKE_POSITION_COMMAND_CAN_ID  = 0x072
	BRAKE_REPORT_CAN_ID            = 0x073
	BRAKE_PRESSURE_COMMAND_CAN_ID  = 0x074
	STEERING_ENABLE_CAN_ID         = 0x080
	STEERING_DISABLE_CAN_ID        = 0x081
	STEERING_ANGLE_COMMAND_CAN_ID  = 0x082
	STEERING_REPORT_CAN_ID         = 0x083
	STEERING_TORQUE_COMMAND_CAN_ID = 0x084
	THROTTLE_ENABLE_CAN_ID         = 0x090
	THROTTLE_DISABLE_CAN_ID        = 0x091
	THROTTLE_COMMAND_CAN_ID        = 0x092
	THROTTLE_REPORT_CAN_ID         = 0x093
	FAULT_REPORT_CAN_ID            = 0x0AF
)

// ModuleKind identifies one of the three actuation modules.
type ModuleKind uint8

const (
	ModuleBrake ModuleKind = iota + 1
	ModuleSteering
	ModuleThrottle
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleBrake:
		return "brake"
	case ModuleSteering:
		return "steering"
	case ModuleThrottle:
		return "throttle"
	}
	return "unknown"
}

// ModuleKinds returns all modules in canonical order.
func ModuleKinds() []ModuleKind {
	return []ModuleKind{ModuleBrake, ModuleSteering, ModuleThrottle}
}

// ReportKind identifies the variant of a decoded Report.
type ReportKind uint8

const (
	ReportBrake ReportKind = iota + 1
	ReportSteering
	ReportThrottle
	ReportFault
)

func (k ReportKind) String() string {
	switch k {
	case ReportBrake:
		return "brake"
	case ReportSteering:
		return "steering"
	case ReportThrottle:
		return "throttle"
	case ReportFault:
		return "fault"
	}
	return "unknown"
}
