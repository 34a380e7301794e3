package protocol

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/roadwire/gooscc/canbus"
)

func TestCommandRoundTrip(t *testing.T) {
	Convey("Unsigned commands round-trip within one LSU", t, func() {
		for _, v := range []float64{0, 0.001, 0.25, 0.5, 0.75, 0.999, 1} {
			msg, err := ThrottlePositionCommand{Position: v, Seq: 7}.MarshalCANMsg()
			So(err, ShouldBeNil)
			So(msg.ID, ShouldEqual, THROTTLE_COMMAND_CAN_ID)

			// reports share the value encoding, decode via a report frame
			rep, err := Decode(canbus.CANMsg{ID: THROTTLE_REPORT_CAN_ID, Data: msg.Data})
			So(err, ShouldBeNil)
			So(rep.(ThrottleReport).PedalPosition, ShouldAlmostEqual, v, 1.0/unsignedScale)
		}
	})

	Convey("Signed commands round-trip within one LSU", t, func() {
		for _, v := range []float64{-1, -0.5, -0.001, 0, 0.001, 0.5, 1} {
			msg, err := SteeringAngleCommand{Angle: v, Seq: 3}.MarshalCANMsg()
			So(err, ShouldBeNil)
			So(msg.ID, ShouldEqual, STEERING_ANGLE_COMMAND_CAN_ID)

			rep, err := Decode(canbus.CANMsg{ID: STEERING_REPORT_CAN_ID, Data: msg.Data})
			So(err, ShouldBeNil)
			So(rep.(SteeringReport).WheelAngle, ShouldAlmostEqual, v, 1.0/signedScale)
		}
	})
}

func TestCommandValidation(t *testing.T) {
	Convey("Out-of-domain values are rejected, never clamped", t, func() {
		cases := []Command{
			BrakePositionCommand{Position: 1.5},
			BrakePositionCommand{Position: -0.1},
			BrakePressureCommand{Pressure: 2},
			ThrottlePositionCommand{Position: -1},
			SteeringAngleCommand{Angle: 1.001},
			SteeringTorqueCommand{Torque: -1.2},
		}
		for _, cmd := range cases {
			So(cmd.Validate(), ShouldHaveSameTypeAs, OutOfRangeError{})
			_, err := cmd.MarshalCANMsg()
			So(err, ShouldHaveSameTypeAs, OutOfRangeError{})
		}
	})

	Convey("In-domain boundary values pass", t, func() {
		So(BrakePositionCommand{Position: 0}.Validate(), ShouldBeNil)
		So(BrakePositionCommand{Position: 1}.Validate(), ShouldBeNil)
		So(SteeringAngleCommand{Angle: -1}.Validate(), ShouldBeNil)
		So(SteeringAngleCommand{Angle: 1}.Validate(), ShouldBeNil)
	})
}

func TestCommandFrameLayout(t *testing.T) {
	Convey("Command frames carry magic, value, sequence and checksum", t, func() {
		msg, err := BrakePositionCommand{Position: 1, Seq: 0x2A}.MarshalCANMsg()
		So(err, ShouldBeNil)

		So(len(msg.Data), ShouldEqual, 8)
		So(msg.Data[0], ShouldEqual, 0xCC)
		So(msg.Data[1], ShouldEqual, 0x05)
		So(msg.Data[2], ShouldEqual, 0xFF)
		So(msg.Data[3], ShouldEqual, 0xFF)
		So(msg.Data[4], ShouldEqual, 0x2A)
		So(msg.Data[7], ShouldEqual, Checksum(msg.Data[:7]))
	})

	Convey("Enable and disable use per-module identifiers", t, func() {
		enable := map[ModuleKind]uint32{
			ModuleBrake:    BRAKE_ENABLE_CAN_ID,
			ModuleSteering: STEERING_ENABLE_CAN_ID,
			ModuleThrottle: THROTTLE_ENABLE_CAN_ID,
		}
		for kind, id := range enable {
			msg, err := EnableCommand{Target: kind}.MarshalCANMsg()
			So(err, ShouldBeNil)
			So(msg.ID, ShouldEqual, id)

			msg, err = DisableCommand{Target: kind}.MarshalCANMsg()
			So(err, ShouldBeNil)
			So(msg.ID, ShouldEqual, id+1)
		}

		_, err := EnableCommand{Target: 9}.MarshalCANMsg()
		So(err, ShouldNotBeNil)
	})
}

func TestDecode(t *testing.T) {
	Convey("Valid reports decode", t, func() {
		msg, err := BrakeReport{PedalPosition: 0.5, Enabled: true, DTC: 3}.MarshalCANMsg()
		So(err, ShouldBeNil)

		rep, err := Decode(msg)
		So(err, ShouldBeNil)
		br := rep.(BrakeReport)
		So(br.Kind(), ShouldEqual, ReportBrake)
		So(br.PedalPosition, ShouldAlmostEqual, 0.5, 1.0/unsignedScale)
		So(br.Enabled, ShouldBeTrue)
		So(br.DTC, ShouldEqual, 3)
	})

	Convey("A tampered checksum always fails", t, func() {
		msg, _ := SteeringReport{WheelAngle: -0.25}.MarshalCANMsg()
		for i := 0; i < 7; i++ {
			bad := canbus.CANMsg{ID: msg.ID, Data: append([]byte(nil), msg.Data...)}
			bad.Data[i] ^= 0x01
			_, err := Decode(bad)
			So(err, ShouldNotBeNil)
		}

		bad := canbus.CANMsg{ID: msg.ID, Data: append([]byte(nil), msg.Data...)}
		bad.Data[7] ^= 0xFF
		_, err := Decode(bad)
		So(err, ShouldEqual, ErrBadChecksum)
	})

	Convey("A missing magic tag fails", t, func() {
		msg, _ := ThrottleReport{PedalPosition: 0.1}.MarshalCANMsg()
		msg.Data[0] = 0x00
		msg.Data[7] = Checksum(msg.Data[:7]) // checksum valid, magic wrong
		_, err := Decode(msg)
		So(err, ShouldEqual, ErrBadMagic)
	})

	Convey("Unknown frame identifiers are noise", t, func() {
		_, err := Decode(canbus.CANMsg{ID: 0x2B0, Data: make([]byte, 8)})
		So(err, ShouldEqual, ErrUnknownFrameID)

		// command ids are not reports either
		_, err = Decode(canbus.CANMsg{ID: BRAKE_POSITION_COMMAND_CAN_ID, Data: make([]byte, 8)})
		So(err, ShouldEqual, ErrUnknownFrameID)
	})

	Convey("Truncated frames fail", t, func() {
		_, err := Decode(canbus.CANMsg{ID: BRAKE_REPORT_CAN_ID, Data: make([]byte, 4)})
		So(err, ShouldEqual, ErrFrameLength)
	})
}

func TestFaultReport(t *testing.T) {
	Convey("Fault reports round-trip origin and bitmask", t, func() {
		in := FaultReport{Origin: ModuleSteering, Faults: FaultOperatorOverride | FaultWatchdog}
		msg, err := in.MarshalCANMsg()
		So(err, ShouldBeNil)
		So(msg.ID, ShouldEqual, FAULT_REPORT_CAN_ID)

		rep, err := Decode(msg)
		So(err, ShouldBeNil)
		So(rep, ShouldResemble, in)
	})

	Convey("An unknown origin is rejected", t, func() {
		in := FaultReport{Origin: ModuleBrake, Faults: FaultWatchdog}
		msg, _ := in.MarshalCANMsg()
		msg.Data[2] = 0x7F
		msg.Data[7] = Checksum(msg.Data[:7])
		_, err := Decode(msg)
		So(err, ShouldEqual, ErrBadOrigin)
	})

	Convey("Fault bits expand to names", t, func() {
		bits := FaultOperatorOverride | FaultCommandTimeout
		So(bits.Strings(), ShouldResemble, []string{"operator override", "command timeout"})
		So(FaultBits(0).Strings(), ShouldBeEmpty)
	})
}

func TestChecksum(t *testing.T) {
	Convey("CRC-8/SAE-J1850 check value", t, func() {
		// standard check input "123456789" -> 0x4B
		So(Checksum([]byte("123456789")), ShouldEqual, 0x4B)
	})
}
