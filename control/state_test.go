package control

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/roadwire/gooscc/protocol"
)

func TestModuleTransitions(t *testing.T) {
	Convey("Modules start disabled", t, func() {
		m := NewModules()
		for _, kind := range protocol.ModuleKinds() {
			So(m.StateOf(kind), ShouldEqual, Disabled)
			So(m.Gate(kind), ShouldEqual, ErrModuleNotEnabled)
		}
	})

	Convey("Enable and disable", t, func() {
		m := NewModules()

		So(m.Enable(protocol.ModuleBrake), ShouldBeNil)
		So(m.StateOf(protocol.ModuleBrake), ShouldEqual, Enabled)
		So(m.Gate(protocol.ModuleBrake), ShouldBeNil)

		Convey("enabling twice is a no-op", func() {
			So(m.Enable(protocol.ModuleBrake), ShouldBeNil)
			So(m.StateOf(protocol.ModuleBrake), ShouldEqual, Enabled)
		})

		Convey("disable always lands in Disabled", func() {
			m.Disable(protocol.ModuleBrake)
			So(m.StateOf(protocol.ModuleBrake), ShouldEqual, Disabled)
			m.Disable(protocol.ModuleBrake)
			So(m.StateOf(protocol.ModuleBrake), ShouldEqual, Disabled)
		})
	})

	Convey("Faults are one-way until disabled", t, func() {
		m := NewModules()
		So(m.Enable(protocol.ModuleSteering), ShouldBeNil)

		m.Fault(protocol.ModuleSteering, protocol.FaultOperatorOverride)
		So(m.StateOf(protocol.ModuleSteering), ShouldEqual, Faulted)
		So(m.AnyFaulted(), ShouldBeTrue)

		Convey("enable refuses while faulted", func() {
			So(m.Enable(protocol.ModuleSteering), ShouldEqual, ErrAlreadyFaulted)
			So(m.StateOf(protocol.ModuleSteering), ShouldEqual, Faulted)
		})

		Convey("gate refuses while faulted", func() {
			So(m.Gate(protocol.ModuleSteering), ShouldEqual, ErrModuleNotEnabled)
		})

		Convey("an explicit disable clears the fault", func() {
			m.Disable(protocol.ModuleSteering)
			So(m.StateOf(protocol.ModuleSteering), ShouldEqual, Disabled)
			So(m.Enable(protocol.ModuleSteering), ShouldBeNil)
		})

		Convey("faulting a disabled module still lands in Faulted", func() {
			m.Disable(protocol.ModuleSteering)
			m.Fault(protocol.ModuleSteering, protocol.FaultWatchdog)
			So(m.StateOf(protocol.ModuleSteering), ShouldEqual, Faulted)
		})
	})

	Convey("Snapshot is ordered and carries fault detail", t, func() {
		m := NewModules()
		m.Fault(protocol.ModuleThrottle, protocol.FaultCommandTimeout)
		m.Observe(protocol.ModuleBrake, time.Unix(1700000000, 0))

		snap := m.Snapshot()
		So(snap, ShouldHaveLength, 3)
		So(snap[0].Module, ShouldEqual, protocol.ModuleBrake)
		So(snap[0].LastReport, ShouldEqual, time.Unix(1700000000, 0))
		So(snap[2].Module, ShouldEqual, protocol.ModuleThrottle)
		So(snap[2].State, ShouldEqual, Faulted)
		So(snap[2].LastFaults, ShouldEqual, protocol.FaultCommandTimeout)
	})

	Convey("Reset disables everything", t, func() {
		m := NewModules()
		So(m.Enable(protocol.ModuleBrake), ShouldBeNil)
		m.Fault(protocol.ModuleThrottle, protocol.FaultWatchdog)

		m.Reset()
		for _, kind := range protocol.ModuleKinds() {
			So(m.StateOf(kind), ShouldEqual, Disabled)
		}
	})
}
