// oscc-shell is an interactive development shell for poking the
// drive-by-wire modules: arm them, command values, and watch faults come
// back.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/roadwire/gooscc/canbus"
	"github.com/roadwire/gooscc/control"
	"github.com/roadwire/gooscc/protocol"
	"github.com/roadwire/gooscc/sim"
)

func main() {
	channel := flag.String("channel", "can0", "CAN channel to open")
	simulated := flag.Bool("sim", false, "Run against simulated modules")
	flag.Parse()

	logger := log.New(os.Stdout, "[oscc] ", log.LstdFlags)

	var driver canbus.Driver
	if *simulated {
		lb := canbus.NewLoopback()
		rig := sim.NewRig(lb, nil)
		defer rig.Close()
		driver = lb
	} else {
		driver = canbus.NewSocketCAN()
	}

	session := control.NewSession(driver, logger)

	shell := ishell.New()
	shell.Println("OSCC development shell")
	shell.ShowPrompt(true)

	session.SubscribeToFaultReports(func(r *protocol.FaultReport) {
		shell.Printf("\n!! fault from %s: %v\n", r.Origin, r.Faults.Strings())
	})

	floatArg := func(c *ishell.Context) (float64, bool) {
		if len(c.Args) < 1 {
			c.Err(fmt.Errorf("missing value argument"))
			return 0, false
		}
		v, err := strconv.ParseFloat(c.Args[0], 64)
		if err != nil {
			c.Err(err)
			return 0, false
		}
		return v, true
	}

	report := func(c *ishell.Context, err error) {
		if err != nil {
			c.Err(err)
		} else {
			c.Println("ok")
		}
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "open",
		Help: "open [channel]",
		Func: func(c *ishell.Context) {
			ch := *channel
			if len(c.Args) >= 1 {
				ch = c.Args[0]
			}
			report(c, session.Open(ch))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "close",
		Help: "close the channel",
		Func: func(c *ishell.Context) {
			report(c, session.Close())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "enable",
		Help: "arm all modules",
		Func: func(c *ishell.Context) {
			report(c, session.Enable())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "disable",
		Help: "disarm all modules (also clears faults)",
		Func: func(c *ishell.Context) {
			report(c, session.Disable())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "brake",
		Help: "brake <position 0..1>",
		Func: func(c *ishell.Context) {
			if v, ok := floatArg(c); ok {
				report(c, session.PublishBrakePosition(v))
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "pressure",
		Help: "pressure <brake pressure 0..1>",
		Func: func(c *ishell.Context) {
			if v, ok := floatArg(c); ok {
				report(c, session.PublishBrakePressure(v))
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "throttle",
		Help: "throttle <position 0..1>",
		Func: func(c *ishell.Context) {
			if v, ok := floatArg(c); ok {
				report(c, session.PublishThrottlePosition(v))
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "steer",
		Help: "steer <angle -1..1>",
		Func: func(c *ishell.Context) {
			if v, ok := floatArg(c); ok {
				report(c, session.PublishSteeringAngle(v))
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "torque",
		Help: "torque <steering torque -1..1>",
		Func: func(c *ishell.Context) {
			if v, ok := floatArg(c); ok {
				report(c, session.PublishSteeringTorque(v))
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "print module states",
		Func: func(c *ishell.Context) {
			for _, st := range session.States() {
				line := fmt.Sprintf("%-9s %s", st.Module, st.State)
				if !st.LastReport.IsZero() {
					line += fmt.Sprintf("  last report %s", st.LastReport.Format("15:04:05.000"))
				}
				if faults := st.LastFaults.Strings(); len(faults) > 0 {
					line += fmt.Sprintf("  faults: %v", faults)
				}
				c.Println(line)
			}
			c.Printf("dropped frames: %d\n", session.DroppedFrames())
		},
	})

	shell.Run()

	// disarm on the way out
	session.Disable()
	session.Close()
}
