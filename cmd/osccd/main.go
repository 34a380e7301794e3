// osccd bridges a drive-by-wire CAN channel to HTTP/websocket clients and
// an optional MQTT broker, recording telemetry to an embedded blackbox
// database along the way.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v6"

	"github.com/roadwire/gooscc/canbus"
	"github.com/roadwire/gooscc/comms"
	"github.com/roadwire/gooscc/control"
	"github.com/roadwire/gooscc/recorder"
	"github.com/roadwire/gooscc/sim"
)

func main() {
	logger := log.New(os.Stdout, "[osccd] ", log.LstdFlags)

	configPath := flag.String("config", "", "Path to the YAML config file")
	channel := flag.String("channel", "", "CAN channel to open (overrides config)")
	listen := flag.String("listen", "", "ip:port to serve HTTP on (overrides config)")
	simulated := flag.Bool("sim", false, "Run against simulated modules instead of hardware")
	flag.Parse()

	envCfg := new(EnvConfig)
	if err := env.Parse(envCfg); err != nil {
		logger.Fatalf("parse environment: %v", err)
	}

	if envCfg.DEBUG {
		logger.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	path := envCfg.CONFIG
	if *configPath != "" {
		path = *configPath
	}
	cfg, err := loadConfig(path)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if envCfg.CHANNEL != "" {
		cfg.Channel = envCfg.CHANNEL
	}
	if envCfg.LISTEN != "" {
		cfg.Listen = envCfg.LISTEN
	}
	if *channel != "" {
		cfg.Channel = *channel
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	var driver canbus.Driver
	var rig *sim.Rig
	if *simulated {
		logger.Println("running with simulated modules")
		lb := canbus.NewLoopback()
		rig = sim.NewRig(lb, nil)
		defer rig.Close()
		driver = lb
	} else {
		driver = canbus.NewSocketCAN()
	}

	session := control.NewSession(driver, logger)
	if err := session.Open(cfg.Channel); err != nil {
		logger.Fatalf("%v", err)
	}

	conductor := comms.NewConductor(session, nil)
	defer conductor.Close()

	if cfg.MQTT.Broker != "" {
		if err := conductor.EnableMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic); err != nil {
			logger.Fatalf("%v", err)
		}
		logger.Printf("publishing telemetry to %s (%s)", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}

	if cfg.DBPath != "" {
		rec, err := recorder.Open(cfg.DBPath, nil)
		if err != nil {
			logger.Fatalf("open blackbox: %v", err)
		}
		defer rec.Close()
		rec.Attach(session)
		logger.Printf("recording telemetry to %s", cfg.DBPath)
	}

	go func() {
		logger.Printf("listening on %s", cfg.Listen)
		if err := http.ListenAndServe(cfg.Listen, conductor.Router()); err != nil {
			logger.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// disarm before dropping the channel
	logger.Println("shutting down, disabling modules")
	if err := session.Disable(); err != nil {
		logger.Printf("disable: %v", err)
	}
	if err := session.Close(); err != nil {
		logger.Printf("close: %v", err)
	}
}
