// Package comms fans live telemetry out of a control session to websocket
// clients and an optional MQTT broker, and serves the daemon's HTTP API.
package comms

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqttLib "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/roadwire/gooscc/control"
	"github.com/roadwire/gooscc/protocol"
)

// Update is one JSON document pushed to clients whenever a report arrives.
type Update struct {
	Kind    string    `json:"kind"`
	Module  string    `json:"module"`
	Value   float64   `json:"value"`
	Enabled bool      `json:"enabled"`
	Faults  []string  `json:"faults,omitempty"`
	At      time.Time `json:"at"`
}

// Conductor subscribes to a session's reports, keeps the latest update per
// kind, and broadcasts every update to connected clients.
type Conductor struct {
	session *control.Session
	logger  *log.Logger

	mu      sync.Mutex
	latest  map[string]Update
	clients map[*websocket.Conn]struct{}

	mqtt      mqttLib.Client
	mqttTopic string
}

func NewConductor(sess *control.Session, logger *log.Logger) *Conductor {
	if logger == nil {
		logger = log.New(os.Stdout, "[comms] ", log.LstdFlags)
	}

	c := &Conductor{
		session: sess,
		logger:  logger,
		latest:  make(map[string]Update),
		clients: make(map[*websocket.Conn]struct{}),
	}

	sess.SubscribeToBrakeReports(func(r *protocol.BrakeReport) {
		c.push(Update{
			Kind:    protocol.ReportBrake.String(),
			Module:  protocol.ModuleBrake.String(),
			Value:   r.PedalPosition,
			Enabled: r.Enabled,
			At:      time.Now(),
		})
	})
	sess.SubscribeToThrottleReports(func(r *protocol.ThrottleReport) {
		c.push(Update{
			Kind:    protocol.ReportThrottle.String(),
			Module:  protocol.ModuleThrottle.String(),
			Value:   r.PedalPosition,
			Enabled: r.Enabled,
			At:      time.Now(),
		})
	})
	sess.SubscribeToSteeringReports(func(r *protocol.SteeringReport) {
		c.push(Update{
			Kind:    protocol.ReportSteering.String(),
			Module:  protocol.ModuleSteering.String(),
			Value:   r.WheelAngle,
			Enabled: r.Enabled,
			At:      time.Now(),
		})
	})
	sess.SubscribeToFaultReports(func(r *protocol.FaultReport) {
		c.push(Update{
			Kind:   protocol.ReportFault.String(),
			Module: r.Origin.String(),
			Faults: r.Faults.Strings(),
			At:     time.Now(),
		})
	})

	return c
}

// EnableMQTT connects to a broker and mirrors every update onto
// topic/<kind> with the update as JSON payload.
func (c *Conductor) EnableMQTT(broker, clientID, topic string) error {
	opts := mqttLib.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqttLib.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}

	c.mu.Lock()
	c.mqtt = client
	c.mqttTopic = topic
	c.mu.Unlock()
	return nil
}

// Latest returns the most recent update per report kind.
func (c *Conductor) Latest() map[string]Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Update, len(c.latest))
	for k, v := range c.latest {
		out[k] = v
	}
	return out
}

// Close disconnects MQTT and drops websocket clients.
func (c *Conductor) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mqtt != nil {
		c.mqtt.Disconnect(250)
		c.mqtt = nil
	}
	for conn := range c.clients {
		conn.Close()
	}
	c.clients = make(map[*websocket.Conn]struct{})
}

// push runs on the session's receive loop; broadcast errors only drop the
// offending client, never the loop.
func (c *Conductor) push(u Update) {
	payload, err := json.Marshal(u)
	if err != nil {
		c.logger.Printf("marshal update: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest[u.Kind] = u

	if c.mqtt != nil {
		c.mqtt.Publish(c.mqttTopic+"/"+u.Kind, 0, false, payload)
	}

	for conn := range c.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.logger.Printf("websocket client dropped: %v", err)
			conn.Close()
			delete(c.clients, conn)
		}
	}
}

func (c *Conductor) addClient(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// seed the new client with the latest of everything
	for _, u := range c.latest {
		if payload, err := json.Marshal(u); err == nil {
			conn.WriteMessage(websocket.TextMessage, payload)
		}
	}
	c.clients[conn] = struct{}{}
}

func (c *Conductor) removeClient(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.clients[conn]; ok {
		conn.Close()
		delete(c.clients, conn)
	}
}
