package main

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v2"
)

const testYaml = `
channel: vcan0
listen: 127.0.0.1:9000
db_path: /tmp/blackbox.db
mqtt:
  broker: tcp://localhost:1883
  topic: car/telemetry
`

func TestConfigParsing(t *testing.T) {
	Convey("parsing is successful", t, func() {
		cfg := defaultConfig()
		err := yaml.Unmarshal([]byte(testYaml), &cfg)
		So(err, ShouldBeNil)

		Convey("file values land", func() {
			So(cfg.Channel, ShouldEqual, "vcan0")
			So(cfg.Listen, ShouldEqual, "127.0.0.1:9000")
			So(cfg.DBPath, ShouldEqual, "/tmp/blackbox.db")
			So(cfg.MQTT.Broker, ShouldEqual, "tcp://localhost:1883")
			So(cfg.MQTT.Topic, ShouldEqual, "car/telemetry")
		})

		Convey("unset values keep their defaults", func() {
			So(cfg.MQTT.ClientID, ShouldEqual, "osccd")
		})
	})

	Convey("a missing file returns defaults", t, func() {
		cfg, err := loadConfig("/nonexistent/osccd.yaml")
		So(err, ShouldBeNil)
		So(cfg.Channel, ShouldEqual, "can0")
		So(cfg.Listen, ShouldEqual, "0.0.0.0:8086")
	})
}
