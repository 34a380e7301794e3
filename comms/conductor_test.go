package comms

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/roadwire/gooscc/canbus"
	"github.com/roadwire/gooscc/control"
	"github.com/roadwire/gooscc/protocol"
)

func newTestConductor() (*Conductor, *control.Session, canbus.Bus, *canbus.Loopback) {
	lb := canbus.NewLoopback()
	peer := lb.Endpoint()
	sess := control.NewSession(lb, log.New(io.Discard, "", 0))
	cond := NewConductor(sess, log.New(io.Discard, "", 0))
	return cond, sess, peer, lb
}

func TestConductorLatest(t *testing.T) {
	Convey("Reports surface as updates", t, func() {
		cond, sess, peer, lb := newTestConductor()
		defer lb.Close()

		So(sess.Open("0"), ShouldBeNil)
		defer sess.Close()

		msg, err := protocol.BrakeReport{PedalPosition: 0.25, Enabled: true}.MarshalCANMsg()
		So(err, ShouldBeNil)
		So(peer.Send(msg), ShouldBeNil)

		deadline := time.Now().Add(time.Second)
		var u Update
		var ok bool
		for time.Now().Before(deadline) {
			u, ok = cond.Latest()["brake"]
			if ok {
				break
			}
			time.Sleep(time.Millisecond)
		}
		So(ok, ShouldBeTrue)
		So(u.Module, ShouldEqual, "brake")
		So(u.Enabled, ShouldBeTrue)
		So(u.Value, ShouldAlmostEqual, 0.25, 1e-4)
	})
}

func TestStatusEndpoint(t *testing.T) {
	Convey("GET /status reflects module state", t, func() {
		cond, sess, _, lb := newTestConductor()
		defer lb.Close()

		So(sess.Open("0"), ShouldBeNil)
		defer sess.Close()
		So(sess.Enable(), ShouldBeNil)

		srv := httptest.NewServer(cond.Router())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/status")
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusOK)

		var payload []ModuleStatusPayload
		So(json.NewDecoder(resp.Body).Decode(&payload), ShouldBeNil)
		So(payload, ShouldHaveLength, 3)
		So(payload[0].Module, ShouldEqual, "brake")
		for _, st := range payload {
			So(st.State, ShouldEqual, "enabled")
		}
	})
}

func TestTelemetryEndpoint(t *testing.T) {
	Convey("GET /telemetry returns the latest updates", t, func() {
		cond, sess, peer, lb := newTestConductor()
		defer lb.Close()

		So(sess.Open("0"), ShouldBeNil)
		defer sess.Close()

		msg, err := protocol.FaultReport{
			Origin: protocol.ModuleThrottle,
			Faults: protocol.FaultCommandTimeout,
		}.MarshalCANMsg()
		So(err, ShouldBeNil)
		So(peer.Send(msg), ShouldBeNil)

		deadline := time.Now().Add(time.Second)
		for len(cond.Latest()) == 0 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}

		srv := httptest.NewServer(cond.Router())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/telemetry")
		So(err, ShouldBeNil)
		defer resp.Body.Close()

		var payload map[string]Update
		So(json.NewDecoder(resp.Body).Decode(&payload), ShouldBeNil)
		So(payload["fault"].Module, ShouldEqual, "throttle")
		So(payload["fault"].Faults, ShouldContain, "command timeout")
	})
}
