// Package recorder persists decoded module reports to an embedded Storm
// database, giving the daemon a blackbox trail of telemetry and faults.
package recorder

import (
	"log"
	"os"
	"time"

	"github.com/asdine/storm/v3"

	"github.com/roadwire/gooscc/control"
	"github.com/roadwire/gooscc/protocol"
)

// Entry is one decoded report as stored on disk.
type Entry struct {
	ID      int       `storm:"id,increment"`
	Kind    string    `storm:"index"`
	Module  string    `storm:"index"`
	At      time.Time `storm:"index"`
	Value   float64
	Enabled bool
	DTC     uint8
	Faults  uint16
}

type Recorder struct {
	db     *storm.DB
	logger *log.Logger
}

// Open creates or reopens the blackbox database at path.
func Open(path string, logger *log.Logger) (*Recorder, error) {
	if logger == nil {
		logger = log.New(os.Stdout, "[recorder] ", log.LstdFlags)
	}
	db, err := storm.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Init(&Entry{}); err != nil {
		db.Close()
		return nil, err
	}
	return &Recorder{db: db, logger: logger}, nil
}

// Attach subscribes the recorder to every report kind on the session.
func (r *Recorder) Attach(sess *control.Session) {
	sess.SubscribeToBrakeReports(r.RecordBrake)
	sess.SubscribeToThrottleReports(r.RecordThrottle)
	sess.SubscribeToSteeringReports(r.RecordSteering)
	sess.SubscribeToFaultReports(r.RecordFault)
}

// The Record* handlers run on the session's receive loop, so persistence
// errors are logged rather than propagated.

func (r *Recorder) RecordBrake(rep *protocol.BrakeReport) {
	r.save(Entry{
		Kind:    protocol.ReportBrake.String(),
		Module:  protocol.ModuleBrake.String(),
		At:      time.Now(),
		Value:   rep.PedalPosition,
		Enabled: rep.Enabled,
		DTC:     rep.DTC,
	})
}

func (r *Recorder) RecordThrottle(rep *protocol.ThrottleReport) {
	r.save(Entry{
		Kind:    protocol.ReportThrottle.String(),
		Module:  protocol.ModuleThrottle.String(),
		At:      time.Now(),
		Value:   rep.PedalPosition,
		Enabled: rep.Enabled,
		DTC:     rep.DTC,
	})
}

func (r *Recorder) RecordSteering(rep *protocol.SteeringReport) {
	r.save(Entry{
		Kind:    protocol.ReportSteering.String(),
		Module:  protocol.ModuleSteering.String(),
		At:      time.Now(),
		Value:   rep.WheelAngle,
		Enabled: rep.Enabled,
		DTC:     rep.DTC,
	})
}

func (r *Recorder) RecordFault(rep *protocol.FaultReport) {
	r.save(Entry{
		Kind:   protocol.ReportFault.String(),
		Module: rep.Origin.String(),
		At:     time.Now(),
		Faults: uint16(rep.Faults),
	})
}

func (r *Recorder) save(e Entry) {
	if err := r.db.Save(&e); err != nil {
		r.logger.Printf("save %s entry: %v", e.Kind, err)
	}
}

// Recent returns up to n entries of one kind, newest first.
func (r *Recorder) Recent(kind string, n int) ([]Entry, error) {
	var out []Entry
	err := r.db.Find("Kind", kind, &out, storm.Limit(n), storm.Reverse())
	if err == storm.ErrNotFound {
		return nil, nil
	}
	return out, err
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
