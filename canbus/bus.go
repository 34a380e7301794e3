// Package canbus provides the CAN transport used by the drive-by-wire
// control core: a raw frame type, a Bus attachment interface, a Linux
// SocketCAN driver and an in-memory loopback bus for tests and simulation.
package canbus

import "errors"

var ERR_BUS_CLOSED = errors.New("bus is closed")

// Bus is one attachment point to a CAN network. Receive blocks until a
// frame arrives or the bus is closed.
type Bus interface {
	Send(msg CANMsg) error
	Receive() (CANMsg, error)
	Close() error
}

// Driver opens buses by channel name (e.g. "can0").
type Driver interface {
	Open(channel string) (Bus, error)
}
