//go:build !linux

package canbus

import "errors"

// SocketCAN is only available on Linux; elsewhere Open always fails so
// that callers can fall back to the loopback bus.
type SocketCAN struct{}

func NewSocketCAN() Driver {
	return SocketCAN{}
}

func (SocketCAN) Open(channel string) (Bus, error) {
	return nil, errors.New("canbus: socketcan requires linux")
}
