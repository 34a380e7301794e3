//go:build linux

package canbus

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// SocketCAN opens raw AF_CAN sockets bound to a named interface.
type SocketCAN struct{}

func NewSocketCAN() Driver {
	return SocketCAN{}
}

func (SocketCAN) Open(channel string) (Bus, error) {
	iface, err := net.InterfaceByName(channel)
	if err != nil {
		return nil, fmt.Errorf("canbus: no such channel %q: %w", channel, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: socket: %w", err)
	}

	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: bind %q: %w", channel, err)
	}

	return &socketCANBus{fd: fd}, nil
}

type socketCANBus struct {
	fd int
}

func (b *socketCANBus) Send(msg CANMsg) error {
	raw, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = unix.Write(b.fd, raw)
	return err
}

func (b *socketCANBus) Receive() (CANMsg, error) {
	raw := make([]byte, frameSize)
	n, err := unix.Read(b.fd, raw)
	if err != nil {
		return CANMsg{}, err
	}
	if n < frameSize {
		return CANMsg{}, fmt.Errorf("canbus: short read of %d bytes", n)
	}

	var msg CANMsg
	err = msg.UnmarshalBinary(raw)
	return msg, err
}

func (b *socketCANBus) Close() error {
	return unix.Close(b.fd)
}
