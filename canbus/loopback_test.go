package canbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackDelivery(t *testing.T) {
	lb := NewLoopback()
	defer lb.Close()

	a := lb.Endpoint()
	b := lb.Endpoint()

	msg := CANMsg{ID: 0x072, Data: []byte{0xCC, 0x05, 0xFF, 0x7F, 0x01, 0x00, 0x00, 0x3A}}
	require.NoError(t, a.Send(msg))

	got, err := b.Receive()
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestLoopbackNoEcho(t *testing.T) {
	lb := NewLoopback()
	defer lb.Close()

	a := lb.Endpoint()
	b := lb.Endpoint()

	require.NoError(t, a.Send(CANMsg{ID: 0x070}))
	require.NoError(t, b.Send(CANMsg{ID: 0x071}))

	// each endpoint should only see the other's frame
	got, err := a.Receive()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x071), got.ID)

	got, err = b.Receive()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x070), got.ID)
}

func TestLoopbackClose(t *testing.T) {
	lb := NewLoopback()
	a := lb.Endpoint()
	b := lb.Endpoint()

	require.NoError(t, a.Close())
	assert.Equal(t, ERR_BUS_CLOSED, a.Send(CANMsg{ID: 1}))

	_, err := a.Receive()
	assert.Equal(t, ERR_BUS_CLOSED, err)

	// closing the bus unblocks the remaining endpoint
	done := make(chan error, 1)
	go func() {
		_, err := b.Receive()
		done <- err
	}()
	require.NoError(t, lb.Close())
	assert.Equal(t, ERR_BUS_CLOSED, <-done)
}

func TestLoopbackValidatesFrames(t *testing.T) {
	lb := NewLoopback()
	defer lb.Close()

	a := lb.Endpoint()
	assert.Equal(t, ERR_DATA_TOO_LONG, a.Send(CANMsg{ID: 1, Data: make([]byte, 9)}))
}
