package canbus

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxDataLen is the classical CAN payload limit.
	MaxDataLen = 8

	maxStdID = 0x7FF
	maxExtID = 0x1FFFFFFF

	// Linux can_frame wire size.
	frameSize = 16

	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canEffMask = 0x1FFFFFFF
	canSffMask = 0x7FF
)

// errors
var (
	ERR_DATA_TOO_LONG = errors.New("data length exceeds 8 bytes")
	ERR_BAD_ID        = errors.New("identifier out of range")
)

// CANMsg is a single classical CAN frame as it appears on the wire.
type CANMsg struct {
	ID       uint32 // 11-bit identifier, or 29-bit when Extended
	Extended bool
	Data     []byte // up to 8 bytes, DLC is taken from len(Data)
}

func (m CANMsg) Validate() error {
	if len(m.Data) > MaxDataLen {
		return ERR_DATA_TOO_LONG
	}
	if m.Extended {
		if m.ID > maxExtID {
			return ERR_BAD_ID
		}
	} else if m.ID > maxStdID {
		return ERR_BAD_ID
	}
	return nil
}

// MarshalBinary packs the message into the Linux can_frame layout
// (16 bytes, little-endian id word, DLC at byte 4, data at 8..15).
func (m CANMsg) MarshalBinary() (raw []byte, err error) {
	if err = m.Validate(); err != nil {
		return nil, err
	}

	oid := m.ID
	if m.Extended {
		oid |= canEffFlag
	}

	raw = make([]byte, frameSize)
	binary.LittleEndian.PutUint32(raw[0:4], oid)
	raw[4] = byte(len(m.Data))
	copy(raw[8:], m.Data)

	return raw, nil
}

// UnmarshalBinary reads a message back out of the can_frame layout.
func (m *CANMsg) UnmarshalBinary(raw []byte) error {
	if len(raw) < frameSize {
		return fmt.Errorf("canbus: need %d bytes, got %d", frameSize, len(raw))
	}

	oid := binary.LittleEndian.Uint32(raw[0:4])
	m.Extended = oid&canEffFlag != 0
	if m.Extended {
		m.ID = oid & canEffMask
	} else {
		m.ID = oid & canSffMask
	}

	dlc := int(raw[4])
	if dlc > MaxDataLen {
		return ERR_DATA_TOO_LONG
	}
	m.Data = make([]byte, dlc)
	copy(m.Data, raw[8:8+dlc])

	return nil
}
