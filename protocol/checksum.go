package protocol

// CRC-8/SAE-J1850: poly 0x1D, init 0xFF, xor-out 0xFF.
var crc8Table [256]byte

func init() {
	for i := range crc8Table {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x1D
			} else {
				crc <<= 1
			}
		}
		crc8Table[i] = crc
	}
}

// Checksum computes the trailing checksum byte for a frame payload. It is
// exported so module firmware emulators can produce valid frames.
func Checksum(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc ^ 0xFF
}
