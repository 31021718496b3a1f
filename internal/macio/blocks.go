package macio

import "github.com/go-vaultfs/vaultfs/internal/blockio"

// ReadOneBlock reads one rawBlockSize()-sized (header+data) chunk from the
// backend, verifies the MAC over (rand||data) if enabled, and returns the
// data portion.
func (m *MACFileIO) ReadOneBlock(req blockio.Request) (int, error) {
	header := m.headerSize()
	rawBS := m.rawBlockSize()

	buf := make([]byte, rawBS)
	rawOffset := locWithHeader(req.Offset, rawBS, header)
	readSize, err := m.backend.ReadOneBlock(blockio.Request{Offset: rawOffset, Data: buf, Len: int(header) + req.Len})
	if readSize <= int(header) {
		if readSize > 0 {
			readSize = 0
		}
		return readSize, err
	}

	skipCheck := true
	if m.allowHoles {
		skipCheck = allZero(buf[:readSize])
	} else if m.macBytes > 0 {
		skipCheck = false
	}

	if !skipCheck && m.macBytes > 0 {
		got := m.mac.Sum64(buf[m.macBytes:readSize])
		if !macEqual(buf[:m.macBytes], got) {
			m.warnf("MAC comparison failure in block at offset %d", req.Offset)
			if !m.warnOnly {
				return 0, ErrMACMismatch
			}
		}
	}

	readSize -= int(header)
	copy(req.Data[:readSize], buf[header:header+int64(readSize)])
	return readSize, err
}

// WriteOneBlock attaches a header (random padding plus, if enabled, a MAC
// computed over rand||data) to req.Data and writes the combined chunk.
func (m *MACFileIO) WriteOneBlock(req blockio.Request) error {
	header := m.headerSize()
	rawBS := m.rawBlockSize()

	buf := make([]byte, header+int64(req.Len))
	if m.randBytes > 0 {
		copy(buf[m.macBytes:header], m.prng.Bytes(m.randBytes))
	}
	copy(buf[header:], req.Data[:req.Len])

	if m.macBytes > 0 {
		sum := m.mac.Sum64(buf[m.macBytes:])
		packMAC(buf[:m.macBytes], sum)
	}

	rawOffset := locWithHeader(req.Offset, rawBS, header)
	return m.backend.WriteOneBlock(blockio.Request{Offset: rawOffset, Data: buf, Len: len(buf)})
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// packMAC writes the low len(dst) bytes of sum into dst, little-endian,
// matching the byte-at-a-time shift loop in the teacher's MAC_64 consumer.
func packMAC(dst []byte, sum uint64) {
	for i := range dst {
		dst[i] = byte(sum)
		sum >>= 8
	}
}

func macEqual(stored []byte, sum uint64) bool {
	for i := range stored {
		if stored[i] != byte(sum) {
			return false
		}
		sum >>= 8
	}
	return true
}
