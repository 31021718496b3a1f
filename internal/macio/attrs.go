package macio

import "github.com/go-vaultfs/vaultfs/internal/rawio"

// GetAttrs reports the header-less plaintext size.
func (m *MACFileIO) GetAttrs() (rawio.Attrs, error) {
	attrs, err := m.backend.GetAttrs()
	if err != nil {
		return attrs, err
	}
	if attrs.IsDir {
		return attrs, nil
	}
	attrs.Size = locWithoutHeader(attrs.Size, m.rawBlockSize(), m.headerSize())
	return attrs, nil
}

// Truncate translates size to the raw (header-inclusive) offset and
// truncates the backend. When shrinking into the middle of a block,
// blockio.BlockFileIO.Truncate calls this first and rewrites the shortened
// tail block afterwards.
func (m *MACFileIO) Truncate(size int64) error {
	rawSize := locWithHeader(size, m.rawBlockSize(), m.headerSize())
	return m.backend.Truncate(rawSize)
}

// Sync passes through; MACFileIO buffers nothing of its own.
func (m *MACFileIO) Sync(dataOnly bool) error {
	return m.backend.Sync(dataOnly)
}
