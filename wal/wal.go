package wal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

var ErrCorrupt = errors.New("wal entry is corrupt")

// WAL Entry Format
// [CRC][Length][Content]
// CRC is IEEE crc32 over Content, CRC and Length are little endian uint32.
const headerSize = 8

type WALEntry struct {
	CRC     uint32
	Content []byte
}

func NewWALEntry(content []byte) *WALEntry {
	return &WALEntry{
		CRC:     crc32.ChecksumIEEE(content),
		Content: content,
	}
}

func (e *WALEntry) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(headerSize + len(e.Content))

	if err := binary.Write(buf, binary.LittleEndian, e.CRC); err != nil {
		return nil, err
	}

	if err := binary.Write(buf, binary.LittleEndian, uint32(len(e.Content))); err != nil {
		return nil, err
	}

	buf.Write(e.Content)

	return buf.Bytes(), nil
}

// decodeWALEntry reads one entry from r, which holds remaining bytes.
// io.EOF is returned only when r ends exactly on an entry boundary.
// A length field pointing past remaining is corrupt and nothing is
// allocated for it.
func decodeWALEntry(r io.Reader, remaining int64) (*WALEntry, int, error) {
	header := make([]byte, headerSize)

	_, err := io.ReadFull(r, header)
	if errors.Is(err, io.EOF) {
		return nil, 0, io.EOF
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, 0, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if err != nil {
		return nil, 0, err
	}

	var e WALEntry

	e.CRC = binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])

	if int64(length) > remaining-headerSize {
		return nil, 0, fmt.Errorf("%w: length %d exceeds the %d bytes left", ErrCorrupt, length, remaining-headerSize)
	}

	e.Content = make([]byte, length)
	if _, err := io.ReadFull(r, e.Content); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, fmt.Errorf("%w: short content", ErrCorrupt)
		}
		return nil, 0, err
	}

	if crc32.ChecksumIEEE(e.Content) != e.CRC {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	return &e, headerSize + int(length), nil
}
