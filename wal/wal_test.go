package wal

import (
	"bytes"
	"encoding/binary"
	"os"
	"path"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAndDecodeWALEntry(t *testing.T) {
	original := NewWALEntry([]byte(`{"op":"put"}`))

	encoded, err := original.Encode()
	require.NoError(t, err)
	assert.Len(t, encoded, headerSize+len(original.Content))

	parsed, n, err := decodeWALEntry(bytes.NewReader(encoded), int64(len(encoded)))
	require.NoError(t, err)

	assert.Equal(t, len(encoded), n)
	assert.Equal(t, original.CRC, parsed.CRC)
	assert.Equal(t, original.Content, parsed.Content)
}

func TestDecodeWALEntryChecksumMismatch(t *testing.T) {
	encoded, err := NewWALEntry([]byte("payload")).Encode()
	require.NoError(t, err)

	encoded[len(encoded)-1] ^= 0xff

	_, _, err = decodeWALEntry(bytes.NewReader(encoded), int64(len(encoded)))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeWALEntryLengthPastEnd(t *testing.T) {
	encoded := make([]byte, headerSize+1)
	binary.LittleEndian.PutUint32(encoded[4:8], 0xFFFFFFF0)

	_, _, err := decodeWALEntry(bytes.NewReader(encoded), int64(len(encoded)))
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.ErrorContains(t, err, "exceeds")
}

func TestReadAllRejectsHugeLength(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, w.Write([]byte("kept")))
	require.NoError(t, w.Close())

	header := make([]byte, headerSize+1)
	binary.LittleEndian.PutUint32(header[4:8], 0xFFFFFFF0)

	f, err := os.OpenFile(path.Join(dir, WALFileName), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write(header)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w, err = New(dir)
	require.NoError(t, err)
	defer w.Close()

	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	payloads, err := w.ReadAll()

	var after runtime.MemStats
	runtime.ReadMemStats(&after)

	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, [][]byte{[]byte("kept")}, payloads)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestWriteAndReadAll(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, w.Write([]byte("one")))
	require.NoError(t, w.Write([]byte("two")))
	require.NoError(t, w.Close())

	w, err = New(dir)
	require.NoError(t, err)
	defer w.Close()

	payloads, err := w.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("one"), []byte("two")}, payloads)
	assert.Equal(t, 2, w.Len())
}

func TestReadAllTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, w.Write([]byte("kept")))
	require.NoError(t, w.Close())

	torn, err := NewWALEntry([]byte("lost in a crash")).Encode()
	require.NoError(t, err)

	f, err := os.OpenFile(path.Join(dir, WALFileName), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write(torn[:len(torn)-3])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w, err = New(dir)
	require.NoError(t, err)
	defer w.Close()

	payloads, err := w.ReadAll()
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, [][]byte{[]byte("kept")}, payloads)

	// the torn tail is gone, new writes land after the good entry
	require.NoError(t, w.Write([]byte("next")))
	payloads, err = w.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("kept"), []byte("next")}, payloads)
}

func TestRewrite(t *testing.T) {
	dir := t.TempDir()

	w, err := New(dir)
	require.NoError(t, err)
	defer w.Close()

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, w.Write([]byte(p)))
	}
	assert.Equal(t, 3, w.Len())

	require.NoError(t, w.Rewrite([][]byte{[]byte("c")}))
	assert.Equal(t, 1, w.Len())

	require.NoError(t, w.Write([]byte("d")))

	payloads, err := w.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("c"), []byte("d")}, payloads)

	_, err = os.Stat(path.Join(dir, WALFileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}
