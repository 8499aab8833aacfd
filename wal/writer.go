package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
)

var WALFileName = "rockstars.wal"

// WAL is an append-only journal of opaque payloads.
type WAL struct {
	mu sync.Mutex

	file *os.File
	path string

	// entries counts the entries currently in the file.
	entries int
}

func New(baseDir string) (*WAL, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	p := path.Join(baseDir, WALFileName)

	f, err := openFile(p)
	if err != nil {
		return nil, err
	}

	return &WAL{
		file: f,
		path: p,
	}, nil
}

func openFile(p string) (*os.File, error) {
	return os.OpenFile(
		p,
		os.O_APPEND|os.O_CREATE|os.O_SYNC|os.O_RDWR,
		0644,
	)
}

// Write appends payload to the wal file
func (w *WAL) Write(payload []byte) error {
	composed, err := NewWALEntry(payload).Encode()
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(composed); err != nil {
		return err
	}

	w.entries++
	return nil
}

// ReadAll returns every payload in the file, oldest first.
// A corrupt tail is cut off the file; the payloads before it are
// returned together with an error wrapping ErrCorrupt.
func (w *WAL) ReadAll() ([][]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, err := w.file.Stat()
	if err != nil {
		return nil, err
	}

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	var (
		payloads [][]byte
		offset   int64
	)

	r := bufio.NewReader(w.file)
	for {
		e, n, err := decodeWALEntry(r, info.Size()-offset)
		if errors.Is(err, io.EOF) {
			break
		}

		if errors.Is(err, ErrCorrupt) {
			if terr := w.file.Truncate(offset); terr != nil {
				return nil, terr
			}
			w.entries = len(payloads)
			return payloads, fmt.Errorf("entry at offset %d: %w", offset, err)
		}

		if err != nil {
			return nil, err
		}

		payloads = append(payloads, e.Content)
		offset += int64(n)
	}

	w.entries = len(payloads)
	return payloads, nil
}

// Rewrite atomically replaces the file content with payloads.
func (w *WAL) Rewrite(payloads [][]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tmpPath := w.path + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(tmp)
	for _, p := range payloads {
		composed, err := NewWALEntry(p).Encode()
		if err != nil {
			tmp.Close()
			return err
		}

		if _, err := bw.Write(composed); err != nil {
			tmp.Close()
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := w.file.Close(); err != nil {
		return err
	}

	renameErr := os.Rename(tmpPath, w.path)

	// reopen whichever file now sits at w.path
	f, err := openFile(w.path)
	if err != nil {
		return err
	}
	w.file = f

	if renameErr != nil {
		return renameErr
	}

	w.entries = len(payloads)
	return nil
}

// Len returns the number of entries in the file.
func (w *WAL) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.entries
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}
