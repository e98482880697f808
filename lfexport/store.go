package lfexport

import (
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

const storeVersion = 1

// StoredBatch is one fallback entry: the exact wire body that failed
// to send, plus enough framing to correlate it with the diagnostics
// line written when it was stored.
type StoredBatch struct {
	Version int    `cbor:"1,keyasint"`
	BatchID string `cbor:"2,keyasint"`
	Written int64  `cbor:"3,keyasint"` // unix nanoseconds
	Count   int    `cbor:"4,keyasint"` // records in Body
	Body    []byte `cbor:"5,keyasint"` // wire JSON, POSTable as-is
}

// Deterministic encoding keeps the file byte-reproducible for a given
// input sequence; CBOR self-delimits, so entries append with no outer
// framing and replay in order.
var storeEncMode = func() cbor.EncMode {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// FileStore appends batches to a single file. The file is created
// lazily on first write, so a healthy pipeline never touches disk.
// Safe for concurrent use and for appending across process restarts.
type FileStore struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *cbor.Encoder
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the store location.
func (s *FileStore) Path() string { return s.path }

// Append writes one entry and syncs it to disk.
func (s *FileStore) Append(entry StoredBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrapf(err, "open fallback store %s", s.path)
		}
		s.f = f
		s.enc = storeEncMode.NewEncoder(f)
	}
	if err := s.enc.Encode(entry); err != nil {
		return errors.Wrapf(err, "append fallback store %s", s.path)
	}
	return errors.Wrapf(s.f.Sync(), "sync fallback store %s", s.path)
}

// Close syncs and closes the file if one was ever opened.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Sync()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	s.f = nil
	s.enc = nil
	return errors.Wrapf(err, "close fallback store %s", s.path)
}

// ReadBack replays stored entries in write order. A truncated final
// entry, the signature of a crash mid-append, ends the replay cleanly
// instead of erroring.
func ReadBack(r io.Reader) ([]StoredBatch, error) {
	dec := cbor.NewDecoder(r)
	var out []StoredBatch
	for {
		var entry StoredBatch
		err := dec.Decode(&entry)
		switch {
		case err == nil:
			out = append(out, entry)
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return out, nil
		default:
			return out, errors.Wrap(err, "fallback store replay")
		}
	}
}
