// Package archive implements the on-disk chat replay archive: a UTF-8 file
// with byte-order mark holding a single JSON array of comment records,
// written incrementally by the fetcher and read back incrementally by the
// renderer.
package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Writer streams comment records into an archive file in call order. The
// array is well-formed only after Finalize.
type Writer struct {
	f     *os.File
	bw    *bufio.Writer
	count int
	done  bool
}

// Create opens the destination and emits the archive preamble. Unless
// overwrite is set, an existing destination fails with an error satisfying
// errors.Is(err, fs.ErrExist) before anything is touched.
func Create(path string, overwrite bool) (*Writer, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	bw := bufio.NewWriter(f)
	if _, err := bw.Write(bom); err != nil {
		f.Close()
		return nil, fmt.Errorf("write archive preamble: %w", err)
	}
	if err := bw.WriteByte('['); err != nil {
		f.Close()
		return nil, fmt.Errorf("write archive preamble: %w", err)
	}
	return &Writer{f: f, bw: bw}, nil
}

// Append writes one raw record as the next array element.
func (w *Writer) Append(rec json.RawMessage) error {
	if w.done {
		return fmt.Errorf("archive already finalized")
	}
	if w.count > 0 {
		if err := w.bw.WriteByte(','); err != nil {
			return err
		}
	}
	if _, err := w.bw.Write(bytes.TrimSpace(rec)); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int { return w.count }

// Finalize closes the JSON array and flushes buffered output. The file stays
// open until Close.
func (w *Writer) Finalize() error {
	if w.done {
		return nil
	}
	if err := w.bw.WriteByte(']'); err != nil {
		return err
	}
	if err := w.bw.Flush(); err != nil {
		return err
	}
	w.done = true
	return nil
}

// Close releases the file handle. Safe to call on every exit path; an
// archive abandoned before Finalize is deliberately left mid-array so it
// cannot pass for a complete one.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// Scanner reads an archive back one record at a time, in the manner of
// sql.Rows: Next, Record, Err, Close. Each Open starts a fresh forward-only
// pass.
type Scanner struct {
	f    *os.File
	dec  *json.Decoder
	raw  json.RawMessage
	err  error
	done bool
}

// Open prepares a pass over the archive's records. The byte-order mark is
// optional on read.
func Open(path string) (*Scanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	br := bufio.NewReader(f)
	if lead, err := br.Peek(len(bom)); err == nil && bytes.Equal(lead, bom) {
		if _, err := br.Discard(len(bom)); err != nil {
			f.Close()
			return nil, fmt.Errorf("read archive: %w", err)
		}
	}
	dec := json.NewDecoder(br)
	tok, err := dec.Token()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		f.Close()
		return nil, fmt.Errorf("archive %s is not a JSON array", path)
	}
	return &Scanner{f: f, dec: dec}, nil
}

// Next advances to the following record. It returns false at the end of the
// array or on error; check Err after the loop.
func (s *Scanner) Next() bool {
	if s.err != nil || s.done {
		return false
	}
	if s.dec.More() {
		var raw json.RawMessage
		if err := s.dec.Decode(&raw); err != nil {
			s.err = fmt.Errorf("read archive record: %w", err)
			return false
		}
		s.raw = raw
		return true
	}
	// Consume the closing bracket so a truncated archive surfaces as an
	// error instead of a quiet short read.
	if _, err := s.dec.Token(); err != nil {
		s.err = fmt.Errorf("read archive: %w", err)
	}
	s.done = true
	return false
}

// Record returns the record produced by the last successful Next.
func (s *Scanner) Record() json.RawMessage { return s.raw }

// Err returns the first error encountered during the pass.
func (s *Scanner) Err() error { return s.err }

// Close releases the underlying file.
func (s *Scanner) Close() error { return s.f.Close() }
