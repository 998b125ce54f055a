package capture

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Log format: line-oriented text.
//
// - Blank lines ignored.
// - "# session <id>" names the recording; other '#' lines are comments.
// - Line "START" resets the origin (next record time is relative to 0 again).
// - Data lines are: <t_ns>,<hex>
//   where t_ns is nanoseconds since START and hex is one chunk of raw serial
//   bytes exactly as a read returned them.
//
// Chunk boundaries and arrival offsets are kept so that replay reproduces
// the inter-byte gaps the frame assembler saw.

const sessionPrefix = "# session "

type Record struct {
	At   time.Duration
	Data []byte
}

// IsStart reports whether r is a START marker.
func (r Record) IsStart() bool { return r.Data == nil }

type Reader struct {
	r       io.Reader
	session string
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Session returns the id from the last "# session" line seen by ReadAll.
func (rr *Reader) Session() string { return rr.session }

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, sessionPrefix) {
			rr.session = strings.TrimSpace(strings.TrimPrefix(line, sessionPrefix))
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{})
			continue
		}

		rec, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("capture line %d: %w", lineNo, err)
		}
		recs = append(recs, rec)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func parseLine(line string) (Record, error) {
	tsStr, hexStr, ok := strings.Cut(line, ",")
	if !ok {
		return Record{}, fmt.Errorf("missing comma: %q", line)
	}
	tsStr = strings.TrimSpace(tsStr)
	hexStr = strings.ReplaceAll(strings.TrimSpace(hexStr), " ", "")
	if tsStr == "" || hexStr == "" {
		return Record{}, fmt.Errorf("empty field: %q", line)
	}

	tsNs, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("timestamp %q: %w", tsStr, err)
	}
	if tsNs < 0 {
		return Record{}, fmt.Errorf("negative timestamp %d", tsNs)
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return Record{}, fmt.Errorf("hex payload: %w", err)
	}
	return Record{At: time.Duration(tsNs), Data: b}, nil
}

// ReadFile loads a capture from disk.
func ReadFile(path string) ([]Record, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	rr := NewReader(f)
	recs, err := rr.ReadAll()
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	return recs, rr.Session(), nil
}

var ErrWriterClosed = errors.New("capture writer is closed")

// Writer records serial chunks. It is owned by the byte producer and is not
// safe for concurrent use.
type Writer struct {
	f       *os.File
	w       *bufio.Writer
	start   time.Time
	session string
	closed  bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	ww := &Writer{
		f:       f,
		w:       bufio.NewWriterSize(f, 64*1024),
		start:   time.Now(),
		session: uuid.New().String(),
	}
	if _, err := fmt.Fprintf(ww.w, "%s%s\nSTART\n", sessionPrefix, ww.session); err != nil {
		_ = f.Close()
		return nil, err
	}
	return ww, nil
}

func (ww *Writer) Session() string { return ww.session }

func (ww *Writer) WriteChunk(now time.Time, data []byte) error {
	if ww.closed {
		return ErrWriterClosed
	}
	if len(data) == 0 {
		return nil
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(data))
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}
