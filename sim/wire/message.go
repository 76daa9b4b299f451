// Package wire defines the fixed-size record exchanged between the scheduler
// and its client applications.
//
// Each record is 12 bytes, little-endian:
//
//	offset 0  int32  pid
//	offset 4  uint32 request (RUN, BLOCK, ACK, DONE)
//	offset 8  uint32 time_ms
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// RecordSize is the encoded size of a Message in bytes.
const RecordSize = 12

// Request is the message tag.
type Request uint32

const (
	RequestRun Request = iota
	RequestBlock
	RequestAck
	RequestDone
)

var requestNames = map[Request]string{
	RequestRun:   "RUN",
	RequestBlock: "BLOCK",
	RequestAck:   "ACK",
	RequestDone:  "DONE",
}

func (r Request) String() string {
	if name, ok := requestNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Request(%d)", uint32(r))
}

// IsValid reports whether r is one of the four known tags.
func (r Request) IsValid() bool {
	_, ok := requestNames[r]
	return ok
}

// ParseRequest maps a tag name (case-sensitive, as printed by String) to a Request.
func ParseRequest(name string) (Request, error) {
	for r, n := range requestNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRequest, name)
}

var (
	// ErrUnknownRequest is returned when a record carries a tag outside RUN/BLOCK/ACK/DONE.
	ErrUnknownRequest = errors.New("unknown request tag")
	// ErrShortRecord is returned when fewer than RecordSize bytes are available.
	ErrShortRecord = errors.New("short record")
)

// Message is one record on the wire.
// TimeMs is the requested duration for RUN/BLOCK and the scheduler clock for ACK/DONE.
type Message struct {
	PID     int32
	Request Request
	TimeMs  uint32
}

func (m Message) String() string {
	return fmt.Sprintf("%s{pid=%d, time_ms=%d}", m.Request, m.PID, m.TimeMs)
}

// Marshal encodes m into a RecordSize-byte slice.
func (m Message) Marshal() []byte {
	buf := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.PID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.Request))
	binary.LittleEndian.PutUint32(buf[8:12], m.TimeMs)
	return buf
}

// Unmarshal decodes a record. The tag is not validated here so that callers
// can log the offending value; use Request.IsValid.
func Unmarshal(buf []byte) (Message, error) {
	if len(buf) < RecordSize {
		return Message{}, fmt.Errorf("%w: got %d bytes, want %d", ErrShortRecord, len(buf), RecordSize)
	}
	return Message{
		PID:     int32(binary.LittleEndian.Uint32(buf[0:4])),
		Request: Request(binary.LittleEndian.Uint32(buf[4:8])),
		TimeMs:  binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// Read reads exactly one record from r.
// A clean EOF before any byte is returned as io.EOF; a partial record as io.ErrUnexpectedEOF.
func Read(r io.Reader) (Message, error) {
	buf := make([]byte, RecordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Message{}, err
	}
	return Unmarshal(buf)
}

// Write writes one record to w.
func Write(w io.Writer, m Message) error {
	n, err := w.Write(m.Marshal())
	if err != nil {
		return err
	}
	if n != RecordSize {
		return io.ErrShortWrite
	}
	return nil
}
