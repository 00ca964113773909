package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
)

// Frame kinds carried on a relay session.
const (
	TypePing     = "ping"
	TypePong     = "pong"
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeError    = "error"
)

// MaxFrameBytes caps one newline-delimited frame in either direction.
const MaxFrameBytes = 1024 * 1024

var (
	ErrFrameTooLarge = errors.New("wire: frame too large")
	ErrInvalidJSON   = errors.New("wire: invalid json")
	ErrInvalidFrame  = errors.New("wire: invalid frame")
)

// Frame is the envelope for every message on a relay session. Params and
// Data stay raw so payloads pass through the relay untouched.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Tool      string          `json:"tool,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (f Frame) Validate() error {
	switch f.Type {
	case TypePing, TypePong:
		return nil
	case TypeRequest:
		if strings.TrimSpace(f.RequestID) == "" {
			return fmt.Errorf("%w: request missing requestId", ErrInvalidFrame)
		}
		if strings.TrimSpace(f.Tool) == "" {
			return fmt.Errorf("%w: request missing tool", ErrInvalidFrame)
		}
		return nil
	case TypeResponse:
		if strings.TrimSpace(f.RequestID) == "" {
			return fmt.Errorf("%w: response missing requestId", ErrInvalidFrame)
		}
		if len(f.Data) == 0 {
			return fmt.Errorf("%w: response missing data", ErrInvalidFrame)
		}
		return nil
	case TypeError:
		if strings.TrimSpace(f.Error) == "" {
			return fmt.Errorf("%w: error frame missing error text", ErrInvalidFrame)
		}
		return nil
	case "":
		return fmt.Errorf("%w: missing type", ErrInvalidFrame)
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidFrame, f.Type)
	}
}

func Ping() Frame {
	return Frame{Type: TypePing}
}

func Pong() Frame {
	return Frame{Type: TypePong}
}

func Request(id string, tool string, params json.RawMessage) Frame {
	return Frame{Type: TypeRequest, RequestID: id, Tool: tool, Params: params}
}

// Response builds a reply frame; absent data is carried as JSON null so the
// data field is always present for the caller.
func Response(id string, data json.RawMessage) Frame {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Frame{Type: TypeResponse, RequestID: id, Data: data}
}

// ErrorFrame builds the error-shaped reply for a failed or malformed
// request. The id may be empty for uncorrelated transport errors.
func ErrorFrame(id string, message string) Frame {
	return Frame{Type: TypeError, RequestID: id, Error: message}
}

// EncodeFrame renders one validated frame as a newline-terminated line.
func EncodeFrame(f Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	if len(payload)+1 > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}
	return append(payload, '\n'), nil
}

// WriteFrame encodes and writes one frame. Callers serialize writes.
func WriteFrame(w io.Writer, f Frame) error {
	payload, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

// DecodeFrame parses and validates one raw frame line.
func DecodeFrame(line []byte) (Frame, error) {
	if len(line) > MaxFrameBytes {
		return Frame{}, ErrFrameTooLarge
	}
	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// ReadLine returns one newline-terminated frame line. Oversized lines are
// drained from the stream in bounded chunks and reported as ErrFrameTooLarge
// so the caller can skip them without losing framing or buffering the
// oversized payload.
func ReadLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(chunk) > MaxFrameBytes {
			if err := discardLine(r, err); err != nil {
				return nil, err
			}
			return nil, ErrFrameTooLarge
		}
		line = append(line, chunk...)
		if err == nil {
			return line, nil
		}
		if err != bufio.ErrBufferFull {
			return nil, err
		}
	}
}

// discardLine drains the rest of a line whose prefix was already read.
func discardLine(r *bufio.Reader, err error) error {
	for err == bufio.ErrBufferFull {
		_, err = r.ReadSlice('\n')
	}
	return err
}

// SalvageRequestID extracts requestId from a line that failed full decoding
// so the peer can still receive an error-shaped reply.
func SalvageRequestID(line []byte) (string, bool) {
	var partial struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(line, &partial); err != nil {
		return "", false
	}
	id := strings.TrimSpace(partial.RequestID)
	if id == "" {
		return "", false
	}
	return id, true
}
