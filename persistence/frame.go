package persistence

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/cachify/cachify/encoding"
)

// frameEnvelope is the cleartext payload of a single frame: a flavor tag
// plus the record's own encoding, so a decoder can route each frame to the
// right manager without re-inspecting ciphertext structure. Payload stays
// json.RawMessage because encoding.DefaultMarshaler is JSON-backed; a
// non-JSON marshaler would need a different opaque-payload representation.
type frameEnvelope struct {
	Flavor  string          `json:"flavor"`
	Payload json.RawMessage `json:"payload"`
}

func encodeFrame(flavor string, v any) ([]byte, error) {
	payload, err := encoding.DefaultMarshaler.Marshal(v)
	if err != nil {
		return nil, err
	}
	return encoding.DefaultMarshaler.Marshal(frameEnvelope{Flavor: flavor, Payload: payload})
}

func decodeFrame(data []byte) (flavor string, payload json.RawMessage, err error) {
	var env frameEnvelope
	if err := encoding.DefaultMarshaler.Unmarshal(data, &env); err != nil {
		return "", nil, err
	}
	return env.Flavor, env.Payload, nil
}

// writeFrames concatenates frames as u32be length || frame_bytes, the
// cleartext shape encrypted as a whole (spec.md §4.8).
func writeFrames(w io.Writer, frames [][]byte) error {
	var lenBuf [4]byte
	for _, f := range frames {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(f); err != nil {
			return err
		}
	}
	return nil
}

// frameReader decodes a u32be-length-prefixed frame stream, tolerant of
// arbitrary read boundaries via io.ReadFull over a buffered reader (a frame
// or its length prefix may span multiple underlying reads).
type frameReader struct {
	r *bufio.Reader
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: bufio.NewReader(r)}
}

// next returns the next frame's bytes, or io.EOF when the stream is
// exhausted cleanly at a frame boundary.
func (fr *frameReader) next() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
