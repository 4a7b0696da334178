package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// MaxFrameLength bounds a single encoded frame. The length prefix is trusted
// only up to this size; anything larger is treated as a corrupt stream and
// fails the read rather than allocating an attacker- or bug-controlled
// buffer.
const MaxFrameLength = 16 << 20 // 16 MiB

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 1 << 20, MaxMapPairs: 1 << 20}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Writer encodes Commands as length-delimited CBOR frames: a 4-byte
// big-endian length prefix followed by that many bytes of CBOR payload.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (fw *Writer) WriteCommand(cmd Command) error {
	payload, err := encMode.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("wire: encode command: %w", err)
	}
	if len(payload) > MaxFrameLength {
		return fmt.Errorf("wire: encoded frame too large (%d bytes)", len(payload))
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := fw.w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}

// Reader decodes length-delimited CBOR frames written by Writer.
type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadCommand reads the next frame. It returns io.EOF (unwrapped) only when
// the stream ends cleanly between frames; a truncated frame is reported as
// io.ErrUnexpectedEOF.
func (fr *Reader) ReadCommand() (Command, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return Command{}, io.EOF
		}
		return Command{}, fmt.Errorf("wire: read length prefix: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameLength {
		return Command{}, fmt.Errorf("wire: frame length %d exceeds maximum %d", n, MaxFrameLength)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Command{}, fmt.Errorf("wire: read frame payload: %w", err)
	}

	var cmd Command
	if err := decMode.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("wire: decode command: %w", err)
	}
	return cmd, nil
}
