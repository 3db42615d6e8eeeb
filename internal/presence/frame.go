package presence

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Opcodes of the Discord IPC framing
const (
	opHandshake uint32 = 0
	opFrame     uint32 = 1
	opClose     uint32 = 2
	opPing      uint32 = 3
	opPong      uint32 = 4
)

const (
	frameHeaderLen = 8
	maxFrameLen    = 1 << 20
)

// errClosedByPeer is returned when Discord sends a close frame
var errClosedByPeer = errors.New("discord closed the connection")

func writeFrame(w io.Writer, opcode uint32, body []byte) error {
	buf := make([]byte, frameHeaderLen+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], opcode)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(body)))
	copy(buf[frameHeaderLen:], body)
	_, err := w.Write(buf)
	return err
}

func writeJSONFrame(w io.Writer, opcode uint32, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode frame")
	}
	return writeFrame(w, opcode, body)
}

func readFrame(r io.Reader) (uint32, []byte, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	opcode := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > maxFrameLen {
		return opcode, nil, errors.Errorf("frame length %d exceeds limit", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return opcode, nil, err
	}
	return opcode, body, nil
}
