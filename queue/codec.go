package queue

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// frameSentinel marks the start of a frame on a raw byte-stream transport
// (e.g. a direct daemon-to-daemon TCP link), distinguishing a real frame
// header from a stream that has drifted out of sync.
const frameSentinel uint32 = 0xAAAAAAAA

// DefaultFrameSize is the default read buffer, a power of two per the
// daemon's framing convention.
const DefaultFrameSize = 16 * 1024

// EncodeFrame writes msg to w as one sentinel-prefixed, length-prefixed
// frame: 4-byte sentinel, 4-byte big-endian body length, JSON body.
func EncodeFrame(w io.Writer, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: encode message: %w", err)
	}
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], frameSentinel)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// DecodeFrame reads one frame from r, verifying its sentinel and bounding
// its body length to maxFrameSize to protect against a corrupt or
// adversarial stream.
func DecodeFrame(r io.Reader, maxFrameSize uint32) (Message, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, err
	}
	sentinel := binary.BigEndian.Uint32(header[0:4])
	if sentinel != frameSentinel {
		return Message{}, fmt.Errorf("queue: bad frame sentinel %#x, stream out of sync", sentinel)
	}
	length := binary.BigEndian.Uint32(header[4:8])
	if length > maxFrameSize {
		return Message{}, fmt.Errorf("queue: frame length %d exceeds max %d", length, maxFrameSize)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("queue: decode message: %w", err)
	}
	return msg, nil
}
