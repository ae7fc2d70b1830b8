// Package wire implements the peer RPC wire format: a big-endian uint16
// length prefix around a zstd-compressed gob encoding of a request triple
// (method, positional args, keyword args) or a reply pair (status, body).
// Every controller in a federation must link this package, or a bit-for-bit
// compatible reimplementation of it; gob and zstd both have to match.
package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Request is the request-side triple.
type Request struct {
	Method string
	Args   []interface{}
	Kwargs map[string]interface{}
}

// Reply is the reply-side pair. Status 0 means Body is the result; status 1
// means Body is a human-readable error string.
type Reply struct {
	Status int
	Body   interface{}
}

// MaxFrameLen is the largest payload the uint16 length prefix can address.
const MaxFrameLen = 1<<16 - 1

func init() {
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
	gob.Register("")
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(uint64(0))
	gob.Register(float64(0))
	gob.Register(false)
	gob.Register([]byte(nil))
	gob.Register([]string(nil))
}

// EncodeRequest serializes and compresses req into a wire-ready frame body
// (without the length prefix).
func EncodeRequest(req Request) ([]byte, error) {
	return encode(req)
}

// DecodeRequest reverses EncodeRequest.
func DecodeRequest(payload []byte) (Request, error) {
	var req Request
	err := decode(payload, &req)
	return req, err
}

// EncodeReply serializes and compresses rep into a wire-ready frame body.
func EncodeReply(rep Reply) ([]byte, error) {
	return encode(rep)
}

// DecodeReply reverses EncodeReply.
func DecodeReply(payload []byte) (Reply, error) {
	var rep Reply
	err := decode(payload, &rep)
	return rep, err
}

func encode(v interface{}) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(v); err != nil {
		return nil, errors.Wrap(err, "wire: gob encode")
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, errors.Wrap(err, "wire: new zstd encoder")
	}
	defer enc.Close()

	compressed := enc.EncodeAll(raw.Bytes(), nil)
	if len(compressed) > MaxFrameLen {
		return nil, errors.Errorf("wire: payload of %d bytes exceeds frame limit %d", len(compressed), MaxFrameLen)
	}
	return compressed, nil
}

func decode(payload []byte, out interface{}) error {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return errors.Wrap(err, "wire: new zstd decoder")
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return errors.Wrap(err, "wire: zstd decode")
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(out); err != nil {
		return errors.Wrap(err, "wire: gob decode")
	}
	return nil
}

// WriteFrame writes the uint16-be length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "wire: write length prefix")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "wire: write payload")
	}
	return nil
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, errors.Wrap(err, "wire: read length prefix")
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "wire: read payload")
	}
	return payload, nil
}
