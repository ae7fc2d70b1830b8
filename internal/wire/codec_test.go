package wire

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CodecSuite struct {
	suite.Suite
}

func (s *CodecSuite) TestRequestRoundTrip() {
	req := Request{
		Method: "activate_scenario",
		Args:   []interface{}{"sector-a", uint64(7)},
		Kwargs: map[string]interface{}{"hash_val": uint64(42), "retry": false},
	}

	payload, err := EncodeRequest(req)
	s.Require().NoError(err)

	got, err := DecodeRequest(payload)
	s.Require().NoError(err)
	s.Equal(req.Method, got.Method)
	s.Equal(req.Args, got.Args)
	s.Equal(req.Kwargs, got.Kwargs)
}

func (s *CodecSuite) TestReplyRoundTrip() {
	rep := Reply{Status: 0, Body: map[string]interface{}{"q_value": 0.81, "path_length": int64(3)}}

	payload, err := EncodeReply(rep)
	s.Require().NoError(err)

	got, err := DecodeReply(payload)
	s.Require().NoError(err)
	s.Equal(rep, got)
}

func (s *CodecSuite) TestErrorReplyCarriesStringBody() {
	rep := Reply{Status: 1, Body: "path not found"}

	payload, err := EncodeReply(rep)
	s.Require().NoError(err)

	got, err := DecodeReply(payload)
	s.Require().NoError(err)
	s.Equal(rep, got)
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0xde, 0xad, 0xbe, 0xef}

	require.NoError(t, WriteFrame(&buf, payload))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	// Random bytes are incompressible, so zstd can't shrink this under the
	// frame limit the way it would a zero-filled buffer.
	huge := make([]byte, MaxFrameLen*2)
	rand.New(rand.NewSource(1)).Read(huge)
	_, err := encode(Request{Method: "x", Args: []interface{}{string(huge)}})
	require.Error(t, err)
}
