package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Method: MethodSaveServerShare, Status: StatusOK, Payload: []byte("hello payload")}

	require.NoError(t, WriteFrame(&buf, f))
	decoded, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Method: MethodPing, Status: StatusOK}

	require.NoError(t, WriteFrame(&buf, f))
	decoded, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MethodPing, decoded.Method)
	assert.Equal(t, StatusOK, decoded.Status)
	assert.Empty(t, decoded.Payload)
}

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	req := SaveServerShareRequest{PublicKey: []byte("pk"), ServerSecretShare: []byte("share")}
	encoded, err := Encode(&req)
	require.NoError(t, err)

	var decoded SaveServerShareRequest
	require.NoError(t, Decode(encoded, &decoded))
	assert.Equal(t, req, decoded)
}

func TestChallengeEncodeDecodeRoundTrip(t *testing.T) {
	resp := GetChallengeResponse{Challenge: Challenge{ID: []byte{1, 0, 0, 0}, Challenge: []byte("instance")}}
	encoded, err := Encode(&resp)
	require.NoError(t, err)

	var decoded GetChallengeResponse
	require.NoError(t, Decode(encoded, &decoded))
	assert.Equal(t, resp, decoded)
}

func TestReadFrameRejectsOversizedPayloadLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Method: MethodPing}))

	// Corrupt the payload-length field to something absurd.
	raw := buf.Bytes()
	raw[len(raw)-4] = 0xff
	raw[len(raw)-3] = 0xff
	raw[len(raw)-2] = 0xff
	raw[len(raw)-1] = 0xff

	_, err := ReadFrame(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}
