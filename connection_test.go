package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramingState_OneShotMessage(t *testing.T) {
	var s framingState
	msgs, err := s.feed([]byte("INVITE sip:a@b SIP/2.0\r\nContent-Length: 4\r\n\r\nBODY"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "INVITE sip:a@b SIP/2.0\r\nContent-Length: 4\r\n\r\nBODY", string(msgs[0]))
	assert.False(t, s.readingBody)
	assert.Equal(t, 0, s.remainingBody)
}

func TestFramingState_SplitHeaders(t *testing.T) {
	var s framingState
	msgs, err := s.feed([]byte("INVITE sip:a@b SIP/2.0\r\nContent-Length: 0\r\n"))
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = s.feed([]byte("\r\n"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "INVITE sip:a@b SIP/2.0\r\nContent-Length: 0\r\n\r\n", string(msgs[0]))
}

func TestFramingState_Pipelined(t *testing.T) {
	var s framingState
	first := "INVITE sip:a SIP/2.0\r\nContent-Length: 2\r\n\r\nAB"
	second := "INVITE sip:b SIP/2.0\r\nContent-Length: 2\r\n\r\nCD"
	msgs, err := s.feed([]byte(first + second))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, first, string(msgs[0]))
	assert.Equal(t, second, string(msgs[1]))
}

func TestFramingState_SplitBodyAcrossReads(t *testing.T) {
	var s framingState
	headers := "INVITE sip:a SIP/2.0\r\nContent-Length: 4\r\n\r\n"
	msgs, err := s.feed([]byte(headers + "BO"))
	require.NoError(t, err)
	assert.Empty(t, msgs, "callback must not fire until the full body has been accumulated")
	assert.True(t, s.readingBody)
	assert.Equal(t, 2, s.remainingBody)

	msgs, err = s.feed([]byte("DY"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, headers+"BODY", string(msgs[0]))
	assert.Equal(t, 0, s.remainingBody)
}

func TestFramingState_MissingContentLength(t *testing.T) {
	var s framingState
	_, err := s.feed([]byte("OPTIONS sip:a SIP/2.0\r\n\r\n"))
	require.Error(t, err)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FrameErrorMissingContentLength, fe.Kind)
}

func TestFramingState_CompactContentLengthCaseInsensitive(t *testing.T) {
	cases := []string{
		"INVITE sip:a SIP/2.0\r\nCONTENT-LENGTH: 2\r\n\r\nAB",
		"INVITE sip:a SIP/2.0\r\nContent-length: 2\r\n\r\nAB",
		"INVITE sip:a SIP/2.0\r\nl: 2\r\n\r\nAB",
	}
	for _, raw := range cases {
		var s framingState
		msgs, err := s.feed([]byte(raw))
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, raw, string(msgs[0]))
	}
}

func TestFramingState_BadContentLength(t *testing.T) {
	var s framingState
	_, err := s.feed([]byte("INVITE sip:a SIP/2.0\r\nContent-Length: x\r\n\r\n"))
	require.Error(t, err)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FrameErrorBadContentLength, fe.Kind)
}

func TestFramingState_HeaderBlockTooLarge(t *testing.T) {
	var s framingState
	_, err := s.feed(make([]byte, SIPMsgMax+1))
	require.Error(t, err)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FrameErrorHeaderTooLarge, fe.Kind)
}
