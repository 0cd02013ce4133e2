package reactor

import (
	"bytes"
)

// framingState is the per-connection SIP message framing state machine:
// HEADERS (reading_body=false) scans pending for the end-of-headers blank
// line; BODY (reading_body=true) accumulates exactly remainingBody more
// bytes. See SPEC_FULL.md §5.4/§6 for the two documented bug fixes over the
// original source (excess-byte carry-over, remainingBody initialization).
type framingState struct {
	pending       []byte
	readingBody   bool
	remainingBody int
}

var crlfcrlf = []byte("\r\n\r\n")

// feed appends newBytes to the framing state and returns every complete SIP
// message framed as a result (ordinarily zero or one, but pipelined input
// can frame more than one per call). err is non-nil only for a
// protocol-fatal condition (missing/unparsable Content-Length, oversize
// header block), in which case the connection must be closed; any messages
// already returned remain valid.
func (s *framingState) feed(newBytes []byte) ([][]byte, error) {
	var out [][]byte
	rest := newBytes
	for len(rest) > 0 {
		if s.readingBody {
			take := s.remainingBody
			if take > len(rest) {
				take = len(rest)
			}
			s.pending = append(s.pending, rest[:take]...)
			rest = rest[take:]
			s.remainingBody -= take
			if s.remainingBody < 0 {
				s.remainingBody = 0
			}
			if s.remainingBody == 0 {
				out = append(out, s.pending)
				s.pending = nil
				s.readingBody = false
			}
			continue
		}

		s.pending = append(s.pending, rest...)
		rest = nil

		idx := bytes.Index(s.pending, crlfcrlf)
		if idx < 0 {
			if len(s.pending) > SIPMsgMax {
				return out, &FrameError{Kind: FrameErrorHeaderTooLarge}
			}
			return out, nil
		}

		m := idx + len(crlfcrlf)
		headerBlock := s.pending[:m]
		bodyBytesAvailable := s.pending[m:]

		contentLength, err := parseContentLength(headerBlock)
		if err != nil {
			return out, err
		}

		if m+contentLength > SIPMsgMax {
			return out, &FrameError{Kind: FrameErrorMessageTooLarge}
		}

		rem := len(bodyBytesAvailable)
		if contentLength > rem {
			s.pending = append(headerBlock[:m:m], bodyBytesAvailable...)
			s.remainingBody = contentLength - rem
			s.readingBody = true
		} else {
			msg := make([]byte, m+contentLength)
			copy(msg, headerBlock)
			copy(msg[m:], bodyBytesAvailable[:contentLength])
			out = append(out, msg)

			// The bytes after the C-th body byte belong to the next
			// message (possibly pipelined); carry them forward instead of
			// discarding them, fixing the source's documented defect.
			leftover := bodyBytesAvailable[contentLength:]
			s.pending = nil
			s.readingBody = false
			rest = leftover
		}
	}
	return out, nil
}

// parseContentLength performs a case-insensitive search of headerBlock for
// "content-length", falling back to the compact "\r\nl" form, then parses
// the first contiguous run of decimal digits following the header name and
// before the next CRLF -- matching the source's atoi-after-strstr approach
// rather than a full header-grammar parser.
func parseContentLength(headerBlock []byte) (int, error) {
	lower := bytes.ToLower(headerBlock)

	start := bytes.Index(lower, []byte("content-length"))
	if start < 0 {
		start = bytes.Index(lower, []byte("\r\nl"))
		if start < 0 {
			return 0, &FrameError{Kind: FrameErrorMissingContentLength}
		}
		start += len("\r\n") // point at the header name, not the preceding CRLF
	}

	lineEnd := bytes.Index(lower[start:], []byte("\r\n"))
	if lineEnd < 0 {
		lineEnd = len(lower) - start
	}
	line := headerBlock[start : start+lineEnd]

	digitsStart := -1
	for i, b := range line {
		if b >= '0' && b <= '9' {
			digitsStart = i
			break
		}
	}
	if digitsStart < 0 {
		return 0, &FrameError{Kind: FrameErrorBadContentLength}
	}
	value := 0
	for i := digitsStart; i < len(line) && line[i] >= '0' && line[i] <= '9'; i++ {
		value = value*10 + int(line[i]-'0')
	}
	return value, nil
}

// StreamConnection is the per-connection SIP framing handler. Exactly one
// instance per live TCP connection; it registers itself for EventRead on
// construction and deregisters+closes on the close path, mirroring
// TcpHandler in the source.
type StreamConnection struct {
	conn *StreamConn
	d    *Dispatcher
	st   framingState
}

// NewStreamConnection wraps conn and registers it with d for EventRead.
func NewStreamConnection(conn *StreamConn, d *Dispatcher) (*StreamConnection, error) {
	c := &StreamConnection{conn: conn, d: d}
	if err := d.RegisterHandler(c, EventRead); err != nil {
		return nil, err
	}
	return c, nil
}

// Handle implements EventHandler.
func (c *StreamConnection) Handle() Handle { return c.conn.Handle() }

// OnEvent implements EventHandler. Only EventRead is ever registered for a
// StreamConnection (mirroring the source, which ignores write/except for
// TcpHandler), but the dispatcher always calls through dispatchOrder, so
// the other cases are handled defensively rather than assumed unreachable.
func (c *StreamConnection) OnEvent(h Handle, mask EventMask) {
	switch mask {
	case EventRead:
		c.handleRead()
	case EventWrite, EventExcept:
		// Not registered for; nothing to do.
	}
}

func (c *StreamConnection) handleRead() {
	chunk := c.d.ReadChunkSize()
	if c.st.readingBody && c.st.remainingBody < chunk {
		chunk = c.st.remainingBody
	}
	if chunk <= 0 {
		chunk = ReadChunk
	}
	buf := make([]byte, chunk)
	n, err := c.conn.Recv(buf)
	if err != nil {
		if err != ErrPeerClosed {
			// Transient and other read errors: ignore this wakeup; the
			// kernel re-signals readiness. Only EOF/ECONNRESET close.
			return
		}
		c.closeConn(TCPStateClose)
		return
	}

	messages, ferr := c.st.feed(buf[:n])
	for _, msg := range messages {
		if c.d.onStreamRead != nil {
			c.d.onStreamRead(c.conn, msg)
		}
	}
	if ferr != nil {
		c.d.logger.Warning().Err(ferr).Log("sip framing error, closing connection")
		c.closeConn(TCPStateBadData)
		return
	}
}

func (c *StreamConnection) closeConn(state TCPState) {
	c.d.DeregisterHandler(c, EventRead)
	_ = c.conn.Close()
	c.d.logger.Info().Int("state", int(state)).Log("connection closed")
	if c.d.onStreamEvent != nil {
		c.d.onStreamEvent(c.conn, state)
	}
}
