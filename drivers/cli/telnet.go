package cli

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"
)

// Telnet protocol bytes (RFC 854).
const (
	telnetSE   = 240
	telnetSB   = 250
	telnetWILL = 251
	telnetWONT = 252
	telnetDO   = 253
	telnetDONT = 254
	telnetIAC  = 255
)

// pagerMarker is emitted by devices that paginate output even after the
// pager-disable command (older EPON firmware). The transport answers it with
// a space and strips it from the stream.
var pagerMarker = []byte("--More--")

// telnetConn wraps a TCP connection with minimal telnet handling: every
// option the device proposes is refused, IAC sequences are stripped from the
// read stream, and pagination markers are answered transparently.
type telnetConn struct {
	conn net.Conn

	pending  []byte // filtered bytes not yet returned to the caller
	carry    []byte // trailing bytes that may be a partial pager marker
	iacCarry []byte // trailing bytes of an IAC sequence split across reads
}

// dialTelnet opens a telnet transport to addr.
func dialTelnet(ctx context.Context, addr string, timeout time.Duration) (*telnetConn, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial telnet %s: %w", addr, err)
	}
	return &telnetConn{conn: conn}, nil
}

func (t *telnetConn) Read(p []byte) (int, error) {
	for len(t.pending) == 0 {
		buf := make([]byte, 4096)
		n, err := t.conn.Read(buf)
		if n > 0 {
			t.ingest(buf[:n])
		}
		if err != nil {
			// Flush anything withheld as a potential partial marker.
			t.pending = append(t.pending, t.carry...)
			t.carry = nil
			if len(t.pending) > 0 {
				break
			}
			return 0, err
		}
	}

	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// ingest filters a raw chunk: negotiates options, strips IAC sequences, and
// handles pagination markers. Filtered output is appended to pending.
func (t *telnetConn) ingest(raw []byte) {
	// An IAC sequence may span TCP segments; reassemble before filtering.
	raw = append(t.iacCarry, raw...)
	t.iacCarry = nil

	data, iacHold := t.filterIAC(raw)
	t.iacCarry = iacHold

	data = append(t.carry, data...)
	t.carry = nil

	for {
		if i := bytes.Index(data, pagerMarker); i >= 0 {
			// Ask for the next page and drop the marker.
			_, _ = t.conn.Write([]byte(" "))
			t.pending = append(t.pending, data[:i]...)
			data = data[i+len(pagerMarker):]
			continue
		}
		break
	}

	// Hold back a suffix that could be the start of a split marker.
	hold := partialMarkerSuffix(data)
	t.pending = append(t.pending, data[:len(data)-hold]...)
	t.carry = append(t.carry, data[len(data)-hold:]...)
}

// partialMarkerSuffix returns the length of the longest suffix of data that
// is a proper prefix of the pager marker.
func partialMarkerSuffix(data []byte) int {
	max := len(pagerMarker) - 1
	if max > len(data) {
		max = len(data)
	}
	for n := max; n > 0; n-- {
		if bytes.Equal(data[len(data)-n:], pagerMarker[:n]) {
			return n
		}
	}
	return 0
}

// filterIAC strips telnet command sequences from raw, refusing every option
// the peer proposes (IAC DO x -> IAC WONT x, IAC WILL x -> IAC DONT x). An
// incomplete sequence at the end of the chunk is returned as hold so the
// caller can prepend it to the next read.
func (t *telnetConn) filterIAC(raw []byte) (out, hold []byte) {
	out = make([]byte, 0, len(raw))
	var reply []byte

	i := 0
	for i < len(raw) {
		if raw[i] != telnetIAC {
			out = append(out, raw[i])
			i++
			continue
		}
		if i+1 >= len(raw) {
			// Lone IAC at the chunk boundary.
			hold = append(hold, raw[i:]...)
			break
		}

		switch verb := raw[i+1]; verb {
		case telnetIAC:
			out = append(out, telnetIAC)
			i += 2
		case telnetDO, telnetDONT, telnetWILL, telnetWONT:
			if i+2 >= len(raw) {
				// Verb present, option byte still in flight.
				hold = append(hold, raw[i:]...)
				i = len(raw)
				continue
			}
			opt := raw[i+2]
			switch verb {
			case telnetDO:
				reply = append(reply, telnetIAC, telnetWONT, opt)
			case telnetWILL:
				reply = append(reply, telnetIAC, telnetDONT, opt)
			}
			i += 3
		case telnetSB:
			end := -1
			for j := i + 2; j+1 < len(raw); j++ {
				if raw[j] == telnetIAC && raw[j+1] == telnetSE {
					end = j + 1
					break
				}
			}
			if end < 0 {
				// Subnegotiation not yet terminated by IAC SE.
				hold = append(hold, raw[i:]...)
				i = len(raw)
				continue
			}
			i = end + 1
		default:
			// Two-byte command (NOP, GA, ...): drop it.
			i += 2
		}
	}

	if len(reply) > 0 {
		_, _ = t.conn.Write(reply)
	}
	return out, hold
}

func (t *telnetConn) Write(p []byte) (int, error) {
	// Escape literal 0xFF bytes per RFC 854.
	if !bytes.Contains(p, []byte{telnetIAC}) {
		return t.conn.Write(p)
	}
	escaped := bytes.ReplaceAll(p, []byte{telnetIAC}, []byte{telnetIAC, telnetIAC})
	if _, err := t.conn.Write(escaped); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *telnetConn) Close() error {
	return t.conn.Close()
}
