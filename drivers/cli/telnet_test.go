package cli

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"
)

// scriptConn feeds scripted chunks to Read and captures writes.
type scriptConn struct {
	reads [][]byte
	wrote bytes.Buffer
}

func (c *scriptConn) Read(p []byte) (int, error) {
	if len(c.reads) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.reads[0])
	if n == len(c.reads[0]) {
		c.reads = c.reads[1:]
	} else {
		c.reads[0] = c.reads[0][n:]
	}
	return n, nil
}

func (c *scriptConn) Write(p []byte) (int, error)      { return c.wrote.Write(p) }
func (c *scriptConn) Close() error                     { return nil }
func (c *scriptConn) LocalAddr() net.Addr              { return nil }
func (c *scriptConn) RemoteAddr() net.Addr             { return nil }
func (c *scriptConn) SetDeadline(time.Time) error      { return nil }
func (c *scriptConn) SetReadDeadline(time.Time) error  { return nil }
func (c *scriptConn) SetWriteDeadline(time.Time) error { return nil }

func readAll(t *testing.T, tc *telnetConn) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 64)
	for {
		n, err := tc.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			return out
		}
	}
}

func TestFilterIAC(t *testing.T) {
	tests := []struct {
		name      string
		raw       []byte
		want      []byte
		wantHold  []byte
		wantReply []byte
	}{
		{
			name: "plain_passthrough",
			raw:  []byte("Switch>"),
			want: []byte("Switch>"),
		},
		{
			name:      "do_refused_with_wont",
			raw:       []byte{telnetIAC, telnetDO, 1, 'o', 'k'},
			want:      []byte("ok"),
			wantReply: []byte{telnetIAC, telnetWONT, 1},
		},
		{
			name:      "will_refused_with_dont",
			raw:       []byte{telnetIAC, telnetWILL, 3, 'o', 'k'},
			want:      []byte("ok"),
			wantReply: []byte{telnetIAC, telnetDONT, 3},
		},
		{
			name: "escaped_iac_is_literal",
			raw:  []byte{'a', telnetIAC, telnetIAC, 'b'},
			want: []byte{'a', 0xff, 'b'},
		},
		{
			name: "subnegotiation_skipped",
			raw:  append([]byte{telnetIAC, telnetSB, 31, 0, 80, 0, 24, telnetIAC, telnetSE}, []byte("after")...),
			want: []byte("after"),
		},
		{
			name:     "lone_iac_held",
			raw:      []byte{'o', 'k', telnetIAC},
			want:     []byte("ok"),
			wantHold: []byte{telnetIAC},
		},
		{
			name:     "iac_verb_without_option_held",
			raw:      []byte{'o', 'k', telnetIAC, telnetDO},
			want:     []byte("ok"),
			wantHold: []byte{telnetIAC, telnetDO},
		},
		{
			name:     "unterminated_subnegotiation_held",
			raw:      []byte{'o', 'k', telnetIAC, telnetSB, 31, 0},
			want:     []byte("ok"),
			wantHold: []byte{telnetIAC, telnetSB, 31, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &scriptConn{}
			tc := &telnetConn{conn: sc}

			got, hold := tc.filterIAC(tt.raw)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("filterIAC(%v) = %q, want %q", tt.raw, got, tt.want)
			}
			if !bytes.Equal(hold, tt.wantHold) {
				t.Errorf("held bytes = %v, want %v", hold, tt.wantHold)
			}
			if !bytes.Equal(sc.wrote.Bytes(), tt.wantReply) {
				t.Errorf("negotiation reply = %v, want %v", sc.wrote.Bytes(), tt.wantReply)
			}
		})
	}
}

func TestNegotiationSplitAcrossChunks(t *testing.T) {
	// IAC at the end of one segment, verb and option in the next: the
	// sequence must be reassembled, refused, and kept out of the data.
	sc := &scriptConn{reads: [][]byte{
		{'o', 'k', telnetIAC},
		{telnetDO, 1, '>'},
	}}
	tc := &telnetConn{conn: sc}

	out := readAll(t, tc)
	if string(out) != "ok>" {
		t.Errorf("data stream = %q, want %q", out, "ok>")
	}
	want := []byte{telnetIAC, telnetWONT, 1}
	if !bytes.Equal(sc.wrote.Bytes(), want) {
		t.Errorf("negotiation reply = %v, want %v", sc.wrote.Bytes(), want)
	}
}

func TestEscapedIACSplitAcrossChunks(t *testing.T) {
	sc := &scriptConn{reads: [][]byte{
		{'a', telnetIAC},
		{telnetIAC, 'b'},
	}}
	tc := &telnetConn{conn: sc}

	out := readAll(t, tc)
	want := []byte{'a', 0xff, 'b'}
	if !bytes.Equal(out, want) {
		t.Errorf("data stream = %v, want %v", out, want)
	}
}

func TestPagerMarkerAbsorbed(t *testing.T) {
	sc := &scriptConn{reads: [][]byte{
		[]byte("line one\n--More--line two\n"),
	}}
	tc := &telnetConn{conn: sc}

	out := readAll(t, tc)
	if string(out) != "line one\nline two\n" {
		t.Errorf("output = %q", out)
	}
	if sc.wrote.String() != " " {
		t.Errorf("pager answer = %q, want a single space", sc.wrote.String())
	}
}

func TestPagerMarkerSplitAcrossChunks(t *testing.T) {
	sc := &scriptConn{reads: [][]byte{
		[]byte("page one\n--Mo"),
		[]byte("re--page two\n"),
	}}
	tc := &telnetConn{conn: sc}

	out := readAll(t, tc)
	if string(out) != "page one\npage two\n" {
		t.Errorf("output = %q", out)
	}
	if sc.wrote.String() != " " {
		t.Errorf("pager answer = %q, want a single space", sc.wrote.String())
	}
}

func TestPartialMarkerFlushedOnEOF(t *testing.T) {
	// A trailing "--Mo" that never completes must still reach the caller.
	sc := &scriptConn{reads: [][]byte{[]byte("tail--Mo")}}
	tc := &telnetConn{conn: sc}

	out := readAll(t, tc)
	if string(out) != "tail--Mo" {
		t.Errorf("output = %q, want the partial marker flushed", out)
	}
}

func TestPartialMarkerSuffix(t *testing.T) {
	tests := []struct {
		data string
		want int
	}{
		{"", 0},
		{"hello", 0},
		{"hello-", 1},
		{"hello--", 2},
		{"hello--More", 6},
		{"hello--More-", 7},
		{"hello--More--", 2}, // the trailing "--" could start a new marker
		{"-", 1},
	}
	for _, tt := range tests {
		if got := partialMarkerSuffix([]byte(tt.data)); got != tt.want {
			t.Errorf("partialMarkerSuffix(%q) = %d, want %d", tt.data, got, tt.want)
		}
	}
}

func TestWriteEscapesIAC(t *testing.T) {
	sc := &scriptConn{}
	tc := &telnetConn{conn: sc}

	n, err := tc.Write([]byte{'a', 0xff, 'b'})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Write returned %d, want the unescaped length 3", n)
	}
	want := []byte{'a', 0xff, 0xff, 'b'}
	if !bytes.Equal(sc.wrote.Bytes(), want) {
		t.Errorf("wire bytes = %v, want %v", sc.wrote.Bytes(), want)
	}
}
