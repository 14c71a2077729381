package common

import "testing"

func TestParseIntSNMPValue(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{"int", 42, 42, true},
		{"int64", int64(-7), -7, true},
		{"uint32", uint32(4294967295), 4294967295, true},
		{"uint64", uint64(99), 99, true},
		{"string", "42", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseIntSNMPValue(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseIntSNMPValue(%v) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDecodeOpticalPower(t *testing.T) {
	tests := []struct {
		name string
		raw  int64
		want float64
		ok   bool
	}{
		{"typical_rx", -2150, -21.50, true},
		{"typical_tx", 245, 2.45, true},
		{"zero", 0, 0, true},
		{"offline_sentinel", SNMPInvalidValue, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeOpticalPower(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Errorf("DecodeOpticalPower(%d) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDecodeMAC(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    string
		wantErr bool
	}{
		{"raw_bytes", []byte{0x00, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e}, "00:1a:2b:3c:4d:5e", false},
		{"hex_string", "001a2b3c4d5e", "00:1a:2b:3c:4d:5e", false},
		{"uppercase_hex", "001A2B3C4D5E", "00:1a:2b:3c:4d:5e", false},
		{"colon_separated", "00:1A:2B:3C:4D:5E", "00:1a:2b:3c:4d:5e", false},
		{"dotted_cisco", "001a.2b3c.4d5e", "00:1a:2b:3c:4d:5e", false},
		{"too_short", "001a2b", "", true},
		{"garbage", "not-a-mac-addr", "", true},
		{"wrong_type", 12345, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMAC(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeMAC(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DecodeMAC(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Hello, World!", "Hello, World!"},
		{"colored", "\x1b[31mError\x1b[0m", "Error"},
		{"olt_prompt", "\x1b[0mSwitch#\x1b[K show onu", "Switch# show onu"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripANSI(tt.input); got != tt.want {
				t.Errorf("StripANSI(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
