package types

import (
	"errors"
	"testing"
)

func TestParseOnuAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    OnuAddress
		wantErr bool
	}{
		{"typical", "EPON0/8:15", OnuAddress{0, 8, 15}, false},
		{"first_onu", "EPON0/1:1", OnuAddress{0, 1, 1}, false},
		{"large_values", "EPON12/16:64", OnuAddress{12, 16, 64}, false},
		{"missing_onu", "EPON0/8", OnuAddress{}, true},
		{"gpon_prefix", "GPON0/8:15", OnuAddress{}, true},
		{"lowercase", "epon0/8:15", OnuAddress{}, true},
		{"onu_zero", "EPON0/8:0", OnuAddress{}, true},
		{"trailing_garbage", "EPON0/8:15x", OnuAddress{}, true},
		{"empty", "", OnuAddress{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOnuAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOnuAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("ParseOnuAddress(%q) error not classified as ErrInvalidInput: %v", tt.input, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseOnuAddress(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestOnuAddressRoundTrip(t *testing.T) {
	addr := OnuAddress{Slot: 0, Pon: 8, Onu: 15}
	if got := addr.String(); got != "EPON0/8:15" {
		t.Errorf("String() = %q, want %q", got, "EPON0/8:15")
	}

	base := addr.Base()
	if base != (OnuAddress{Slot: 0, Pon: 8, Onu: 1}) {
		t.Errorf("Base() = %+v, want onu 1 on same slot/pon", base)
	}
	if got := base.String(); got != "EPON0/8:1" {
		t.Errorf("Base().String() = %q, want %q", got, "EPON0/8:1")
	}
}
