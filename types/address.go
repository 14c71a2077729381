package types

import (
	"fmt"
	"regexp"
	"strconv"
)

// OnuAddress is a parsed PON port address like "EPON0/8:15":
// slot 0, PON port 8, ONU 15.
type OnuAddress struct {
	Slot int
	Pon  int
	Onu  int
}

var onuAddressRE = regexp.MustCompile(`^EPON(\d+)/(\d+):(\d+)$`)

// ParseOnuAddress parses a port address of the form EPON{slot}/{pon}:{onu}.
func ParseOnuAddress(s string) (OnuAddress, error) {
	m := onuAddressRE.FindStringSubmatch(s)
	if m == nil {
		return OnuAddress{}, fmt.Errorf("%w: port address %q does not match EPON<slot>/<pon>:<onu>", ErrInvalidInput, s)
	}

	slot, _ := strconv.Atoi(m[1])
	pon, _ := strconv.Atoi(m[2])
	onu, _ := strconv.Atoi(m[3])
	if onu < 1 {
		return OnuAddress{}, fmt.Errorf("%w: onu number must be >= 1 in %q", ErrInvalidInput, s)
	}

	return OnuAddress{Slot: slot, Pon: pon, Onu: onu}, nil
}

func (a OnuAddress) String() string {
	return fmt.Sprintf("EPON%d/%d:%d", a.Slot, a.Pon, a.Onu)
}

// Base returns the address of ONU #1 on the same slot/pon. Discovery resolves
// the base first and derives sibling indexes arithmetically.
func (a OnuAddress) Base() OnuAddress {
	return OnuAddress{Slot: a.Slot, Pon: a.Pon, Onu: 1}
}
