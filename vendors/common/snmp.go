// Package common holds decode helpers shared by vendor profiles: numeric
// coercion of SNMP values, optical power scaling, and MAC rendering.
package common

import (
	"fmt"
	"strings"
)

// SNMPInvalidValue is the magic value indicating an offline/invalid SNMP
// reading. EPON chassis return it for optical parameters of an offline ONU.
const SNMPInvalidValue int64 = 2147483647

// ParseIntSNMPValue extracts an int64 from the numeric types SNMP libraries
// may return.
func ParseIntSNMPValue(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}

// ParseStringSNMPValue extracts a string from an SNMP result, handling both
// string and []byte.
func ParseStringSNMPValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// DecodeOpticalPower converts a raw hundredths-of-dBm reading to dBm.
// The second return is false for the offline/invalid sentinel.
func DecodeOpticalPower(raw int64) (float64, bool) {
	if raw == SNMPInvalidValue {
		return 0, false
	}
	return float64(raw) / 100, true
}

// DecodeMAC renders a MAC address as colon-separated lowercase hex. Accepts
// the two encodings agents use for the value: six raw bytes, or a string of
// twelve hex digits (possibly already separated).
func DecodeMAC(value interface{}) (string, error) {
	switch v := value.(type) {
	case []byte:
		if len(v) != 6 {
			// Agents sometimes deliver the hex string as an OctetString.
			return DecodeMAC(string(v))
		}
		return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", v[0], v[1], v[2], v[3], v[4], v[5]), nil
	case string:
		hexOnly := strings.Map(func(r rune) rune {
			switch {
			case r >= '0' && r <= '9':
				return r
			case r >= 'a' && r <= 'f':
				return r
			case r >= 'A' && r <= 'F':
				return r + ('a' - 'A')
			case r == ':' || r == '-' || r == '.' || r == ' ':
				return -1
			default:
				return 'x' // poison: invalid character
			}
		}, v)
		if len(hexOnly) != 12 || strings.ContainsRune(hexOnly, 'x') {
			return "", fmt.Errorf("value %q is not a MAC address", v)
		}
		parts := make([]string, 6)
		for i := 0; i < 6; i++ {
			parts[i] = hexOnly[i*2 : i*2+2]
		}
		return strings.Join(parts, ":"), nil
	default:
		return "", fmt.Errorf("unsupported MAC value type %T", value)
	}
}
