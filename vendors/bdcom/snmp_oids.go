package bdcom

import "fmt"

// BDCOM EPON MIB OIDs (enterprise 3320). Derived from the NMS-EPON MIB set
// shipped with P3310/P3608 firmware. All tables are indexed by the ONU
// port's ifIndex.
const (
	// Enterprise OID prefix for BDCOM
	OIDBDCOMEnterprise = "1.3.6.1.4.1.3320"

	// Standard MIB-II System OIDs (RFC 1213)
	OIDSysDescr  = "1.3.6.1.2.1.1.1.0" // System description
	OIDSysUpTime = "1.3.6.1.2.1.1.3.0" // System uptime in hundredths of seconds
	OIDSysName   = "1.3.6.1.2.1.1.5.0" // System name

	// IF-MIB ifName table used by ONU discovery
	OIDIfName = "1.3.6.1.2.1.31.1.1.1.1"

	// ONU registration state (1 = online)
	OIDOnuStatus = "1.3.6.1.4.1.3320.101.10.1.1.26"

	// ONU MAC address (6 raw bytes, some firmware returns 12 hex digits)
	OIDOnuMacAddress = "1.3.6.1.4.1.3320.101.10.1.1.3"

	// ONU transceiver readings (value * 0.01 = dBm, 2147483647 = offline)
	OIDOnuRxPower = "1.3.6.1.4.1.3320.101.10.5.1.5"
	OIDOnuTxPower = "1.3.6.1.4.1.3320.101.10.5.1.6"
)

// onuStatusOnline is the OIDOnuStatus value for a registered, online ONU.
const onuStatusOnline = 1

// MIB implements types.MIBProfile for the BDCOM EPON MIB.
type MIB struct{}

func (MIB) OnuStatusTable() string {
	return OIDOnuStatus
}

func (MIB) OnuStatusOID(ifIndex int) string {
	return fmt.Sprintf("%s.%d", OIDOnuStatus, ifIndex)
}

func (MIB) OnuRxPowerOID(ifIndex int) string {
	return fmt.Sprintf("%s.%d", OIDOnuRxPower, ifIndex)
}

func (MIB) OnuTxPowerOID(ifIndex int) string {
	return fmt.Sprintf("%s.%d", OIDOnuTxPower, ifIndex)
}

func (MIB) OnuMACOID(ifIndex int) string {
	return fmt.Sprintf("%s.%d", OIDOnuMacAddress, ifIndex)
}

func (MIB) OnlineStatus(value int64) bool {
	return value == onuStatusOnline
}
