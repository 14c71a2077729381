package types

import (
	"net"
	"regexp"
	"strconv"
	"time"
)

// Transport selects the interactive transport used to reach a chassis CLI.
type Transport string

const (
	TransportTelnet Transport = "telnet"
	TransportSSH    Transport = "ssh"
)

// Vendor identifies the chassis family a device belongs to. It selects the
// command set and MIB profile used against the device.
type Vendor string

const (
	VendorBDCOM Vendor = "bdcom"
)

// Credentials is the validated credential bundle handed down from the API
// layer for one device.
type Credentials struct {
	// Host is the management IP or hostname.
	Host string `json:"host" validate:"required"`

	// Port is the management port. Zero means the transport default
	// (23 for telnet, 22 for SSH).
	Port int `json:"port,omitempty" validate:"gte=0,lte=65535"`

	// Username and Password authenticate the CLI session.
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`

	// Vendor selects the command set. Empty means the default vendor.
	Vendor Vendor `json:"vendorType,omitempty"`

	// Transport selects telnet or SSH. Empty means telnet.
	Transport Transport `json:"transport,omitempty"`
}

// Addr returns host:port with the given default applied when Port is zero.
func (c Credentials) Addr(defaultPort int) string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// CommandRequest describes one interactive CLI command execution.
type CommandRequest struct {
	Credentials

	// Command is the raw command text. It is sanitized before being sent.
	Command string `json:"command" validate:"required"`

	// Timeout overrides the configured command timeout when non-zero.
	Timeout time.Duration `json:"-"`

	// Enable requests privileged mode before the command runs.
	Enable bool `json:"enable,omitempty"`
}

// CommandResult is the outcome of one command execution. It is a value type
// and never mutated after being produced.
type CommandResult struct {
	Success bool          `json:"success"`
	Output  string        `json:"output"`
	Elapsed time.Duration `json:"executionTime"`
	Err     string        `json:"error,omitempty"`
}

// OnuStatus is the decoded passive status of one subscriber line.
type OnuStatus struct {
	Address    string  `json:"address"`
	IfIndex    int     `json:"ifIndex"`
	Online     bool    `json:"online"`
	RxPowerDBm float64 `json:"rxPowerDbm"`
	TxPowerDBm float64 `json:"txPowerDbm"`
	MAC        string  `json:"mac,omitempty"`
}

// StatusResult wraps a passive status query outcome for the API layer:
// an explicit success flag plus either data or an error string, never a raw
// transport error.
type StatusResult struct {
	Success bool       `json:"success"`
	Status  *OnuStatus `json:"data,omitempty"`
	Err     string     `json:"error,omitempty"`
}

// AuditRecord is the per-execution record offered to the external audit
// collaborator. The access layer does not persist it.
type AuditRecord struct {
	ID       string        `json:"id"`
	DeviceIP string        `json:"deviceIp"`
	Command  string        `json:"command"`
	Output   string        `json:"output"`
	Elapsed  time.Duration `json:"executionTime"`
	Success  bool          `json:"success"`
	At       time.Time     `json:"at"`
}

// CommandSet is the vendor strategy for driving one chassis family's CLI.
// Implementations live under vendors/ and are registered with the facade.
type CommandSet interface {
	// LoginPrompt and PasswordPrompt match the in-band telnet login dialog.
	LoginPrompt() *regexp.Regexp
	PasswordPrompt() *regexp.Regexp

	// Prompt matches both the limited (">") and privileged ("#") prompts.
	Prompt() *regexp.Regexp

	// PrivilegedPrompt matches only the privileged prompt.
	PrivilegedPrompt() *regexp.Regexp

	// EnableCommand enters privileged mode.
	EnableCommand() string

	// PagerDisableCommand turns off output pagination, empty if none.
	PagerDisableCommand() string

	// VlanCommands builds the command sequence configuring the subscriber
	// VLAN on one ONU port.
	VlanCommands(addr OnuAddress, vlan int) []string

	// RebootCommands builds the command sequence rebooting one ONU.
	RebootCommands(addr OnuAddress) []string
}

// MIBProfile supplies the vendor OIDs consumed by the passive status path.
// Indexes are the device's IF-MIB ifIndex for the ONU port.
type MIBProfile interface {
	// OnuStatusTable is the status column OID without an index, used to
	// verify ifIndex candidates during discovery.
	OnuStatusTable() string

	OnuStatusOID(ifIndex int) string
	OnuRxPowerOID(ifIndex int) string
	OnuTxPowerOID(ifIndex int) string
	OnuMACOID(ifIndex int) string

	// OnlineStatus reports whether a decoded status value means online.
	OnlineStatus(value int64) bool
}

// VendorProfile bundles the CLI and SNMP strategies for one chassis family.
type VendorProfile struct {
	Commands CommandSet
	MIB      MIBProfile
}
