// Package bdcom implements the vendor profile for BDCOM EPON chassis
// (P3310/P3608 series), the family that names subscriber ports
// "EPON{slot}/{pon}:{onu}".
package bdcom

import (
	"fmt"
	"regexp"

	"github.com/nanoncore/nano-access/types"
)

// Prompt patterns for the BDCOM CLI. The hostname is operator-configured,
// so the patterns accept any leading word characters.
var (
	loginPromptRE    = regexp.MustCompile(`(?i)(user\s?name|login):\s*$`)
	passwordPromptRE = regexp.MustCompile(`(?i)password:\s*$`)
	promptRE         = regexp.MustCompile(`(?m)[\w\-\[\]()./]+[>#]\s*$`)
	privPromptRE     = regexp.MustCompile(`(?m)[\w\-\[\]()./]+#\s*$`)
)

// CommandSet implements types.CommandSet for the BDCOM CLI grammar.
type CommandSet struct{}

func (CommandSet) LoginPrompt() *regexp.Regexp      { return loginPromptRE }
func (CommandSet) PasswordPrompt() *regexp.Regexp   { return passwordPromptRE }
func (CommandSet) Prompt() *regexp.Regexp           { return promptRE }
func (CommandSet) PrivilegedPrompt() *regexp.Regexp { return privPromptRE }
func (CommandSet) EnableCommand() string            { return "enable" }
func (CommandSet) PagerDisableCommand() string      { return "terminal length 0" }

// VlanCommands configures the subscriber VLAN on the ONU's UNI port via
// CTC OAM, entered from the EPON interface context.
func (CommandSet) VlanCommands(addr types.OnuAddress, vlan int) []string {
	return []string{
		"config",
		fmt.Sprintf("interface %s", addr),
		fmt.Sprintf("epon onu port 1 ctc vlan mode tag %d", vlan),
		"exit",
		"exit",
	}
}

// RebootCommands power-cycles one ONU from its interface context.
func (CommandSet) RebootCommands(addr types.OnuAddress) []string {
	return []string{
		"config",
		fmt.Sprintf("interface %s", addr),
		"epon reboot onu",
		"exit",
		"exit",
	}
}

// Profile returns the full BDCOM vendor profile.
func Profile() types.VendorProfile {
	return types.VendorProfile{
		Commands: CommandSet{},
		MIB:      MIB{},
	}
}
