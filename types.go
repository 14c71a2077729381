package access

import "github.com/nanoncore/nano-access/types"

// Aliases so callers embedding the facade need only this package.
type (
	Credentials    = types.Credentials
	CommandRequest = types.CommandRequest
	CommandResult  = types.CommandResult
	OnuAddress     = types.OnuAddress
	OnuStatus      = types.OnuStatus
	StatusResult   = types.StatusResult
	AuditRecord    = types.AuditRecord
	Vendor         = types.Vendor
	Transport      = types.Transport
	VendorProfile  = types.VendorProfile
)

const (
	VendorBDCOM     = types.VendorBDCOM
	TransportTelnet = types.TransportTelnet
	TransportSSH    = types.TransportSSH
)

var (
	ErrPoolExhausted  = types.ErrPoolExhausted
	ErrNotFound       = types.ErrNotFound
	ErrInvalidInput   = types.ErrInvalidInput
	ErrSessionDamaged = types.ErrSessionDamaged

	ParseOnuAddress = types.ParseOnuAddress
)
