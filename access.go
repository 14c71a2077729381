// Package access is the equipment access layer for PON chassis: it gives
// the API gateway one facade for interactive CLI execution (telnet/SSH,
// session pooled) and passive SNMP status queries (ONU discovery plus
// optical readings), with vendor specifics isolated behind profiles.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nanoncore/nano-access/config"
	"github.com/nanoncore/nano-access/discovery"
	"github.com/nanoncore/nano-access/drivers/cli"
	"github.com/nanoncore/nano-access/drivers/snmp"
	"github.com/nanoncore/nano-access/pool"
	"github.com/nanoncore/nano-access/types"
	"github.com/nanoncore/nano-access/vendors/bdcom"
	"github.com/nanoncore/nano-access/vendors/common"
)

// AuditFunc receives a record for every executed command. Invoked inline
// after execution; keep implementations fast or hand off to a channel.
type AuditFunc func(types.AuditRecord)

// EquipmentFacade composes the session pool, the CLI executor, the SNMP
// client and the ONU locator behind one API surface. Errors crossing this
// boundary are operator-readable strings inside the result types; raw
// transport errors never leak out.
type EquipmentFacade struct {
	cfg      *config.Config
	pool     *pool.Pool
	exec     *cli.Executor
	snmp     *snmp.Client
	locator  *discovery.Locator
	validate *validator.Validate
	log      *zap.Logger

	mu      sync.RWMutex
	vendors map[types.Vendor]types.VendorProfile
	audit   AuditFunc
}

// New builds a facade from the configuration. A nil cfg uses the built-in
// defaults, a nil logger discards logs. The BDCOM profile is pre-registered.
func New(cfg *config.Config, log *zap.Logger) *EquipmentFacade {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := pool.New(pool.Config{
		MaxConnections: cfg.Pool.MaxConnections,
		IdleTimeout:    cfg.Pool.IdleTimeout(),
		SweepInterval:  cfg.Pool.SweepInterval(),
	}, log.Named("pool"))

	exec := cli.NewExecutor(p, cli.ExecutorConfig{
		LoginTimeout:   cfg.CLI.LoginTimeout(),
		EnableTimeout:  cfg.CLI.EnableTimeout(),
		CommandTimeout: cfg.CLI.CommandTimeout(),
		SettleDelay:    cfg.CLI.SettleDelay(),
		MaxOutputBytes: cfg.CLI.MaxOutputBytes,
	}, log.Named("cli"))

	sc := snmp.New(snmp.Options{
		Community:      cfg.SNMP.Community,
		Port:           uint16(cfg.SNMP.Port), //nolint:gosec // validated range
		Version:        cfg.SNMP.Version,
		Timeout:        cfg.SNMP.Timeout(),
		Retries:        cfg.SNMP.Retries,
		MaxRepetitions: uint32(cfg.SNMP.MaxRepetitions), //nolint:gosec // validated range
	}, log.Named("snmp"))

	loc := discovery.New(sc, discovery.Config{Ranges: cfg.Locator.Ranges}, log.Named("discovery"))

	return &EquipmentFacade{
		cfg:      cfg,
		pool:     p,
		exec:     exec,
		snmp:     sc,
		locator:  loc,
		validate: validator.New(),
		log:      log,
		vendors: map[types.Vendor]types.VendorProfile{
			types.VendorBDCOM: bdcom.Profile(),
		},
	}
}

// Register adds or replaces a vendor profile.
func (f *EquipmentFacade) Register(v types.Vendor, p types.VendorProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vendors[v] = p
}

// SetAudit installs the audit collaborator. Pass nil to disable.
func (f *EquipmentFacade) SetAudit(fn AuditFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit = fn
}

// profile resolves a vendor identifier; empty means the default BDCOM.
func (f *EquipmentFacade) profile(v types.Vendor) (types.VendorProfile, error) {
	if v == "" {
		v = types.VendorBDCOM
	}
	f.mu.RLock()
	p, ok := f.vendors[v]
	f.mu.RUnlock()
	if !ok {
		return types.VendorProfile{}, fmt.Errorf("%w: unknown vendor %q", types.ErrInvalidInput, v)
	}
	return p, nil
}

// RunCommand executes one interactive CLI command against a device. Input
// problems (missing fields, unknown vendor, empty command) come back as an
// error; everything downstream of a valid request is reported inside the
// CommandResult.
func (f *EquipmentFacade) RunCommand(ctx context.Context, req types.CommandRequest) (types.CommandResult, error) {
	if err := f.validate.Struct(req); err != nil {
		return types.CommandResult{}, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	prof, err := f.profile(req.Vendor)
	if err != nil {
		return types.CommandResult{}, err
	}

	res, err := f.exec.RunCommand(ctx, req, prof.Commands)
	if err != nil {
		if errors.Is(err, types.ErrInvalidInput) {
			return types.CommandResult{}, err
		}
		res = f.setupFailure(req.Host, err)
	}

	f.record(req.Host, req.Command, res)
	return res, nil
}

// RunCommands executes a command sequence over one pooled session, stopping
// at the first failure. The per-step results are returned in order; a
// failure to open the session at all yields a single failed result.
func (f *EquipmentFacade) RunCommands(ctx context.Context, creds types.Credentials, commands []string, enable bool) ([]types.CommandResult, error) {
	if len(commands) == 0 {
		return nil, fmt.Errorf("%w: empty command list", types.ErrInvalidInput)
	}
	prof, err := f.checkCreds(creds)
	if err != nil {
		return nil, err
	}

	results, err := f.exec.RunCommands(ctx, creds, commands, enable, 0, prof.Commands)
	if err != nil {
		if errors.Is(err, types.ErrInvalidInput) {
			return nil, err
		}
		results = []types.CommandResult{f.setupFailure(creds.Host, err)}
	}

	f.record(creds.Host, strings.Join(commands, "; "), aggregate(results))
	return results, nil
}

// ConfigureVlan sets the subscriber VLAN on one ONU port, running the
// vendor's command sequence in privileged mode over a single session. The
// per-step results are folded into one aggregate result.
func (f *EquipmentFacade) ConfigureVlan(ctx context.Context, creds types.Credentials, address string, vlan int) (types.CommandResult, error) {
	if vlan < 1 || vlan > 4094 {
		return types.CommandResult{}, fmt.Errorf("%w: vlan %d out of range", types.ErrInvalidInput, vlan)
	}
	addr, err := types.ParseOnuAddress(address)
	if err != nil {
		return types.CommandResult{}, err
	}
	prof, err := f.checkCreds(creds)
	if err != nil {
		return types.CommandResult{}, err
	}

	cmds := prof.Commands.VlanCommands(addr, vlan)
	return f.runSequence(ctx, creds, cmds, strings.Join(cmds, "; "))
}

// RebootOnu power-cycles one ONU via the vendor's CLI sequence.
func (f *EquipmentFacade) RebootOnu(ctx context.Context, creds types.Credentials, address string) (types.CommandResult, error) {
	addr, err := types.ParseOnuAddress(address)
	if err != nil {
		return types.CommandResult{}, err
	}
	prof, err := f.checkCreds(creds)
	if err != nil {
		return types.CommandResult{}, err
	}

	cmds := prof.Commands.RebootCommands(addr)
	return f.runSequence(ctx, creds, cmds, strings.Join(cmds, "; "))
}

func (f *EquipmentFacade) checkCreds(creds types.Credentials) (types.VendorProfile, error) {
	if err := f.validate.Struct(creds); err != nil {
		return types.VendorProfile{}, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	return f.profile(creds.Vendor)
}

// runSequence executes a multi-step command sequence on one session and
// folds the step results into a single aggregate.
func (f *EquipmentFacade) runSequence(ctx context.Context, creds types.Credentials, cmds []string, auditCmd string) (types.CommandResult, error) {
	prof, err := f.profile(creds.Vendor)
	if err != nil {
		return types.CommandResult{}, err
	}

	results, err := f.exec.RunCommands(ctx, creds, cmds, true, 0, prof.Commands)
	var res types.CommandResult
	if err != nil && len(results) == 0 {
		if errors.Is(err, types.ErrInvalidInput) {
			return types.CommandResult{}, err
		}
		res = f.setupFailure(creds.Host, err)
	} else {
		res = aggregate(results)
	}

	f.record(creds.Host, auditCmd, res)
	return res, nil
}

// aggregate folds per-step results into one: success means every step
// succeeded, output is concatenated, elapsed is summed, and the first
// failure's message wins.
func aggregate(results []types.CommandResult) types.CommandResult {
	var out strings.Builder
	var elapsed time.Duration
	agg := types.CommandResult{Success: true}

	for _, r := range results {
		elapsed += r.Elapsed
		if r.Output != "" {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(r.Output)
		}
		if !r.Success && agg.Success {
			agg.Success = false
			agg.Err = r.Err
		}
	}

	agg.Output = out.String()
	agg.Elapsed = elapsed
	return agg
}

// setupFailure turns a session-setup error into a failed result with an
// operator-readable message. Raw dial/timeout errors stay in the logs.
func (f *EquipmentFacade) setupFailure(host string, err error) types.CommandResult {
	f.log.Warn("session setup failed", zap.String("host", host), zap.Error(err))

	msg := fmt.Sprintf("unable to open a session to %s", host)
	switch {
	case errors.Is(err, types.ErrPoolExhausted):
		msg = "connection pool exhausted, try again later"
	case types.IsTimeout(err):
		msg = fmt.Sprintf("connection to %s timed out", host)
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	}
	return types.CommandResult{Success: false, Err: msg}
}

// GetOnuStatus resolves the ONU's ifIndex and reads its registration state,
// optical power levels and MAC address over SNMP. The result always carries
// an explicit success flag; a missing ONU is reported as not found, not as a
// transport failure.
func (f *EquipmentFacade) GetOnuStatus(ctx context.Context, host, address string, vendor types.Vendor, opts *snmp.Options) types.StatusResult {
	addr, err := types.ParseOnuAddress(address)
	if err != nil {
		return types.StatusResult{Err: fmt.Sprintf("invalid port address %q", address)}
	}
	prof, err := f.profile(vendor)
	if err != nil {
		return types.StatusResult{Err: err.Error()}
	}

	ifIndex, err := f.locator.Resolve(ctx, host, addr, prof.MIB.OnuStatusTable(), opts)
	if err != nil {
		if types.IsNotFound(err) {
			return types.StatusResult{Err: fmt.Sprintf("onu %s not found on %s", address, host)}
		}
		f.log.Warn("onu resolution failed", zap.String("host", host), zap.Error(err))
		return types.StatusResult{Err: fmt.Sprintf("device %s unreachable", host)}
	}

	oids := []string{
		prof.MIB.OnuStatusOID(ifIndex),
		prof.MIB.OnuRxPowerOID(ifIndex),
		prof.MIB.OnuTxPowerOID(ifIndex),
		prof.MIB.OnuMACOID(ifIndex),
	}
	vbs, err := f.snmp.GetMultiple(ctx, host, oids, opts)
	if err != nil {
		f.log.Warn("status query failed", zap.String("host", host), zap.Error(err))
		return types.StatusResult{Err: fmt.Sprintf("device %s unreachable", host)}
	}

	st := &types.OnuStatus{Address: addr.String(), IfIndex: ifIndex}
	for _, vb := range vbs {
		switch strings.TrimPrefix(vb.OID, ".") {
		case oids[0]:
			if v, ok := common.ParseIntSNMPValue(vb.Value); ok {
				st.Online = prof.MIB.OnlineStatus(v)
			}
		case oids[1]:
			if raw, ok := common.ParseIntSNMPValue(vb.Value); ok {
				if p, valid := common.DecodeOpticalPower(raw); valid {
					st.RxPowerDBm = p
				}
			}
		case oids[2]:
			if raw, ok := common.ParseIntSNMPValue(vb.Value); ok {
				if p, valid := common.DecodeOpticalPower(raw); valid {
					st.TxPowerDBm = p
				}
			}
		case oids[3]:
			if mac, macErr := common.DecodeMAC(vb.Value); macErr == nil {
				st.MAC = mac
			}
		}
	}

	return types.StatusResult{Success: true, Status: st}
}

// GetOnuOpticalPower reports the ONU's transceiver readings. A convenience
// slice of GetOnuStatus for callers that only chart signal levels.
func (f *EquipmentFacade) GetOnuOpticalPower(ctx context.Context, host, address string, vendor types.Vendor, opts *snmp.Options) (rx, tx float64, err error) {
	res := f.GetOnuStatus(ctx, host, address, vendor, opts)
	if !res.Success {
		return 0, 0, errors.New(res.Err)
	}
	return res.Status.RxPowerDBm, res.Status.TxPowerDBm, nil
}

// GetOnuMAC reports the ONU's registered MAC address.
func (f *EquipmentFacade) GetOnuMAC(ctx context.Context, host, address string, vendor types.Vendor, opts *snmp.Options) (string, error) {
	res := f.GetOnuStatus(ctx, host, address, vendor, opts)
	if !res.Success {
		return "", errors.New(res.Err)
	}
	return res.Status.MAC, nil
}

// PoolStats reports the session pool's occupancy.
func (f *EquipmentFacade) PoolStats() pool.Stats {
	return f.pool.Stats()
}

// Close tears down every pooled session and stops the idle sweeper.
func (f *EquipmentFacade) Close() {
	f.pool.CloseAll()
}

// record offers an audit record to the installed collaborator, if any.
func (f *EquipmentFacade) record(host, command string, res types.CommandResult) {
	f.mu.RLock()
	fn := f.audit
	f.mu.RUnlock()
	if fn == nil {
		return
	}
	fn(types.AuditRecord{
		ID:       uuid.NewString(),
		DeviceIP: host,
		Command:  command,
		Output:   res.Output,
		Elapsed:  res.Elapsed,
		Success:  res.Success,
		At:       time.Now(),
	})
}
