// Package discovery resolves logical PON port addresses to the device's
// IF-MIB ifIndex. The chassis exposes interface names only as a table keyed
// by ifIndex, with no reverse lookup, so resolution is a bounded probe of
// the ranges the ONU indexes are known to occupy.
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nanoncore/nano-access/drivers/snmp"
	"github.com/nanoncore/nano-access/types"
)

// IfNameOID is the IF-MIB ifName table (RFC 2863) the search probes.
const IfNameOID = "1.3.6.1.2.1.31.1.1.1.1"

// probeChunk is how many name-table entries one multi-GET carries.
const probeChunk = 20

// Range is one contiguous ifIndex interval to search, inclusive.
type Range struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// Config holds the locator's search parameters. The ranges are empirical for
// a chassis family and ship as configuration, not constants: other hardware
// lays its ONU indexes out differently.
type Config struct {
	// Ranges are scanned in order; the first exact name match wins.
	Ranges []Range

	// IfNameOID overrides the probed name table. Empty means IF-MIB ifName.
	IfNameOID string
}

// snmpClient is the slice of drivers/snmp the locator uses.
type snmpClient interface {
	Get(ctx context.Context, host, oid string, opts *snmp.Options) (snmp.Varbind, error)
	GetMultiple(ctx context.Context, host string, oids []string, opts *snmp.Options) ([]snmp.Varbind, error)
}

// Locator resolves OnuAddress values to ifIndexes. Results are recomputed on
// every call: ONU indexes move on chassis reboot and board reseat and there
// is no invalidation signal to hang a cache on.
type Locator struct {
	snmp snmpClient
	cfg  Config
	log  *zap.Logger
}

// New creates a locator over an SNMP client.
func New(client *snmp.Client, cfg Config, log *zap.Logger) *Locator {
	return newLocator(client, cfg, log)
}

func newLocator(client snmpClient, cfg Config, log *zap.Logger) *Locator {
	if cfg.IfNameOID == "" {
		cfg.IfNameOID = IfNameOID
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Locator{snmp: client, cfg: cfg, log: log}
}

// Resolve maps addr to the device's ifIndex, verifying each candidate with
// verifyOID (a status table indexed by ifIndex; any decodable value accepts).
//
// Strategy: resolve ONU #1 on the same slot/pon by scanning the name table,
// derive the target arithmetically (ONU indexes are usually sequential
// within a PON port), and verify. When the arithmetic assumption does not
// hold for the chassis, fall back to scanning for the target name directly.
// Exhausting both strategies yields types.ErrNotFound, which means "device
// offline or invalid port" rather than a transport failure.
func (l *Locator) Resolve(ctx context.Context, host string, addr types.OnuAddress, verifyOID string, opts *snmp.Options) (int, error) {
	base := addr.Base()

	baseIdx, found := l.search(ctx, host, base.String(), opts)
	if found {
		if addr.Onu == 1 {
			return baseIdx, nil
		}
		candidate := baseIdx + addr.Onu - 1
		if l.verify(ctx, host, verifyOID, candidate, opts) {
			return candidate, nil
		}
		l.log.Debug("arithmetic candidate failed verification, falling back to direct search",
			zap.String("addr", addr.String()),
			zap.Int("candidate", candidate))
	}

	if idx, ok := l.search(ctx, host, addr.String(), opts); ok {
		return idx, nil
	}

	return 0, fmt.Errorf("%w: %s on %s", types.ErrNotFound, addr, host)
}

// search scans the configured ranges for an exact ifName match, probing in
// multi-GET chunks. Probe failures (error varbinds, timeouts on sparse
// table regions) skip ahead rather than aborting the search.
func (l *Locator) search(ctx context.Context, host, name string, opts *snmp.Options) (int, bool) {
	for _, r := range l.cfg.Ranges {
		for lo := r.Start; lo <= r.End; lo += probeChunk {
			hi := lo + probeChunk - 1
			if hi > r.End {
				hi = r.End
			}

			oids := make([]string, 0, hi-lo+1)
			for i := lo; i <= hi; i++ {
				oids = append(oids, fmt.Sprintf("%s.%d", l.cfg.IfNameOID, i))
			}

			vbs, err := l.snmp.GetMultiple(ctx, host, oids, opts)
			if err != nil {
				l.log.Debug("name table probe failed",
					zap.Int("from", lo), zap.Int("to", hi), zap.Error(err))
				continue
			}

			for _, vb := range vbs {
				s, ok := vb.Value.(string)
				if !ok || s != name {
					continue
				}
				if idx, ok := indexFromOID(vb.OID); ok {
					return idx, true
				}
			}
		}
	}
	return 0, false
}

// verify probes a status OID at the candidate ifIndex; any successful read
// accepts the candidate.
func (l *Locator) verify(ctx context.Context, host, verifyOID string, ifIndex int, opts *snmp.Options) bool {
	if verifyOID == "" {
		return false
	}
	_, err := l.snmp.Get(ctx, host, fmt.Sprintf("%s.%d", verifyOID, ifIndex), opts)
	return err == nil
}

// indexFromOID extracts the trailing ifIndex label from a name-table OID.
func indexFromOID(oid string) (int, bool) {
	dot := strings.LastIndexByte(oid, '.')
	if dot < 0 || dot == len(oid)-1 {
		return 0, false
	}
	idx, err := strconv.Atoi(oid[dot+1:])
	if err != nil {
		return 0, false
	}
	return idx, true
}
