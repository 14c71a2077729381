// Package snmp wraps gosnmp with stateless, typed GET / multi-GET / WALK
// operations. Every call opens its own UDP session and closes it exactly
// once; there is no connection affinity to amortize on the SNMP path.
package snmp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/nanoncore/nano-access/types"
)

// Varbind is one decoded (OID, type, value) triple from an agent.
type Varbind struct {
	OID   string
	Type  gosnmp.Asn1BER
	Value interface{}
}

// Protocol versions accepted in Options.Version.
const (
	Version1  = "1"
	Version2c = "2c"
)

// Options configure one SNMP call. Zero fields fall back to the client's
// defaults.
type Options struct {
	Community      string
	Port           uint16
	Version        string
	Timeout        time.Duration
	Retries        int
	MaxRepetitions uint32
}

// DefaultOptions are the fallbacks applied when neither the client defaults
// nor the per-call options set a field.
var DefaultOptions = Options{
	Community:      "public",
	Port:           161,
	Version:        Version2c,
	Timeout:        5 * time.Second,
	Retries:        1,
	MaxRepetitions: 20,
}

// merge overlays o on top of base, field by field.
func (o *Options) merge(base Options) Options {
	out := base
	if o == nil {
		return out
	}
	if o.Community != "" {
		out.Community = o.Community
	}
	if o.Port != 0 {
		out.Port = o.Port
	}
	if o.Version != "" {
		out.Version = o.Version
	}
	if o.Timeout != 0 {
		out.Timeout = o.Timeout
	}
	if o.Retries != 0 {
		out.Retries = o.Retries
	}
	if o.MaxRepetitions != 0 {
		out.MaxRepetitions = o.MaxRepetitions
	}
	return out
}

// Client issues SNMP requests. It holds no connection state.
type Client struct {
	defaults Options
	log      *zap.Logger
}

// New creates a client. Zero fields in defaults fall back to DefaultOptions.
func New(defaults Options, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		defaults: defaults.merge(DefaultOptions),
		log:      log,
	}
}

// open connects a gosnmp session for one call.
func (c *Client) open(ctx context.Context, host string, opts *Options) (*gosnmp.GoSNMP, Options, error) {
	eff := opts.merge(c.defaults)

	version := gosnmp.Version2c
	if eff.Version == Version1 {
		version = gosnmp.Version1
	}

	g := &gosnmp.GoSNMP{
		Context:        ctx,
		Target:         host,
		Port:           eff.Port,
		Community:      eff.Community,
		Version:        version,
		Timeout:        eff.Timeout,
		Retries:        eff.Retries,
		MaxRepetitions: eff.MaxRepetitions,
	}
	if err := g.Connect(); err != nil {
		return nil, eff, &types.ConnError{Host: host, Err: fmt.Errorf("snmp connect: %w", err)}
	}
	return g, eff, nil
}

// Get issues a single GET. An error varbind in the response is a failure.
func (c *Client) Get(ctx context.Context, host, oid string, opts *Options) (Varbind, error) {
	g, eff, err := c.open(ctx, host, opts)
	if err != nil {
		return Varbind{}, err
	}
	defer g.Conn.Close()

	packet, err := g.Get([]string{oid})
	if err != nil {
		return Varbind{}, &types.TimeoutError{Op: fmt.Sprintf("snmp get %s", oid), Timeout: eff.Timeout, Err: err}
	}
	if len(packet.Variables) == 0 {
		return Varbind{}, fmt.Errorf("snmp get %s: empty response", oid)
	}

	pdu := packet.Variables[0]
	if kind, bad := errorVarbind(pdu); bad {
		return Varbind{}, &types.VarbindError{OID: pdu.Name, Kind: kind}
	}
	return decode(pdu), nil
}

// GetMultiple issues one GET carrying all OIDs. Error varbinds are filtered
// out of the result set rather than failing the call.
func (c *Client) GetMultiple(ctx context.Context, host string, oids []string, opts *Options) ([]Varbind, error) {
	if len(oids) == 0 {
		return nil, nil
	}

	g, eff, err := c.open(ctx, host, opts)
	if err != nil {
		return nil, err
	}
	defer g.Conn.Close()

	packet, err := g.Get(oids)
	if err != nil {
		return nil, &types.TimeoutError{Op: "snmp multi-get", Timeout: eff.Timeout, Err: err}
	}

	return collect(packet.Variables), nil
}

// Walk retrieves the subtree under baseOid, using GETBULK rounds for v2c and
// plain GETNEXT for v1. Results are returned in walk order.
func (c *Client) Walk(ctx context.Context, host, baseOid string, opts *Options) ([]Varbind, error) {
	g, eff, err := c.open(ctx, host, opts)
	if err != nil {
		return nil, err
	}
	defer g.Conn.Close()

	var pdus []gosnmp.SnmpPDU
	walkFn := func(pdu gosnmp.SnmpPDU) error {
		pdus = append(pdus, pdu)
		return nil
	}

	if eff.Version == Version1 {
		err = g.Walk(baseOid, walkFn)
	} else {
		err = g.BulkWalk(baseOid, walkFn)
	}
	if err != nil {
		return nil, &types.TimeoutError{Op: fmt.Sprintf("snmp walk %s", baseOid), Timeout: eff.Timeout, Err: err}
	}

	return collect(pdus), nil
}

// collect decodes a PDU list, dropping error varbinds and preserving order.
func collect(pdus []gosnmp.SnmpPDU) []Varbind {
	out := make([]Varbind, 0, len(pdus))
	for _, pdu := range pdus {
		if _, bad := errorVarbind(pdu); bad {
			continue
		}
		out = append(out, decode(pdu))
	}
	return out
}

// errorVarbind reports whether a PDU carries an agent-side error marker.
func errorVarbind(pdu gosnmp.SnmpPDU) (string, bool) {
	switch pdu.Type {
	case gosnmp.NoSuchObject:
		return "noSuchObject", true
	case gosnmp.NoSuchInstance:
		return "noSuchInstance", true
	case gosnmp.EndOfMibView:
		return "endOfMibView", true
	case gosnmp.Null:
		return "null", true
	}
	return "", false
}

// decode converts a PDU into a typed Varbind:
// OctetString to text, TimeTicks to whole seconds, IpAddress to a dotted
// string; everything else passes through as gosnmp returned it.
func decode(pdu gosnmp.SnmpPDU) Varbind {
	vb := Varbind{OID: pdu.Name, Type: pdu.Type, Value: pdu.Value}

	switch pdu.Type {
	case gosnmp.OctetString:
		if b, ok := pdu.Value.([]byte); ok {
			vb.Value = string(b)
		}
	case gosnmp.TimeTicks:
		vb.Value = ticksToSeconds(pdu.Value)
	case gosnmp.IPAddress:
		switch v := pdu.Value.(type) {
		case string:
			vb.Value = v
		case []byte:
			vb.Value = net.IP(v).String()
		}
	}

	return vb
}

// ticksToSeconds converts hundredths-of-seconds TimeTicks to whole seconds,
// floored.
func ticksToSeconds(v interface{}) int64 {
	switch t := v.(type) {
	case uint32:
		return int64(t) / 100
	case uint64:
		return int64(t) / 100 //nolint:gosec // sysUpTime fits well inside int64
	case uint:
		return int64(t) / 100
	case int:
		return int64(t) / 100
	case int64:
		return t / 100
	default:
		return 0
	}
}
