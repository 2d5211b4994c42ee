// Package engine wires the NAT table, translator, and address codec
// together into the single per-packet entry point the I/O loop in
// cmd/nat64d calls, completing the orchestration glue spec.md's §4.5
// describes only in outline.
package engine

import (
	"fmt"
	"net"
	"time"

	"github.com/ruilisi/nat64d/internal/logging"
	"github.com/ruilisi/nat64d/internal/metrics"
	"github.com/ruilisi/nat64d/internal/nattable"
	"github.com/ruilisi/nat64d/internal/translate"
)

// StaticMapping is one pre-reserved v4<->v6 pair, already resolved from the
// config file's string form (spec.md §4.3).
type StaticMapping struct {
	V4 net.IP
	V6 net.IP
}

// Config builds one Engine instance. Two Engines (a NAT64 one and a CLAT
// one) can run side by side in one process, per spec.md §9's "global
// state" note — they never share a Table.
type Config struct {
	ID  string // engineid-derived label for log lines (SPEC_FULL.md §3)
	Log *logging.Logger

	Mode           translate.Mode
	NAT64Prefix    net.IP
	NAT64PrefixLen int
	Pool           []*net.IPNet
	StaticMappings []StaticMapping
	MaxIdle        time.Duration

	CustomerPrefix    net.IP
	CustomerPrefixLen int
}

// Engine holds one Translator and (for NAT64/6over4 modes) one Table, and
// exposes the single packet-handling entry point the read loop calls.
type Engine struct {
	cfg   Config
	table *nattable.Table
	tr    *translate.Translator
}

// New validates cfg, builds the table (if the mode needs one) and the
// translator, and returns a ready Engine.
func New(cfg Config) (*Engine, error) {
	var tbl *nattable.Table
	var err error

	if cfg.Mode != translate.ModeCLAT {
		tbl, err = nattable.New(cfg.Pool, cfg.MaxIdle)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		for _, sm := range cfg.StaticMappings {
			if err := tbl.InsertStatic(sm.V4, sm.V6); err != nil {
				return nil, fmt.Errorf("engine: static mapping %s<->%s: %w", sm.V4, sm.V6, err)
			}
		}
	}

	tr, err := translate.New(translate.Config{
		Mode:              cfg.Mode,
		NAT64Prefix:       cfg.NAT64Prefix,
		NAT64PrefixLen:    cfg.NAT64PrefixLen,
		CustomerPrefix:    cfg.CustomerPrefix,
		CustomerPrefixLen: cfg.CustomerPrefixLen,
		Table:             tbl,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &Engine{cfg: cfg, table: tbl, tr: tr}, nil
}

// Table exposes the underlying NAT table (nil in CLAT mode), for a status
// endpoint or admin command to enumerate current mappings.
func (e *Engine) Table() *nattable.Table { return e.table }

// HandlePacket translates one IP packet read from the TUN device, choosing
// direction by the packet's version nibble, and returns the translated
// packet ready to write back out. A non-nil error means the packet was
// dropped; the caller need not log it (HandlePacket already did, at debug
// level, and incremented internal/metrics).
func (e *Engine) HandlePacket(pkt []byte) ([]byte, error) {
	if len(pkt) < 1 {
		e.drop(translate.ErrTruncatedPacket, pkt)
		return nil, translate.ErrTruncatedPacket
	}

	version := pkt[0] >> 4
	var out []byte
	var err error

	switch version {
	case 6:
		out, err = e.tr.TranslateV6ToV4(pkt)
	case 4:
		out, err = e.tr.TranslateV4ToV6(pkt)
	default:
		err = fmt.Errorf("%w: unknown IP version %d", translate.ErrUnsupportedNextHeader, version)
	}
	if err != nil {
		e.drop(err, pkt)
		return nil, err
	}
	return out, nil
}

func (e *Engine) drop(err error, pkt []byte) {
	metrics.IncDrop(err.Error())
	if e.cfg.Log != nil {
		e.cfg.Log.Debugf("dropped packet (%v):\n%s", err, translate.DumpHex(pkt))
	}
}
