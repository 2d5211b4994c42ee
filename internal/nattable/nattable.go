// Package nattable implements the bidirectional NAT64 address table: a
// map of IPv6 host <-> IPv4 pool address, with static reservations and
// LRU-style idle eviction of dynamic entries, safe for concurrent lookup
// and allocation.
package nattable

import (
	"encoding/binary"
	"errors"
	"net"
	"sort"
	"sync"
	"time"
)

// ErrPoolExhausted is returned by GetOrAllocateV4For when no pool address
// is free and no eviction candidate exists.
var ErrPoolExhausted = errors.New("nattable: pool exhausted")

// ErrNotFound is returned by LookupV6For on a miss.
var ErrNotFound = errors.New("nattable: no mapping for address")

// ErrConflict is returned by InsertStatic when either side of the pair
// already maps to a different peer.
var ErrConflict = errors.New("nattable: static mapping conflicts with an existing entry")

// DefaultMaxIdle is the default idle timeout (spec.md §4.3: 7200 seconds).
const DefaultMaxIdle = 7200 * time.Second

// Kind distinguishes static (operator-configured, permanent) mappings from
// dynamic (first-come-first-served, evictable) ones.
type Kind int

const (
	Dynamic Kind = iota
	Static
)

// mapping is the single owned record both indices point at.
type mapping struct {
	v4       uint32 // host byte order
	v6       [16]byte
	kind     Kind
	lastUsed time.Time
}

// Table is the bidirectional NAT64 address table described in spec.md
// §4.3. The zero value is not usable; construct with New.
type Table struct {
	mu sync.RWMutex

	byV4 map[uint32]*mapping
	byV6 map[[16]byte]*mapping

	pool    []uint32 // ascending, deterministic enumeration of configured pool prefixes
	poolIdx map[uint32]int

	maxIdle time.Duration

	// now is overridable for tests that need to simulate idle-time passage
	// without sleeping (spec §8 invariant 5: "waiting > t seconds, logical
	// time").
	now func() time.Time
}

// New builds a Table whose pool is the ascending enumeration of the given
// IPv4 prefixes, per spec.md §3 ("excluding network and broadcast
// boundaries only if the prefix length <= 30"). maxIdle <= 0 selects
// DefaultMaxIdle.
func New(poolPrefixes []*net.IPNet, maxIdle time.Duration) (*Table, error) {
	if len(poolPrefixes) == 0 {
		return nil, errors.New("nattable: pool must not be empty")
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}

	pool, err := enumeratePool(poolPrefixes)
	if err != nil {
		return nil, err
	}

	poolIdx := make(map[uint32]int, len(pool))
	for i, a := range pool {
		poolIdx[a] = i
	}

	return &Table{
		byV4:    make(map[uint32]*mapping),
		byV6:    make(map[[16]byte]*mapping),
		pool:    pool,
		poolIdx: poolIdx,
		maxIdle: maxIdle,
		now:     time.Now,
	}, nil
}

// enumeratePool returns the ascending, deduplicated set of IPv4 addresses
// covered by prefixes, excluding network/broadcast addresses for prefixes
// of length <= 30 (spec.md §3).
func enumeratePool(prefixes []*net.IPNet) ([]uint32, error) {
	seen := make(map[uint32]bool)
	var out []uint32

	for _, p := range prefixes {
		ip4 := p.IP.To4()
		if ip4 == nil {
			return nil, errors.New("nattable: pool prefix is not IPv4")
		}
		ones, bits := p.Mask.Size()
		if bits != 32 {
			return nil, errors.New("nattable: pool prefix mask is not IPv4")
		}

		base := binary.BigEndian.Uint32(ip4)
		size := uint32(1) << uint(32-ones)
		network := base
		broadcast := base + size - 1

		for a := network; ; a++ {
			exclude := ones <= 30 && (a == network || a == broadcast)
			if !exclude && !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
			if a == broadcast {
				break
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// GetOrAllocateV4For returns the IPv4 address mapped to v6, allocating a
// new dynamic mapping on first sight. See spec.md §4.3.
func (t *Table) GetOrAllocateV4For(v6 net.IP) (net.IP, error) {
	key := v6Key(v6)

	t.mu.RLock()
	if m, ok := t.byV6[key]; ok {
		t.mu.RUnlock()
		t.mu.Lock()
		m.lastUsed = t.now()
		t.mu.Unlock()
		return v4FromUint32(m.v4), nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check under the write lock: another goroutine may have allocated
	// for this v6 while we were waiting.
	if m, ok := t.byV6[key]; ok {
		m.lastUsed = t.now()
		return v4FromUint32(m.v4), nil
	}

	addr, evicted, err := t.reserveAddressLocked()
	if err != nil {
		return nil, err
	}
	if evicted != nil {
		delete(t.byV4, evicted.v4)
		delete(t.byV6, evicted.v6)
	}

	m := &mapping{v4: addr, v6: key, kind: Dynamic, lastUsed: t.now()}
	t.byV4[addr] = m
	t.byV6[key] = m
	return v4FromUint32(addr), nil
}

// reserveAddressLocked finds the lowest-numbered free pool address, or (if
// none is free) the least-recently-used expired dynamic entry to evict.
// Caller must hold t.mu for writing.
func (t *Table) reserveAddressLocked() (addr uint32, evicted *mapping, err error) {
	for _, a := range t.pool {
		if _, taken := t.byV4[a]; !taken {
			return a, nil, nil
		}
	}

	var lru *mapping
	for _, a := range t.pool {
		m := t.byV4[a]
		if m.kind != Dynamic {
			continue
		}
		if t.now().Sub(m.lastUsed) <= t.maxIdle {
			continue
		}
		if lru == nil || m.lastUsed.Before(lru.lastUsed) || (m.lastUsed.Equal(lru.lastUsed) && m.v4 < lru.v4) {
			lru = m
		}
	}
	if lru == nil {
		return 0, nil, ErrPoolExhausted
	}
	return lru.v4, lru, nil
}

// LookupV6For returns the IPv6 address mapped to v4, refreshing its
// last-used time on hit.
func (t *Table) LookupV6For(v4 net.IP) (net.IP, error) {
	key := v4Key(v4)

	t.mu.RLock()
	m, ok := t.byV4[key]
	t.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	t.mu.Lock()
	m.lastUsed = t.now()
	t.mu.Unlock()

	return v6FromKey(m.v6), nil
}

// InsertStatic installs a permanent mapping. It fails with ErrConflict if
// either address already maps to a different peer.
func (t *Table) InsertStatic(v4, v6 net.IP) error {
	v4k := v4Key(v4)
	v6k := v6Key(v6)

	t.mu.Lock()
	defer t.mu.Unlock()

	if m, ok := t.byV4[v4k]; ok && m.v6 != v6k {
		return ErrConflict
	}
	if m, ok := t.byV6[v6k]; ok && m.v4 != v4k {
		return ErrConflict
	}

	m := &mapping{v4: v4k, v6: v6k, kind: Static, lastUsed: t.now()}
	t.byV4[v4k] = m
	t.byV6[v6k] = m
	return nil
}

// Reset drops all dynamic mappings, leaving static ones untouched.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, m := range t.byV4 {
		if m.kind == Dynamic {
			delete(t.byV4, k)
			delete(t.byV6, m.v6)
		}
	}
}

func v4Key(ip net.IP) uint32 {
	return binary.BigEndian.Uint32(ip.To4())
}

func v4FromUint32(a uint32) net.IP {
	b := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(b, a)
	return b
}

func v6Key(ip net.IP) [16]byte {
	var k [16]byte
	copy(k[:], ip.To16())
	return k
}

func v6FromKey(k [16]byte) net.IP {
	b := make(net.IP, net.IPv6len)
	copy(b, k[:])
	return b
}
