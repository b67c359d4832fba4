package peers

import (
	"sort"

	"github.com/AbolfazlSheikhha/gossip-network/src/rng"
)

// Result reports what Upsert actually did, so callers can emit the right
// lifecycle event (peer_add, peer_update, peer_evict, peer_limit_reject).
type Result int

// Recognized Upsert outcomes.
const (
	ResultUpdated Result = iota
	ResultAdded
	ResultReplaced
	ResultRejected
)

// Table is the bounded addr -> Record map described by the peer table spec.
// It is not safe for concurrent use: it is owned exclusively by the node
// runtime's single cooperative goroutine (see the node package).
type Table struct {
	selfAddr      string
	limit         int
	peerTimeoutMs int64
	rng           *rng.Source

	byAddr map[string]*Record
}

// New returns an empty Table bounded at limit entries. peerTimeoutMs feeds
// the replacement policy's staleness check (see Upsert).
func New(selfAddr string, limit int, peerTimeoutMs int64, rngSrc *rng.Source) *Table {
	return &Table{
		selfAddr:      selfAddr,
		limit:         limit,
		peerTimeoutMs: peerTimeoutMs,
		rng:           rngSrc,
		byAddr:        make(map[string]*Record),
	}
}

// Len returns the current peer count.
func (t *Table) Len() int {
	return len(t.byAddr)
}

// Get returns a snapshot of the record at addr, if present.
func (t *Table) Get(addr string) (Record, bool) {
	r, ok := t.byAddr[addr]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// Mutate gives the caller a pointer to the live record at addr, if present,
// for in-place field updates (e.g. setting PendingPingID). It is the
// in-process analogue of upsert_existing's patch argument.
func (t *Table) Mutate(addr string, patch func(*Record)) bool {
	r, ok := t.byAddr[addr]
	if !ok {
		return false
	}
	patch(r)
	return true
}

// All returns a deterministically ordered snapshot of every peer record.
func (t *Table) All() []Record {
	out := make([]Record, 0, len(t.byAddr))
	for _, r := range t.byAddr {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Upsert inserts a new peer or updates an existing one. addr == selfAddr is
// always rejected (invariant I2). If addr is new and the table is at
// capacity, the replacement policy runs: it may evict an existing peer to
// make room, or reject the newcomer outright (peer_limit_reject).
//
// newRecord is only consulted when addr is not already present. The third
// return value is the evicted record when result is ResultReplaced, and nil
// otherwise — callers use it to log which peer a capacity replacement
// removed.
func (t *Table) Upsert(addr string, nowMs int64, newRecord func() Record) (Record, Result, *Record) {
	if addr == t.selfAddr {
		return Record{}, ResultRejected, nil
	}

	if existing, ok := t.byAddr[addr]; ok {
		return existing.Clone(), ResultUpdated, nil
	}

	if len(t.byAddr) < t.limit {
		r := newRecord()
		r.Addr = addr
		if r.LastSeenMs == 0 {
			// Grace: a newly inserted peer cannot be evicted on the tick
			// immediately following insertion.
			r.LastSeenMs = nowMs
		}
		rec := r
		t.byAddr[addr] = &rec
		return rec.Clone(), ResultAdded, nil
	}

	evicted, ok := t.replacementCandidate(nowMs)
	if !ok {
		return Record{}, ResultRejected, nil
	}

	evictedClone := evicted.Clone()
	delete(t.byAddr, evicted.Addr)

	r := newRecord()
	r.Addr = addr
	r.LastSeenMs = nowMs
	rec := r
	t.byAddr[addr] = &rec
	return rec.Clone(), ResultReplaced, &evictedClone
}

// replacementCandidate implements the replacement() scoring rule: the
// lexicographically maximum (consecutive_ping_failures, staleness, addr)
// tuple is the candidate; it is only actually evictable if it has
// accumulated 3+ failures or has gone stale beyond peer_timeout_s.
func (t *Table) replacementCandidate(nowMs int64) (Record, bool) {
	if len(t.byAddr) == 0 {
		return Record{}, false
	}

	var candidate *Record
	for _, r := range t.byAddr {
		if candidate == nil || scoreLess(candidate, r, nowMs) {
			candidate = r
		}
	}

	staleness := nowMs - candidate.LastSeenMs
	if candidate.ConsecutivePingFailures >= 3 || staleness > t.peerTimeoutMs {
		return candidate.Clone(), true
	}
	return Record{}, false
}

// scoreLess reports whether a's score tuple is lexicographically less than
// b's, i.e. b is the "bigger" (more evictable) candidate.
func scoreLess(a, b *Record, nowMs int64) bool {
	aFail, bFail := a.ConsecutivePingFailures, b.ConsecutivePingFailures
	if aFail != bFail {
		return aFail < bFail
	}
	aStale, bStale := nowMs-a.LastSeenMs, nowMs-b.LastSeenMs
	if aStale != bStale {
		return aStale < bStale
	}
	return a.Addr < b.Addr
}

// EvictReason names why Evict removed a peer, for lifecycle logging.
type EvictReason string

// Recognized eviction reasons.
const (
	EvictReasonManual      EvictReason = "manual"
	EvictReasonCapacity    EvictReason = "capacity_replaced"
	EvictReasonPeerTimeout EvictReason = "peer_timeout"
	EvictReasonPingFailure EvictReason = "ping_failures"
)

// Evict removes addr from the table, if present, clearing any pending ping
// correlation state first. It returns the removed record for logging.
func (t *Table) Evict(addr string) (Record, bool) {
	r, ok := t.byAddr[addr]
	if !ok {
		return Record{}, false
	}
	r.ClearPendingPing()
	delete(t.byAddr, addr)
	return r.Clone(), true
}

// Sample draws up to k distinct peer records, uniformly without replacement,
// excluding selfAddr (already guaranteed absent) and any addr in excluding.
func (t *Table) Sample(excluding map[string]bool, k int) []Record {
	eligible := make([]Record, 0, len(t.byAddr))
	for addr, r := range t.byAddr {
		if excluding != nil && excluding[addr] {
			continue
		}
		eligible = append(eligible, r.Clone())
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Addr < eligible[j].Addr })
	return rng.SampleWithoutReplacement(t.rng, eligible, k)
}
