// Package totals folds per-activity emissions into grand, channel, market and
// scope totals.
//
// Sums are exact decimals built from unrounded inputs. Rounding happens once,
// when a Snapshot is produced.
package totals

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rshade/adcarbon/internal/activity"
)

// Precision defaults.
const (
	BreakdownPrecision    = 2
	DefaultTotalPrecision = 2
	maxTotalPrecision     = 6
)

// Row is one activity's contribution.
type Row struct {
	ActivityID  string
	Channel     string
	Market      string
	Scope       activity.Scope
	KgCO2e      float64
	Provisional bool
}

// Snapshot is a rounded view of the totals.
type Snapshot struct {
	Total       float64                    `json:"total"`
	ByChannel   map[string]float64         `json:"by_channel"`
	ByMarket    map[string]float64         `json:"by_market"`
	ByScope     map[activity.Scope]float64 `json:"by_scope"`
	Activities  int                        `json:"activities"`
	Provisional bool                       `json:"provisional"`
}

// Channels returns the channel keys sorted.
func (s Snapshot) Channels() []string { return sortedKeys(s.ByChannel) }

// Markets returns the market keys sorted.
func (s Snapshot) Markets() []string { return sortedKeys(s.ByMarket) }

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Aggregate folds rows with the default total precision.
func Aggregate(rows []Row) Snapshot {
	return AggregateWithPrecision(rows, DefaultTotalPrecision)
}

// AggregateWithPrecision folds rows, rounding breakdowns to two decimals and
// the grand total to totalPrecision decimals. Channel and market keys are
// matched exactly. Every scope appears in ByScope. Rows with a non-finite or
// negative value contribute zero.
func AggregateWithPrecision(rows []Row, totalPrecision int) Snapshot {
	totalPrecision = min(max(totalPrecision, 0), maxTotalPrecision)

	total := decimal.Zero
	byChannel := map[string]decimal.Decimal{}
	byMarket := map[string]decimal.Decimal{}
	byScope := map[activity.Scope]decimal.Decimal{}
	for _, s := range activity.Scopes() {
		byScope[s] = decimal.Zero
	}

	snap := Snapshot{Activities: len(rows)}
	for _, r := range rows {
		if r.Provisional {
			snap.Provisional = true
		}
		v := toDecimal(r.KgCO2e)
		total = total.Add(v)
		byChannel[r.Channel] = byChannel[r.Channel].Add(v)
		byMarket[r.Market] = byMarket[r.Market].Add(v)
		byScope[r.Scope] = byScope[r.Scope].Add(v)
	}

	snap.Total = total.Round(int32(totalPrecision)).InexactFloat64()
	snap.ByChannel = roundAll(byChannel)
	snap.ByMarket = roundAll(byMarket)
	snap.ByScope = make(map[activity.Scope]float64, len(byScope))
	for s, v := range byScope {
		snap.ByScope[s] = v.Round(BreakdownPrecision).InexactFloat64()
	}
	return snap
}

func toDecimal(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func roundAll(m map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v.Round(BreakdownPrecision).InexactFloat64()
	}
	return out
}

// Aggregator memoizes the last snapshot by a fingerprint of its input rows.
// Safe for concurrent use.
type Aggregator struct {
	precision int

	mu    sync.Mutex
	key   [sha256.Size]byte
	snap  Snapshot
	valid bool
	folds int
}

// NewAggregator returns an Aggregator rounding the grand total to precision.
func NewAggregator(precision int) *Aggregator {
	return &Aggregator{precision: precision}
}

// Snapshot returns the totals for rows, refolding only when rows differ from
// the previous call.
func (a *Aggregator) Snapshot(rows []Row) Snapshot {
	key := fingerprint(rows)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.valid && a.key == key {
		return a.snap
	}
	a.snap = AggregateWithPrecision(rows, a.precision)
	a.key = key
	a.valid = true
	a.folds++
	return a.snap
}

// Folds returns how many times the aggregator recomputed.
func (a *Aggregator) Folds() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.folds
}

func fingerprint(rows []Row) [sha256.Size]byte {
	h := sha256.New()
	var buf [8]byte
	writeString := func(s string) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}
	for _, r := range rows {
		writeString(r.ActivityID)
		writeString(r.Channel)
		writeString(r.Market)
		binary.BigEndian.PutUint64(buf[:], uint64(r.Scope))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(r.KgCO2e))
		h.Write(buf[:])
		if r.Provisional {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}
