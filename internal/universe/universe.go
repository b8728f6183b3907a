package universe

import (
	"fmt"
	"math"
	"sort"
)

// Entity is one instrument of the ranked snapshot.
type Entity struct {
	Ticker       string
	Name         string
	Rank         int     // 1 = largest
	MarketCap    float64 // billions
	BookToMarket float64 // NaN when not reported
}

// HasValueMetric reports whether the entity carries a book-to-market ratio.
func (e Entity) HasValueMetric() bool {
	return !math.IsNaN(e.BookToMarket) && !math.IsInf(e.BookToMarket, 0)
}

// Universe is an immutable list of entities ordered by rank.
type Universe struct {
	entities []Entity
	byTicker map[string]int
}

// New validates and orders the entities by rank. Duplicate tickers or ranks
// and non-positive ranks are rejected.
func New(entities []Entity) (*Universe, error) {
	sorted := append([]Entity(nil), entities...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	u := &Universe{
		entities: sorted,
		byTicker: make(map[string]int, len(sorted)),
	}
	for i, e := range sorted {
		if e.Ticker == "" {
			return nil, fmt.Errorf("entity at rank %d has no ticker", e.Rank)
		}
		if e.Rank < 1 {
			return nil, fmt.Errorf("entity %s has invalid rank %d", e.Ticker, e.Rank)
		}
		if i > 0 && sorted[i-1].Rank == e.Rank {
			return nil, fmt.Errorf("rank %d assigned to both %s and %s", e.Rank, sorted[i-1].Ticker, e.Ticker)
		}
		if _, dup := u.byTicker[e.Ticker]; dup {
			return nil, fmt.Errorf("duplicate ticker %s", e.Ticker)
		}
		u.byTicker[e.Ticker] = i
	}
	return u, nil
}

// Len returns the number of entities.
func (u *Universe) Len() int { return len(u.entities) }

// Entities returns a copy of the entities in rank order.
func (u *Universe) Entities() []Entity { return append([]Entity(nil), u.entities...) }

// Tickers returns the identifiers in rank order.
func (u *Universe) Tickers() []string { return tickers(u.entities) }

// Lookup finds an entity by ticker.
func (u *Universe) Lookup(ticker string) (Entity, bool) {
	i, ok := u.byTicker[ticker]
	if !ok {
		return Entity{}, false
	}
	return u.entities[i], true
}

// RankRange returns the entities with from <= rank <= to, in rank order.
func (u *Universe) RankRange(from, to int) []Entity {
	var out []Entity
	for _, e := range u.entities {
		if e.Rank >= from && e.Rank <= to {
			out = append(out, e)
		}
	}
	return out
}

// Quantile returns bucket i (1-based) of q equal-count buckets over the rank
// order. Bucket 1 holds the largest entities. With N entities, bucket i
// covers positions [(i-1)N/q, iN/q).
func (u *Universe) Quantile(i, q int) []Entity {
	if q < 1 || i < 1 || i > q {
		return nil
	}
	n := len(u.entities)
	lo := (i - 1) * n / q
	hi := i * n / q
	return append([]Entity(nil), u.entities[lo:hi]...)
}

// SortedByValue returns the entities that carry a value metric, ordered by
// book-to-market ascending. Ties keep rank order.
func (u *Universe) SortedByValue() []Entity {
	var out []Entity
	for _, e := range u.entities {
		if e.HasValueMetric() {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BookToMarket < out[j].BookToMarket })
	return out
}

// Tickers extracts identifiers from a slice of entities.
func Tickers(entities []Entity) []string { return tickers(entities) }

func tickers(entities []Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Ticker
	}
	return out
}
