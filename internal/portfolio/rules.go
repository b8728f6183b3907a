package portfolio

import (
	"fmt"
	"math"

	"github.com/jihwanw/big-dragons-never-die/internal/universe"
)

// Kind selects how a rule forms its groups.
type Kind string

const (
	// KindRankRange forms a long and a short group from inclusive rank ranges.
	KindRankRange Kind = "rank_range"
	// KindQuantile splits the ranked universe into equal-count buckets.
	KindQuantile Kind = "quantile"
)

// IsValid reports whether the kind is known.
func (k Kind) IsValid() bool {
	return k == KindRankRange || k == KindQuantile
}

// Group is a named, inclusive rank range.
type Group struct {
	Name string
	From int
	To   int
}

// Rule defines one size factor: how entities are grouped and which two
// groups form the long-short spread. Membership is fixed for the whole
// sample.
type Rule struct {
	Name string // spread factor name, e.g. SMB_50
	Kind Kind

	// rank_range
	Long  Group
	Short Group

	// quantile; bucket 1 holds the largest entities
	Quantiles    int
	LongBucket   int
	ShortBucket  int
	BucketPrefix string
}

// Assignment is a named group and the tickers it was formed from.
type Assignment struct {
	Name    string
	Members []string
}

// Validate checks the rule for internal consistency.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule has no name")
	}
	switch r.Kind {
	case KindRankRange:
		for _, g := range []Group{r.Long, r.Short} {
			if g.Name == "" {
				return fmt.Errorf("rule %s: group has no name", r.Name)
			}
			if g.From < 1 || g.To < g.From {
				return fmt.Errorf("rule %s: group %s has invalid rank range %d-%d", r.Name, g.Name, g.From, g.To)
			}
		}
		if r.Long.Name == r.Short.Name {
			return fmt.Errorf("rule %s: long and short groups share the name %s", r.Name, r.Long.Name)
		}
		if r.Long.From <= r.Short.To && r.Short.From <= r.Long.To {
			return fmt.Errorf("rule %s: groups %s and %s overlap", r.Name, r.Long.Name, r.Short.Name)
		}
	case KindQuantile:
		if r.Quantiles < 2 {
			return fmt.Errorf("rule %s: need at least 2 quantiles, got %d", r.Name, r.Quantiles)
		}
		for _, b := range []int{r.LongBucket, r.ShortBucket} {
			if b < 1 || b > r.Quantiles {
				return fmt.Errorf("rule %s: bucket %d outside 1..%d", r.Name, b, r.Quantiles)
			}
		}
		if r.LongBucket == r.ShortBucket {
			return fmt.Errorf("rule %s: long and short bucket are both %d", r.Name, r.LongBucket)
		}
	default:
		return fmt.Errorf("rule %s: unknown kind %q", r.Name, r.Kind)
	}
	return nil
}

// BucketName returns the group name of quantile bucket i.
func (r Rule) BucketName(i int) string {
	prefix := r.BucketPrefix
	if prefix == "" {
		prefix = "Q"
	}
	return fmt.Sprintf("%s%d", prefix, i)
}

// LongName returns the name of the long group.
func (r Rule) LongName() string {
	if r.Kind == KindQuantile {
		return r.BucketName(r.LongBucket)
	}
	return r.Long.Name
}

// ShortName returns the name of the short group.
func (r Rule) ShortName() string {
	if r.Kind == KindQuantile {
		return r.BucketName(r.ShortBucket)
	}
	return r.Short.Name
}

// Assign forms the rule's groups from the ranked universe.
func (r Rule) Assign(u *universe.Universe) []Assignment {
	if r.Kind == KindQuantile {
		out := make([]Assignment, r.Quantiles)
		for i := 1; i <= r.Quantiles; i++ {
			out[i-1] = Assignment{Name: r.BucketName(i), Members: universe.Tickers(u.Quantile(i, r.Quantiles))}
		}
		return out
	}
	return []Assignment{
		{Name: r.Long.Name, Members: universe.Tickers(u.RankRange(r.Long.From, r.Long.To))},
		{Name: r.Short.Name, Members: universe.Tickers(u.RankRange(r.Short.From, r.Short.To))},
	}
}

// DefaultRules returns the three size factors of the mega-cap study:
// a 100/100 split, bottom 30 versus top 30 of the largest 100, and the
// smallest quintile versus the largest.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  "SMB_50",
			Kind:  KindRankRange,
			Long:  Group{Name: "Small_50", From: 101, To: 200},
			Short: Group{Name: "Big_50", From: 1, To: 100},
		},
		{
			Name:  "SMB_30",
			Kind:  KindRankRange,
			Long:  Group{Name: "Bottom_30", From: 71, To: 100},
			Short: Group{Name: "Top_30", From: 1, To: 30},
		},
		{
			Name:        "SMB_Q5Q1",
			Kind:        KindQuantile,
			Quantiles:   5,
			LongBucket:  5,
			ShortBucket: 1,
		},
	}
}

// ValueRule defines a high-minus-low book-to-market spread inside the universe.
type ValueRule struct {
	Name     string
	High     string
	Low      string
	Fraction float64 // share of entities in each leg, rounded to a count
}

// DefaultValueRule returns the mega-cap HML with tercile legs.
func DefaultValueRule() ValueRule {
	return ValueRule{Name: "HML_mega", High: "High_BM", Low: "Low_BM", Fraction: 1.0 / 3.0}
}

// Validate checks the value rule.
func (v ValueRule) Validate() error {
	if v.Name == "" || v.High == "" || v.Low == "" {
		return fmt.Errorf("value rule needs a name and two group names")
	}
	if v.Fraction <= 0 || v.Fraction > 0.5 {
		return fmt.Errorf("value rule %s: fraction %.3f outside (0, 0.5]", v.Name, v.Fraction)
	}
	return nil
}

// Assign returns the high and low book-to-market groups among the given
// entities, which must already carry a value metric.
func (v ValueRule) Assign(byValue []universe.Entity) (high, low Assignment) {
	n := len(byValue)
	count := int(math.Round(float64(n) * v.Fraction))
	if count > n/2 {
		count = n / 2
	}
	return Assignment{Name: v.High, Members: universe.Tickers(byValue[n-count:])},
		Assignment{Name: v.Low, Members: universe.Tickers(byValue[:count])}
}
