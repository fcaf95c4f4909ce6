// Package budget keeps named percentage allocations that always sum to 100.
package budget

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/galaxycore/galaxyview/pkg/core"
)

// Total is the fixed sum every allocation set must reach.
const Total = 100

// CurveK shapes the effectiveness curve. Larger values bend it harder.
const CurveK = 11.0

var (
	ErrSumNot100  = errors.New("allocations must sum to 100")
	ErrUnknownKey = errors.New("unknown allocation key")
	ErrNoKeys     = errors.New("allocation set is empty")
	ErrOutOfRange = core.ErrOutOfRange
)

// Allocation keys used by the economy panel of a colonized body.
var EconomyKeys = []string{"terraforming", "mining", "shipbuilding"}

// Allocation keys used by the research panel.
var TechKeys = []string{"propulsion", "weapons", "shields", "sensors", "industry", "biology"}

// Allocation is an ordered set of integer percentages. Values are immutable;
// Set returns a new Allocation.
type Allocation struct {
	keys   []string
	values map[string]int
}

// New builds an allocation over keys in declared order. Missing keys count as 0.
// The values must sum to exactly 100.
func New(keys []string, values map[string]int) (Allocation, error) {
	a, err := Raw(keys, values)
	if err != nil {
		return Allocation{}, err
	}
	if err := a.Validate(); err != nil {
		return Allocation{}, err
	}
	return a, nil
}

// Raw builds an allocation without the sum and range checks, as from free-form
// numeric entry. Commit still refuses it until every value is within [0, 100]
// and they sum to 100.
func Raw(keys []string, values map[string]int) (Allocation, error) {
	if len(keys) == 0 {
		return Allocation{}, ErrNoKeys
	}
	a := Allocation{
		keys:   append([]string(nil), keys...),
		values: make(map[string]int, len(keys)),
	}
	for _, k := range keys {
		a.values[k] = values[k]
	}
	for k := range values {
		if _, ok := a.values[k]; !ok {
			return Allocation{}, fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
	}
	return a, nil
}

// Keys returns the keys in declared order.
func (a Allocation) Keys() []string {
	return append([]string(nil), a.keys...)
}

// Get returns the value of key, or 0 when unknown.
func (a Allocation) Get(key string) int {
	return a.values[key]
}

// Values returns a copy of the allocation map.
func (a Allocation) Values() map[string]int {
	out := make(map[string]int, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Sum returns the total of all values.
func (a Allocation) Sum() int {
	s := 0
	for _, v := range a.values {
		s += v
	}
	return s
}

// Validate reports ErrOutOfRange for a value outside [0, 100] and
// ErrSumNot100 when the values do not sum to 100.
func (a Allocation) Validate() error {
	if len(a.keys) == 0 {
		return ErrNoKeys
	}
	for _, k := range a.keys {
		if v := a.values[k]; v < 0 || v > Total {
			return fmt.Errorf("%w: %s = %d", ErrOutOfRange, k, v)
		}
	}
	if s := a.Sum(); s != Total {
		return fmt.Errorf("%w: got %d", ErrSumNot100, s)
	}
	return nil
}

// Set changes key to value (clamped to [0, 100]) and redistributes the
// difference over the other keys in proportion to their current values, or
// evenly when they are all zero. Results are rounded by largest remainder;
// equal remainders go to the earlier key in declared order, and anything left
// over goes to the first key with headroom. The sum stays exactly 100.
func (a Allocation) Set(key string, value int) (Allocation, error) {
	old, ok := a.values[key]
	if !ok {
		return a, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	value = clamp(value)

	next := Allocation{keys: a.keys, values: a.Values()}
	if len(a.keys) == 1 {
		next.values[key] = Total
		return next, nil
	}
	if value == old && a.Sum() == Total {
		return next, nil
	}
	next.values[key] = value

	others := make([]string, 0, len(a.keys)-1)
	peerSum := 0
	for _, k := range a.keys {
		if k == key {
			continue
		}
		others = append(others, k)
		peerSum += max(0, a.values[k])
	}

	remaining := Total - value
	shares := make([]float64, len(others))
	for i, k := range others {
		if peerSum > 0 {
			shares[i] = float64(max(0, a.values[k])) * float64(remaining) / float64(peerSum)
		} else {
			shares[i] = float64(remaining) / float64(len(others))
		}
	}

	for k, v := range apportion(others, shares, remaining) {
		next.values[k] = v
	}
	return next, nil
}

// apportion rounds shares to integers summing to total.
func apportion(keys []string, shares []float64, total int) map[string]int {
	out := make(map[string]int, len(keys))
	type frac struct {
		idx int
		rem float64
	}
	fracs := make([]frac, len(keys))
	assigned := 0
	for i, k := range keys {
		f := math.Floor(shares[i])
		out[k] = clamp(int(f))
		assigned += out[k]
		fracs[i] = frac{idx: i, rem: shares[i] - f}
	}

	sort.SliceStable(fracs, func(i, j int) bool { return fracs[i].rem > fracs[j].rem })
	residual := total - assigned
	for _, f := range fracs {
		if residual <= 0 {
			break
		}
		k := keys[f.idx]
		if f.rem > 0 && out[k] < Total {
			out[k]++
			residual--
		}
	}

	for _, k := range keys {
		if residual == 0 {
			break
		}
		if residual > 0 {
			add := min(residual, Total-out[k])
			out[k] += add
			residual -= add
		} else {
			sub := min(-residual, out[k])
			out[k] -= sub
			residual += sub
		}
	}
	return out
}

// Even splits Total across keys as evenly as integers allow, earlier keys
// taking the remainder.
func Even(keys []string) (Allocation, error) {
	if len(keys) == 0 {
		return Allocation{}, ErrNoKeys
	}
	shares := make([]float64, len(keys))
	for i := range shares {
		shares[i] = float64(Total) / float64(len(keys))
	}
	return New(keys, apportion(keys, shares, Total))
}

// Commit returns the update command for targetID, or a validation error when
// the allocation does not sum to 100.
func (a Allocation) Commit(targetID string) (core.UpdateBudget, error) {
	if err := a.Validate(); err != nil {
		return core.UpdateBudget{}, err
	}
	cmd := core.UpdateBudget{TargetID: targetID, Allocations: a.Values()}
	if err := cmd.Validate(); err != nil {
		return core.UpdateBudget{}, err
	}
	return cmd, nil
}

// Effective maps a nominal percentage to its displayed effective percentage:
// 100·ln(1 + k·n/100) / ln(1 + k). Concave and strictly increasing, with
// Effective(0) == 0 and Effective(100) == 100. Input is clamped to [0, 100].
func Effective(nominal float64) float64 {
	switch {
	case math.IsNaN(nominal) || nominal <= 0:
		return 0
	case nominal >= Total:
		return Total
	}
	return Total * math.Log1p(CurveK*nominal/Total) / math.Log1p(CurveK)
}

func clamp(v int) int {
	return max(0, min(Total, v))
}
