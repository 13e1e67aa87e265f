package adjustment

import (
	"sort"
	"strconv"

	"github.com/xenking/commerce-pricing/internal/domain/money"
)

// Transformer normalizes adjustment lists for presentation:
// Process = Round(Sort(Combine)).
type Transformer struct {
	registry Registry
}

// NewTransformer builds a Transformer using reg for sort weights.
func NewTransformer(reg Registry) *Transformer {
	return &Transformer{registry: reg}
}

// Process combines, sorts and rounds adjs with half-up rounding.
func (t *Transformer) Process(adjs []Adjustment) []Adjustment {
	return t.ProcessWithMode(adjs, money.HalfUp)
}

// ProcessWithMode is Process with an explicit rounding mode.
func (t *Transformer) ProcessWithMode(adjs []Adjustment, mode money.RoundingMode) []Adjustment {
	return t.Round(t.Sort(t.Combine(adjs)), mode)
}

// Combine merges adjustments that share a source: repeated type+sourceID
// pairs collapse into the first occurrence with their amounts summed. An
// adjustment without a source id keys on its own list position, so it always
// stays standalone and keeps its insertion order. Combining an already
// combined list is a no-op.
func (t *Transformer) Combine(adjs []Adjustment) []Adjustment {
	out := make([]Adjustment, 0, len(adjs))
	index := make(map[string]int, len(adjs))

	for i, a := range adjs {
		key := strconv.Itoa(i)
		if a.SourceID() != "" {
			key = a.Type() + "_" + a.SourceID()
		}
		at, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, a)
			continue
		}
		out[at] = out[at].WithAmount(out[at].Amount().Add(a.Amount()))
	}
	return out
}

// Sort orders adjustments by their type weight, ascending. The sort is
// stable: equal weights keep their relative input order, which callers rely
// on for reproducible presentation.
func (t *Transformer) Sort(adjs []Adjustment) []Adjustment {
	out := make([]Adjustment, len(adjs))
	copy(out, adjs)
	sort.SliceStable(out, func(i, j int) bool {
		return t.weight(out[i].Type()) < t.weight(out[j].Type())
	})
	return out
}

// Round rounds each adjustment amount to currency precision with the given
// mode. It does not re-merge or re-sum.
func (t *Transformer) Round(adjs []Adjustment, mode money.RoundingMode) []Adjustment {
	out := make([]Adjustment, len(adjs))
	for i, a := range adjs {
		out[i] = a.WithAmount(a.Amount().Round(mode))
	}
	return out
}

func (t *Transformer) weight(typeID string) int {
	typ, ok := t.registry.Get(typeID)
	if !ok {
		// Types are validated at construction; unknown here only means a
		// registry swap, order such entries last.
		return int(^uint(0) >> 1)
	}
	return typ.Weight
}
