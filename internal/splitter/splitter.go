// Package splitter divides a household balance between people under a
// chosen policy without ever losing or inventing a cent.
package splitter

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/Veraticus/the-budget-must-balance/internal/common"
	"github.com/Veraticus/the-budget-must-balance/internal/model"
	"github.com/shopspring/decimal"
)

// Policy selects how shares are weighted.
type Policy string

// Supported policies.
const (
	PolicyEqual       Policy = "equal"
	PolicyIncomeBased Policy = "income-based"
	PolicyCustom      Policy = "custom"
	PolicyNeedsBased  Policy = "needs-based"
)

var policyAliases = map[string]Policy{
	"equal":           PolicyEqual,
	"equal_split":     PolicyEqual,
	"income-based":    PolicyIncomeBased,
	"income_based":    PolicyIncomeBased,
	"income_weighted": PolicyIncomeBased,
	"custom":          PolicyCustom,
	"custom_ratio":    PolicyCustom,
	"needs-based":     PolicyNeedsBased,
	"needs_based":     PolicyNeedsBased,
}

// ParsePolicy accepts the canonical names and their snake_case spellings.
func ParsePolicy(s string) (Policy, error) {
	p, ok := policyAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", common.NewValidationError("policy", "unknown split policy %q", s)
	}
	return p, nil
}

// DefaultSharedCategories are the expense categories split between everyone.
var DefaultSharedCategories = []string{"Boende", "Mat", "Hem"}

// Input carries the per-person figures the policies weigh by.
type Input struct {
	Incomes     map[string]decimal.Decimal
	Weights     map[string]decimal.Decimal
	Obligations map[string]decimal.Decimal
	Persons     []string
}

var hundred = big.NewInt(100)

// Split rounds balance half-even to cents and divides it between in.Persons.
// The shares always sum to exactly the rounded value, so 100.005 splits as
// 100.00.
// Leftover cents go one at a time to the largest fractional remainders,
// ties broken by name.
func Split(balance decimal.Decimal, policy Policy, in Input) (map[string]decimal.Decimal, error) {
	persons, err := validatePersons(in.Persons)
	if err != nil {
		return nil, err
	}

	weights, err := policyWeights(policy, persons, in)
	if err != nil {
		return nil, err
	}

	rounded := balance.RoundBank(2)
	cents := rounded.Abs().Shift(2).BigInt()
	shares := allocate(cents, persons, weights)

	out := make(map[string]decimal.Decimal, len(persons))
	for i, p := range persons {
		share := decimal.NewFromBigInt(shares[i], -2)
		if rounded.IsNegative() {
			share = share.Neg()
		}
		out[p] = share
	}
	return out, nil
}

func validatePersons(persons []string) ([]string, error) {
	if len(persons) == 0 {
		return nil, common.NewValidationError("persons", "at least one person is required")
	}

	seen := make(map[string]struct{}, len(persons))
	sorted := make([]string, 0, len(persons))
	for _, p := range persons {
		if strings.TrimSpace(p) == "" {
			return nil, common.NewValidationError("persons", "names must not be blank")
		}
		if _, dup := seen[p]; dup {
			return nil, common.NewValidationError("persons", "duplicate person %q", p)
		}
		seen[p] = struct{}{}
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)
	return sorted, nil
}

// policyWeights returns one non-negative weight per person with a positive sum.
func policyWeights(policy Policy, persons []string, in Input) ([]*big.Rat, error) {
	switch policy {
	case PolicyEqual:
		return equalWeights(len(persons)), nil

	case PolicyIncomeBased:
		w := make([]*big.Rat, len(persons))
		total := new(big.Rat)
		for i, p := range persons {
			income := in.Incomes[p]
			if income.IsNegative() {
				income = decimal.Zero
			}
			w[i] = income.Rat()
			total.Add(total, w[i])
		}
		if total.Sign() <= 0 {
			return equalWeights(len(persons)), nil
		}
		return w, nil

	case PolicyCustom:
		if len(in.Weights) == 0 {
			return nil, common.NewValidationError("weights", "custom policy needs weights")
		}
		for name := range in.Weights {
			if !contains(persons, name) {
				return nil, common.NewValidationError("weights", "weight for unknown person %q", name)
			}
		}
		w := make([]*big.Rat, len(persons))
		total := new(big.Rat)
		for i, p := range persons {
			weight := in.Weights[p]
			if weight.IsNegative() {
				return nil, common.NewValidationError("weights", "weight for %q is negative", p)
			}
			w[i] = weight.Rat()
			total.Add(total, w[i])
		}
		if total.Sign() <= 0 {
			return nil, common.NewValidationError("weights", "weights must sum to more than zero")
		}
		return w, nil

	case PolicyNeedsBased:
		w := make([]*big.Rat, len(persons))
		total := new(big.Rat)
		for i, p := range persons {
			need := in.Obligations[p]
			if need.IsNegative() {
				return nil, common.NewValidationError("obligations", "obligation for %q is negative", p)
			}
			w[i] = need.Rat()
			total.Add(total, w[i])
		}
		if total.Sign() == 0 {
			return equalWeights(len(persons)), nil
		}
		return w, nil

	default:
		return nil, common.NewValidationError("policy", "unknown split policy %q", string(policy))
	}
}

func equalWeights(n int) []*big.Rat {
	w := make([]*big.Rat, n)
	for i := range w {
		w[i] = big.NewRat(1, 1)
	}
	return w
}

// allocate splits cents (>= 0) by weight with the largest remainder method.
// persons must be sorted; it breaks remainder ties.
func allocate(cents *big.Int, persons []string, weights []*big.Rat) []*big.Int {
	total := new(big.Rat)
	for _, w := range weights {
		total.Add(total, w)
	}

	type part struct {
		floor     *big.Int
		remainder *big.Rat
		index     int
	}

	parts := make([]part, len(persons))
	assigned := new(big.Int)
	for i, w := range weights {
		exact := new(big.Rat).SetInt(cents)
		exact.Mul(exact, w)
		exact.Quo(exact, total)

		floor := new(big.Int).Quo(exact.Num(), exact.Denom())
		rem := new(big.Rat).Sub(exact, new(big.Rat).SetInt(floor))

		parts[i] = part{index: i, floor: floor, remainder: rem}
		assigned.Add(assigned, floor)
	}

	order := make([]int, len(parts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := parts[order[a]].remainder, parts[order[b]].remainder
		if c := ra.Cmp(rb); c != 0 {
			return c > 0
		}
		return persons[order[a]] < persons[order[b]]
	})

	leftover := new(big.Int).Sub(cents, assigned).Int64()
	for k := int64(0); k < leftover; k++ {
		i := order[k%int64(len(order))]
		parts[i].floor.Add(parts[i].floor, big.NewInt(1))
	}

	out := make([]*big.Int, len(parts))
	for _, p := range parts {
		out[p.index] = p.floor
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Totals separates shared household spending from individual spending.
type Totals struct {
	Shared     decimal.Decimal
	Individual decimal.Decimal
}

// SharedVsIndividual sums expense magnitudes by whether their category is
// shared. Income rows are ignored. A nil sharedCategories uses
// DefaultSharedCategories.
func SharedVsIndividual(txns []model.Transaction, sharedCategories []string) Totals {
	if sharedCategories == nil {
		sharedCategories = DefaultSharedCategories
	}
	shared := make(map[string]struct{}, len(sharedCategories))
	for _, c := range sharedCategories {
		shared[c] = struct{}{}
	}

	totals := Totals{Shared: decimal.Zero, Individual: decimal.Zero}
	for _, txn := range txns {
		if !txn.IsExpense() {
			continue
		}
		amount := txn.Amount.Abs()
		if _, ok := shared[txn.Category]; ok {
			totals.Shared = totals.Shared.Add(amount)
		} else {
			totals.Individual = totals.Individual.Add(amount)
		}
	}
	return totals
}

// String renders a policy for flags and logs.
func (p Policy) String() string {
	return string(p)
}

// Format renders shares sorted by person, for CLI output.
func Format(shares map[string]decimal.Decimal) []string {
	names := make([]string, 0, len(shares))
	for n := range shares {
		names = append(names, n)
	}
	sort.Strings(names)

	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = fmt.Sprintf("%s: %s", n, shares[n].StringFixed(2))
	}
	return lines
}
