// Package layout holds the page arithmetic behind interleaving and 2-up
// sheets. Page numbers are 1-based and refer to a combined document in
// which the main document's n pages come first and the insert document's
// pages follow at n+1..n+m.
package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Pairing selects which insert page sits next to each main page on a sheet.
type Pairing string

const (
	// PairTemplate repeats the insert document's first page on every sheet.
	PairTemplate Pairing = "template"
	// PairPairwise pairs main page i with insert page i.
	PairPairwise Pairing = "pairwise"
)

// Order selects the sheet order of a 2-up output.
type Order string

const (
	Forward Order = "forward"
	Reverse Order = "reverse"
)

// ErrCountMismatch is returned by Pairs when pairwise pairing is asked for
// documents of different length.
var ErrCountMismatch = errors.New("page counts differ")

func ParsePairing(s string) (Pairing, error) {
	switch p := Pairing(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PairTemplate, nil
	case PairTemplate, PairPairwise:
		return p, nil
	default:
		return "", fmt.Errorf("unknown pairing %q (want template or pairwise)", s)
	}
}

func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return Forward, nil
	case Forward, Reverse:
		return o, nil
	default:
		return "", fmt.Errorf("unknown order %q (want forward or reverse)", s)
	}
}

// Interleave returns main pages 1..n each followed by the template page.
func Interleave(n, template int) []int {
	if n <= 0 {
		return nil
	}
	seq := make([]int, 0, 2*n)
	for i := 1; i <= n; i++ {
		seq = append(seq, i, template)
	}
	return seq
}

// Pair is one sheet's worth of pages.
type Pair struct {
	Left  int
	Right int
}

// Pairs builds the sheet list for a main document of n pages and an insert
// document of m pages.
func Pairs(n, m int, p Pairing, o Order) ([]Pair, error) {
	if n <= 0 || m <= 0 {
		return nil, fmt.Errorf("pairs need pages on both sides (main=%d, insert=%d)", n, m)
	}
	if p == PairPairwise && n != m {
		return nil, fmt.Errorf("%w: main=%d insert=%d", ErrCountMismatch, n, m)
	}

	pairs := make([]Pair, n)
	for i := 1; i <= n; i++ {
		right := n + 1
		if p == PairPairwise {
			right = n + i
		}
		pairs[i-1] = Pair{Left: i, Right: right}
	}
	if o == Reverse {
		for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
			pairs[i], pairs[j] = pairs[j], pairs[i]
		}
	}
	return pairs, nil
}

// Flatten lays pairs out left-then-right, the order an n-up pass consumes.
func Flatten(pairs []Pair) []int {
	seq := make([]int, 0, 2*len(pairs))
	for _, p := range pairs {
		seq = append(seq, p.Left, p.Right)
	}
	return seq
}

// Selection renders a page sequence in the page-selection syntax pdfcpu
// accepts, one entry per page so duplicates survive.
func Selection(seq []int) []string {
	out := make([]string, len(seq))
	for i, pg := range seq {
		out[i] = strconv.Itoa(pg)
	}
	return out
}
