package usecase

import (
	"math"
	"sort"

	"github.com/pmezard/go-difflib/difflib"
)

const DefaultFuzzyThreshold = 85.0

// alignWindows caps how many matching-block alignments are scored per
// direction, largest blocks first.
const alignWindows = 16

// Ratio is the sequence-matcher similarity of a and b on a 0..100 scale:
// twice the matched runes over the total rune count.
func Ratio(a, b string) float64 {
	return round2(100 * newMatcher(runeTokens(a), runeTokens(b)).Ratio())
}

// PartialRatio scores how well the shorter string fits somewhere inside the
// longer one. Each large matching block proposes an alignment of the shorter
// string against the longer; alignments hanging over either end of the
// longer string are clipped, so text that is shifted between the two inputs
// is scored on its overlap. Inputs of equal length are tried both ways.
// Empty input scores 0.
func PartialRatio(a, b string) float64 {
	ta, tb := runeTokens(a), runeTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	best := partialRatio(ta, tb)
	if len(ta) == len(tb) && best < 100 {
		best = max(best, partialRatio(tb, ta))
	}
	return round2(100 * best)
}

func partialRatio(short, long []string) float64 {
	m, n := len(short), len(long)

	blocks := newMatcher(short, long).GetMatchingBlocks()
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Size > blocks[j].Size })

	scorer := newMatcher(nil, short)
	seen := make(map[[2]int]struct{})
	best := 0.0
	for i, blk := range blocks {
		if blk.Size == 0 || i >= alignWindows {
			break
		}
		start := blk.B - blk.A
		lo, hi := max(start, 0), min(start+m, n)
		if _, ok := seen[[2]int{lo, hi}]; ok {
			continue
		}
		seen[[2]int{lo, hi}] = struct{}{}

		scorer.SetSeq1(long[lo:hi])
		if r := scorer.Ratio(); r > best {
			best = r
			if best >= 1 {
				break
			}
		}
	}
	return best
}

// newMatcher disables the popularity heuristic: on single-rune tokens every
// common letter would count as junk.
func newMatcher(a, b []string) *difflib.SequenceMatcher {
	return difflib.NewMatcherWithJunk(a, b, false, nil)
}

func runeTokens(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
