package regex_analyzer

import (
	"regexp/syntax"
)

// IsReDoSVulnerable reports whether pattern contains a sub-pattern
// structurally vulnerable to catastrophic backtracking on a backtracking
// engine: an unbounded quantifier whose body can itself repeat without
// bound, or a quantified alternation whose branches can match the same
// text. A pattern that does not parse is treated as not vulnerable; the
// analyzer classifies strings that merely look like regexes.
//
// Go's own regexp engine is immune to catastrophic backtracking; the
// analyzer exists to flag patterns that will be handed to backtracking
// engines (PCRE, Python re, Java util.regex) by the code under scan.
func IsReDoSVulnerable(pattern string) bool {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return false
	}
	return hasVulnerableSubpattern(re.Simplify(), false)
}

// hasVulnerableSubpattern walks the parsed tree. quantified is true when
// an enclosing unbounded quantifier has been seen: any unbounded repeat
// or ambiguous alternation nested under one completes a vulnerability.
func hasVulnerableSubpattern(re *syntax.Regexp, quantified bool) bool {
	switch re.Op {
	case syntax.OpStar, syntax.OpPlus:
		if quantified {
			return true
		}
		return hasVulnerableSubpattern(re.Sub[0], true)
	case syntax.OpRepeat:
		unbounded := re.Max < 0 || re.Max >= 10
		if unbounded && quantified {
			return true
		}
		return hasVulnerableSubpattern(re.Sub[0], quantified || unbounded)
	case syntax.OpQuest:
		return hasVulnerableSubpattern(re.Sub[0], quantified)
	case syntax.OpCapture:
		return hasVulnerableSubpattern(re.Sub[0], quantified)
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if hasVulnerableSubpattern(sub, quantified) {
				return true
			}
		}
		return false
	case syntax.OpAlternate:
		if quantified && ambiguousAlternation(re) {
			return true
		}
		for _, sub := range re.Sub {
			if hasVulnerableSubpattern(sub, quantified) {
				return true
			}
		}
		return false
	}
	return false
}

// ambiguousAlternation reports whether two branches of an alternation can
// start with the same character, which makes a quantified alternation
// ambiguous: the backtracker must try both splits at every position.
// First-character overlap is an approximation of branch ambiguity, cheap
// and reliable on the patterns this analyzer is pointed at.
func ambiguousAlternation(re *syntax.Regexp) bool {
	firsts := make([]map[rune]bool, 0, len(re.Sub))
	for _, sub := range re.Sub {
		set, known := firstRunes(sub)
		if !known {
			// A branch with an unknown first set (e.g. any-char) is
			// assumed to overlap everything.
			return true
		}
		firsts = append(firsts, set)
	}
	for i := 0; i < len(firsts); i++ {
		for j := i + 1; j < len(firsts); j++ {
			for r := range firsts[i] {
				if firsts[j][r] {
					return true
				}
			}
		}
	}
	return false
}

// firstRunes computes the set of runes a sub-pattern can start with.
// known is false when the set cannot be bounded (dot, large classes).
func firstRunes(re *syntax.Regexp) (set map[rune]bool, known bool) {
	switch re.Op {
	case syntax.OpLiteral:
		if len(re.Rune) == 0 {
			return map[rune]bool{}, true
		}
		return map[rune]bool{re.Rune[0]: true}, true
	case syntax.OpCharClass:
		set = make(map[rune]bool)
		for i := 0; i+1 < len(re.Rune); i += 2 {
			lo, hi := re.Rune[i], re.Rune[i+1]
			if hi-lo > 128 {
				return nil, false
			}
			for r := lo; r <= hi; r++ {
				set[r] = true
			}
		}
		return set, true
	case syntax.OpCapture, syntax.OpStar, syntax.OpPlus, syntax.OpQuest, syntax.OpRepeat:
		return firstRunes(re.Sub[0])
	case syntax.OpConcat:
		if len(re.Sub) == 0 {
			return map[rune]bool{}, true
		}
		return firstRunes(re.Sub[0])
	case syntax.OpAlternate:
		set = make(map[rune]bool)
		for _, sub := range re.Sub {
			s, ok := firstRunes(sub)
			if !ok {
				return nil, false
			}
			for r := range s {
				set[r] = true
			}
		}
		return set, true
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpBeginText:
		return map[rune]bool{}, true
	}
	return nil, false
}
