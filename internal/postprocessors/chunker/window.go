package chunker

// span is a half-open rune range.
type span struct {
	start, end int
}

// window slides a size-wide window over n runes with the given overlap.
//
// Without boundaries chunk i is [i*(size-overlap), min(i*(size-overlap)+size, n))
// and the sequence stops after the first chunk that reaches n.
//
// With boundaries each end that falls short of n is pulled back to the
// strongest boundary in (start+max(overlap+1, size/2), start+size], latest
// position first among equals. The next chunk starts at end-overlap, so
// consecutive chunks always share exactly overlap runes.
func window(n, size, overlap int, tiers []uint8) []span {
	if n == 0 {
		return nil
	}

	spans := make([]span, 0, n/(size-overlap)+1)
	start := 0
	for {
		end := start + size
		if end >= n {
			spans = append(spans, span{start: start, end: n})
			return spans
		}
		if tiers != nil {
			end = snap(tiers, start, end, overlap, size)
		}
		spans = append(spans, span{start: start, end: end})
		start = end - overlap
	}
}

// snap returns the best cut in (start+minLen, end], or end when there is none.
func snap(tiers []uint8, start, end, overlap, size int) int {
	minLen := size / 2
	if overlap+1 > minLen {
		minLen = overlap + 1
	}
	best, bestTier := end, tierNone
	for pos := end; pos > start+minLen; pos-- {
		if t := tiers[pos]; t > bestTier {
			best, bestTier = pos, t
			if t == tierSection {
				break
			}
		}
	}
	return best
}
