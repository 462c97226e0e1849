package contraindicators

// Merge returns existing followed by each code of incoming that is not
// already present, in incoming's order. Every code appears exactly once,
// so Merge(Merge(s, i), i) == Merge(s, i).
func Merge(existing, incoming []string) []string {
	out := make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, code := range list {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	return out
}

// Dedup drops repeated codes, keeping first occurrences.
func Dedup(codes []string) []string {
	return Merge(nil, codes)
}

func single(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}
