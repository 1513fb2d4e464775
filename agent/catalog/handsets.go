package catalog

import (
	"sort"
	"strings"
)

// Handsets is the loaded corpus with lookups by model name.
type Handsets struct {
	docs    []HandsetDocument
	byModel map[string]int
	names   []string
}

func NewHandsets(docs []HandsetDocument) *Handsets {
	h := &Handsets{
		docs:    docs,
		byModel: make(map[string]int, len(docs)*2),
	}
	for i, d := range docs {
		for _, name := range []string{d.Model(), d.DisplayName()} {
			key := normalizeName(name)
			if key == "" {
				continue
			}
			if _, ok := h.byModel[key]; !ok {
				h.byModel[key] = i
				h.names = append(h.names, key)
			}
		}
	}
	// Longest names first so "iphone 16 pro max" wins over "iphone 16".
	sort.SliceStable(h.names, func(i, j int) bool { return len(h.names[i]) > len(h.names[j]) })
	return h
}

func (h *Handsets) Documents() []HandsetDocument {
	return append([]HandsetDocument(nil), h.docs...)
}

func (h *Handsets) Len() int {
	return len(h.docs)
}

func (h *Handsets) Find(model string) (HandsetDocument, bool) {
	i, ok := h.byModel[normalizeName(model)]
	if !ok {
		return HandsetDocument{}, false
	}
	return h.docs[i], true
}

// MatchIn returns the corpus model mentioned in free text, preferring the longest name.
func (h *Handsets) MatchIn(text string) (HandsetDocument, bool) {
	haystack := " " + normalizeName(text) + " "
	for _, name := range h.names {
		if strings.Contains(haystack, " "+name+" ") {
			return h.docs[h.byModel[name]], true
		}
	}
	return HandsetDocument{}, false
}

// Models lists every corpus model name in load order.
func (h *Handsets) Models() []string {
	if h == nil {
		return nil
	}
	out := make([]string, 0, len(h.docs))
	for _, d := range h.docs {
		out = append(out, d.Model())
	}
	return out
}

// Resolve picks the one model that partial wording points at, such as "the
// Flip6" or "the Reno". Only candidates are considered, or the whole corpus
// when candidates is empty. Ties and misses report false.
func (h *Handsets) Resolve(text string, candidates []string) (HandsetDocument, bool) {
	words := strings.Fields(normalizeName(text))
	if len(words) == 0 {
		return HandsetDocument{}, false
	}

	pool := make([]int, 0, len(h.docs))
	if len(candidates) == 0 {
		for i := range h.docs {
			pool = append(pool, i)
		}
	} else {
		seen := make(map[int]bool, len(candidates))
		for _, c := range candidates {
			if i, ok := h.byModel[normalizeName(c)]; ok && !seen[i] {
				seen[i] = true
				pool = append(pool, i)
			}
		}
	}

	best, bestScore, tied := -1, 0, false
	for _, i := range pool {
		score := tokenScore(words, nameTokens(h.docs[i]))
		switch {
		case score > bestScore:
			best, bestScore, tied = i, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if best < 0 || tied {
		return HandsetDocument{}, false
	}
	return h.docs[best], true
}

func nameTokens(d HandsetDocument) map[string]bool {
	tokens := make(map[string]bool)
	for _, name := range []string{d.Model(), d.DisplayName()} {
		for _, tok := range strings.Fields(normalizeName(name)) {
			tokens[tok] = true
		}
	}
	return tokens
}

// tokenScore counts the distinct words that name a token. Words of four or more
// characters also match as a prefix, so "flip" finds "flip6".
func tokenScore(words []string, tokens map[string]bool) int {
	score := 0
	counted := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) < 2 || counted[w] {
			continue
		}
		hit := tokens[w]
		if !hit && len(w) >= 4 {
			for tok := range tokens {
				if strings.HasPrefix(tok, w) {
					hit = true
					break
				}
			}
		}
		if hit {
			counted[w] = true
			score++
		}
	}
	return score
}

var brandPrefixes = map[string]string{
	"iphone": "Apple",
	"galaxy": "Samsung",
	"find":   "OPPO",
	"reno":   "OPPO",
}

// BrandOf guesses the brand of a free-form phone model name.
func BrandOf(model string) string {
	fields := strings.Fields(model)
	if len(fields) == 0 {
		return ""
	}
	first := strings.ToLower(fields[0])
	for prefix, brand := range brandPrefixes {
		if strings.HasPrefix(first, prefix) {
			return brand
		}
	}
	return fields[0]
}

func normalizeName(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			space = false
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// Slug renders a model name as a URL path segment.
func Slug(model string) string {
	return strings.ReplaceAll(normalizeName(model), " ", "-")
}
