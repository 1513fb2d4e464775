package tool

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

const (
	RecommendationLimit = 3

	SizeSmall = "small"
	SizeLarge = "large"

	smallScreenBelow = 6.2
	largeScreenFrom  = 6.5

	interestPrompt = "Let me know which of these models you'd like and I'll help you get it."
	noResultsText  = "I'm sorry, I don't know of any phones that fit that request right now."
)

var (
	showAllPattern = regexp.MustCompile(`(?i)\b(show|list|see|view|give)\b.*\ball\b|\ball\b.*\b(phones?|models?|handsets?|options)\b|\beverything\b`)
	smallPattern   = regexp.MustCompile(`(?i)\b(small|smaller|compact|mini|one[- ]handed)\b`)
	largePattern   = regexp.MustCompile(`(?i)\b(large|larger|big|bigger|huge)\b`)
	colourPattern  = regexp.MustCompile(`(?i)\b(black|white|blue|green|pink|purple|red|yellow|gold|silver|grey|gray|titanium|teal|violet|lilac|navy|mint|orange|cream|brown)\b`)
)

var _ contractx.Tool = (*RecommendationTool)(nil)

// RecommendationTool selects up to three handsets deterministically and asks
// the generator only to describe them.
type RecommendationTool struct {
	retriever    contractx.Retriever
	generator    contractx.Generator
	instructions string
	k            int
}

func NewRecommendationTool(retriever contractx.Retriever, generator contractx.Generator, instructions string, k int) *RecommendationTool {
	if k < RecommendationLimit {
		k = RecommendationLimit
	}
	return &RecommendationTool{
		retriever:    retriever,
		generator:    generator,
		instructions: instructions,
		k:            k,
	}
}

func (t *RecommendationTool) Name() string {
	return contractx.ToolRecommendation
}

func (t *RecommendationTool) Run(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	input := strings.TrimSpace(req.Input)
	data := contractx.RecommendationData{
		ShowAll:    IsShowAll(input),
		Preference: ParsePreference(input),
	}

	k := t.k
	if data.ShowAll {
		k = t.retriever.Len()
	}
	docs, err := t.retriever.Search(ctx, input, k)
	if err != nil {
		return contractx.ToolResult{}, err
	}
	if len(docs) == 0 {
		return contractx.ToolResult{}, fmt.Errorf("%w: no documents retrieved", contractx.ErrRetrievalUnavailable)
	}

	selected, relaxed := Select(docs, data)
	data.Documents = selected
	data.Relaxed = relaxed

	return contractx.ToolResult{
		Tool: t.Name(),
		Text: t.describe(ctx, req, data),
		Data: data,
	}, nil
}

// Select applies the recommendation rules to a retrieved set: "show all"
// ignores preferences, otherwise the preference filter applies unless nothing
// matches. The result is the most recent entries, ties in corpus order.
func Select(docs []catalogx.HandsetDocument, data contractx.RecommendationData) ([]catalogx.HandsetDocument, bool) {
	pool := append([]catalogx.HandsetDocument(nil), docs...)
	relaxed := false

	if !data.ShowAll && !data.Preference.IsZero() {
		filtered := make([]catalogx.HandsetDocument, 0, len(pool))
		for _, d := range pool {
			if MatchesPreference(d, data.Preference) {
				filtered = append(filtered, d)
			}
		}
		if len(filtered) > 0 {
			pool = filtered
		} else {
			relaxed = true
		}
	}

	catalogx.SortByRecency(pool)
	if len(pool) > RecommendationLimit {
		pool = pool[:RecommendationLimit]
	}
	return pool, relaxed
}

func IsShowAll(text string) bool {
	return showAllPattern.MatchString(text)
}

func ParsePreference(text string) contractx.Preference {
	var p contractx.Preference
	seen := map[string]bool{}
	for _, m := range colourPattern.FindAllString(text, -1) {
		c := strings.ToLower(m)
		if c == "gray" {
			c = "grey"
		}
		if !seen[c] {
			seen[c] = true
			p.Colours = append(p.Colours, c)
		}
	}
	switch {
	case smallPattern.MatchString(text):
		p.Size = SizeSmall
	case largePattern.MatchString(text):
		p.Size = SizeLarge
	}
	return p
}

func MatchesPreference(d catalogx.HandsetDocument, p contractx.Preference) bool {
	if len(p.Colours) > 0 {
		words := colourWords(d)
		found := false
		for _, c := range p.Colours {
			if words[c] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if p.Size != "" {
		size, ok := d.ScreenSize()
		if !ok {
			return false
		}
		switch p.Size {
		case SizeSmall:
			if size >= smallScreenBelow {
				return false
			}
		case SizeLarge:
			if size < largeScreenFrom {
				return false
			}
		}
	}
	return true
}

// colourWords splits "Titanium Gray, Black" into {titanium, grey, black}.
func colourWords(d catalogx.HandsetDocument) map[string]bool {
	words := map[string]bool{}
	for _, c := range d.Colours() {
		for _, w := range strings.FieldsFunc(strings.ToLower(c), func(r rune) bool { return !unicode.IsLetter(r) }) {
			if w == "gray" {
				w = "grey"
			}
			words[w] = true
		}
	}
	return words
}

func (t *RecommendationTool) describe(ctx context.Context, req contractx.ToolRequest, data contractx.RecommendationData) string {
	listing := numberedListing(data.Documents)
	fallback := deterministicText(data, listing)
	if t.generator == nil || strings.TrimSpace(t.instructions) == "" {
		return fallback
	}

	var input strings.Builder
	input.WriteString("Customer request: ")
	input.WriteString(strings.TrimSpace(req.Input))
	if data.Relaxed {
		input.WriteString("\nNote: no phone matched the stated preference exactly, so these are the latest alternatives. Say so briefly.")
	}
	input.WriteString("\nSelected phones:\n")
	input.WriteString(listing)

	text, err := t.generator.Generate(ctx, contractx.GenerateRequest{
		Instructions: t.instructions,
		Input:        input.String(),
		History:      req.Thread.History,
	})
	if err != nil {
		log.Warn().Err(err).Msg("recommendation summary generation failed, using catalog summary")
		return fallback
	}
	if !mentionsAll(text, data.Documents) {
		log.Warn().Msg("recommendation summary dropped a selected model, using catalog summary")
		return fallback
	}
	if !strings.Contains(text, interestPrompt) {
		text = strings.TrimSpace(text) + "\n\n" + interestPrompt
	}
	return text
}

func numberedListing(docs []catalogx.HandsetDocument) string {
	var b strings.Builder
	for i, d := range docs {
		fmt.Fprintf(&b, "%d. %s (launched %s)", i+1, d.DisplayName(), d.LaunchDate.Format(catalogx.DateLayout))
		if s := d.Summary(); s != "" {
			b.WriteString(": ")
			b.WriteString(s)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func deterministicText(data contractx.RecommendationData, listing string) string {
	var b strings.Builder
	switch {
	case data.ShowAll:
		b.WriteString("Here are the latest phones in our range:\n")
	case data.Relaxed:
		b.WriteString("I couldn't find an exact match for your preference, so here are the latest alternatives:\n")
	default:
		b.WriteString("Here are my top recommendations:\n")
	}
	b.WriteString(listing)
	b.WriteString("\n\n")
	b.WriteString(interestPrompt)
	return b.String()
}

func mentionsAll(text string, docs []catalogx.HandsetDocument) bool {
	lower := strings.ToLower(text)
	for _, d := range docs {
		if !strings.Contains(lower, strings.ToLower(d.Model())) {
			return false
		}
	}
	return true
}

// NoResultsText is shown when retrieval is unavailable or yields nothing.
func NoResultsText() string {
	return noResultsText
}
