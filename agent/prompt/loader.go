package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/guardrail.txt
	guardrailRaw string

	//go:embed template/jailbreak.txt
	jailbreakRaw string

	//go:embed template/opening.txt
	openingRaw string

	//go:embed template/interest.txt
	interestRaw string

	//go:embed template/model_choice.txt
	modelChoiceRaw string

	//go:embed template/cross_sell_outcome.txt
	crossSellOutcomeRaw string

	//go:embed template/recommendation.txt
	recommendationRaw string

	//go:embed template/cross_sell.txt
	crossSellRaw string
)

// PromptSet holds loaded prompt content. Templates are rendered with eino's
// FString format, so none of them may contain curly braces.
type PromptSet struct {
	Classifier       string
	Guardrail        string
	Jailbreak        string
	OpeningIntent    string
	Interest         string
	ModelChoice      string
	CrossSellOutcome string
	Recommendation   string
	CrossSell        string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Classifier:       strings.TrimSpace(classifierRaw),
		Guardrail:        strings.TrimSpace(guardrailRaw),
		Jailbreak:        strings.TrimSpace(jailbreakRaw),
		OpeningIntent:    strings.TrimSpace(openingRaw),
		Interest:         strings.TrimSpace(interestRaw),
		ModelChoice:      strings.TrimSpace(modelChoiceRaw),
		CrossSellOutcome: strings.TrimSpace(crossSellOutcomeRaw),
		Recommendation:   strings.TrimSpace(recommendationRaw),
		CrossSell:        strings.TrimSpace(crossSellRaw),
	}
}
