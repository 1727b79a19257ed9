package extraction

// Lexicon holds the sentiment terms counted by the heuristic scoring path.
// Matching is substring containment on lowercased text; each term counts at
// most once.
type Lexicon struct {
	Positive []string
	Negative []string
	Neutral  []string
}

var baseLexicon = Lexicon{
	Positive: []string{
		"excellent", "outstanding", "strong", "good", "favorable", "positive",
		"competitive", "efficient", "sustainable", "stable", "reliable",
		"certified", "compliant", "profitable", "advantageous",
	},
	Negative: []string{
		"poor", "weak", "concerning", "risky", "unstable", "expensive",
		"problematic", "insufficient", "inadequate", "volatile", "uncertain",
		"non-compliant", "unsustainable", "unprofitable",
	},
	Neutral: []string{
		"moderate", "average", "acceptable", "standard", "typical",
		"manageable", "reasonable", "adequate",
	},
}

// Per-dimension extensions layered over the base lexicon.
var dimensionLexicons = map[string]Lexicon{
	"profitability": {
		Positive: []string{"low cost", "cost-effective", "high margin", "affordable"},
		Negative: []string{"costly", "high cost", "tariff", "overpriced"},
	},
	"stability": {
		Positive: []string{"consistent", "secure", "peaceful", "predictable"},
		Negative: []string{"conflict", "unrest", "sanctions", "disruption"},
	},
	"eco_friendliness": {
		Positive: []string{"renewable", "organic", "green", "carbon neutral", "environmentally friendly"},
		Negative: []string{"polluting", "deforestation", "emissions", "toxic"},
	},
}

func lexiconFor(dimension string) Lexicon {
	ext, ok := dimensionLexicons[dimension]
	if !ok {
		return baseLexicon
	}
	return Lexicon{
		Positive: append(append([]string{}, baseLexicon.Positive...), ext.Positive...),
		Negative: append(append([]string{}, baseLexicon.Negative...), ext.Negative...),
		Neutral:  append(append([]string{}, baseLexicon.Neutral...), ext.Neutral...),
	}
}
