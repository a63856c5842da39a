package categorize

import (
	"context"
	"strings"
)

// rule is one keyword set voting for a category.
type rule struct {
	category string
	keywords []string
}

var defaultRules = []rule{
	{"Technical", []string{
		"programming", "code", "software", "development", "python", "javascript",
		"algorithm", "database", "api", "framework", "debug", "error", "function",
		"variable", "class", "method", "library", "package", "git", "github",
	}},
	{"Medical", []string{
		"health", "medical", "doctor", "medicine", "symptom", "treatment", "therapy",
		"diagnosis", "hospital", "clinic", "patient", "disease", "illness", "medication",
		"prescription", "surgery", "anatomy", "physiology", "psychology",
	}},
	{"Spiritual", []string{
		"spiritual", "meditation", "mindfulness", "religion", "faith", "prayer",
		"god", "divine", "soul", "enlightenment", "consciousness", "buddhism",
		"christianity", "islam", "judaism", "hinduism", "yoga", "chakra",
	}},
	{"Political", []string{
		"politics", "government", "policy", "election", "democracy", "republican",
		"democrat", "conservative", "liberal", "vote", "legislation", "congress",
		"senate", "president", "political", "economy", "economic", "tax",
	}},
	{"Entertainment", []string{
		"movie", "film", "music", "song", "game", "gaming", "book", "novel",
		"tv", "television", "show", "series", "actor", "artist", "celebrity",
		"entertainment", "hobby", "sport", "sports",
	}},
	{"Education", []string{
		"education", "learning", "study", "school", "university", "college",
		"student", "teacher", "course", "lesson", "homework", "assignment",
		"research", "academic", "science", "math", "history", "literature",
	}},
	{"Business", []string{
		"business", "company", "corporate", "management", "marketing", "sales",
		"profit", "revenue", "strategy", "investment", "finance", "money",
		"career", "job", "professional", "industry", "market",
	}},
	{"Creative", []string{
		"creative", "art", "design", "writing", "poetry", "painting", "drawing",
		"photography", "composition", "artistic", "inspiration", "imagination", "craft",
	}},
}

// KeywordCategorizer scores keyword hits per category and picks the
// highest. Pure and allocation-light; no external calls.
type KeywordCategorizer struct {
	rules []rule
}

// NewKeywordCategorizer creates a categorizer with the default rules.
func NewKeywordCategorizer() *KeywordCategorizer {
	return &KeywordCategorizer{rules: defaultRules}
}

// Name returns the provider name.
func (k *KeywordCategorizer) Name() string { return string(ProviderKeyword) }

// Categorize implements Categorizer. The title weighs more than
// message content; no hits at all yields "".
func (k *KeywordCategorizer) Categorize(ctx context.Context, title string, sample []string) (string, error) {
	titleLower := strings.ToLower(title)
	bodyLower := strings.ToLower(strings.Join(sample, " "))

	best, bestScore := "", 0
	for _, r := range k.rules {
		score := 0
		for _, kw := range r.keywords {
			if strings.Contains(titleLower, kw) {
				score += 3
			}
			if strings.Contains(bodyLower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = r.category, score
		}
	}
	return best, nil
}
