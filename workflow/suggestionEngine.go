package workflow

import (
	"context"
	"sort"

	"github.com/mmdatafocus/gelato_backoffice/config"
	"github.com/mmdatafocus/gelato_backoffice/models"
	"github.com/sirupsen/logrus"
)

const (
	// Only candidates strictly above this similarity are suggested.
	SuggestionThreshold = 0.3
	MaxSuggestions      = 5
)

type Suggestion struct {
	CatalogId  int             `json:"catalog_id"`
	Name       string          `json:"name"`
	Category   models.Category `json:"category"`
	Similarity float64         `json:"similarity"`
}

// SuggestionEngine ranks catalog entries of every category against a name
// that failed exact resolution.
type SuggestionEngine struct {
	resolver *CatalogResolver
	logger   *logrus.Logger
}

func NewSuggestionEngine(resolver *CatalogResolver, logger *logrus.Logger) *SuggestionEngine {
	return &SuggestionEngine{resolver: resolver, logger: logger}
}

// Suggest returns at most MaxSuggestions candidates, best first. Ties keep
// category order, then catalog order. A category whose table cannot be read
// is logged and left out.
func (s *SuggestionEngine) Suggest(ctx context.Context, rawName string) []Suggestion {
	var suggestions []Suggestion
	for _, category := range models.Categories() {
		if ctx.Err() != nil {
			break
		}
		rows, err := s.resolver.entries(ctx, category)
		if err != nil {
			config.LogError(s.logger, "suggestionEngine.go", "Suggest", "Reading catalog table "+category.String(), rawName, err)
			continue
		}
		for _, row := range rows {
			score := Similarity(rawName, row.Name)
			if score <= SuggestionThreshold {
				continue
			}
			suggestions = append(suggestions, Suggestion{
				CatalogId:  row.ID,
				Name:       row.Name,
				Category:   category,
				Similarity: score,
			})
		}
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Similarity > suggestions[j].Similarity
	})
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	return suggestions
}
