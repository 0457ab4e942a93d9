package concepts

import (
	"context"
	"math/rand"
	"strings"

	"github.com/yungbote/conceptlab-backend/internal/signals"
)

// DefaultNumNegativeExamples bounds both the rows pulled from the dataset and
// the sentences sampled from them.
const DefaultNumNegativeExamples = 100

// ConceptColumnInfo points a concept model at the dataset column it draws
// background negatives from.
type ConceptColumnInfo struct {
	Namespace string   `json:"namespace"`
	Name      string   `json:"name"`
	Path      []string `json:"path"`
}

// DatasetSelector returns the text values of a dataset column, restricted to
// rows where the path exists, ordered by the stable row id and limited.
type DatasetSelector interface {
	SelectTextColumn(ctx context.Context, namespace, name string, path []string, limit int) ([]string, error)
}

// Splitter produces sentence spans for each input text, aligned with input
// order.
type Splitter interface {
	Split(texts []string) [][]signals.TextSpan
}

// generateRandomNegatives builds the background-negative pool: sentences
// drawn from the configured dataset column, sampled without replacement and
// wrapped as label=false examples under fresh ids. The pool lives beside the
// user-labeled data and never touches the concept itself.
func generateRandomNegatives(ctx context.Context, selector DatasetSelector, splitter Splitter, info ConceptColumnInfo, rng *rand.Rand) (map[string]Example, error) {
	texts, err := selector.SelectTextColumn(ctx, info.Namespace, info.Name, info.Path, DefaultNumNegativeExamples)
	if err != nil {
		return nil, err
	}

	var sentences []string
	for i, spans := range splitter.Split(texts) {
		text := texts[i]
		for _, sp := range spans {
			if sp.Start < 0 || sp.End > len(text) || sp.Start >= sp.End {
				continue
			}
			s := strings.TrimSpace(text[sp.Start:sp.End])
			if s == "" {
				continue
			}
			sentences = append(sentences, s)
		}
	}

	k := DefaultNumNegativeExamples
	if len(sentences) < k {
		k = len(sentences)
	}

	pool := make(map[string]Example, k)
	for _, idx := range permutation(rng, len(sentences))[:k] {
		id := NewExampleID()
		pool[id] = Example{
			ExampleIn: ExampleIn{Label: false, Text: sentences[idx], Draft: DraftMain},
			ID:        id,
		}
	}
	return pool, nil
}

func permutation(rng *rand.Rand, n int) []int {
	if rng != nil {
		return rng.Perm(n)
	}
	return rand.Perm(n)
}
