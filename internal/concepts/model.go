package concepts

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	pkgerrors "github.com/yungbote/conceptlab-backend/internal/pkg/errors"
	"github.com/yungbote/conceptlab-backend/internal/signals"
)

// ModelDeps carries the collaborators a concept model needs at runtime.
type ModelDeps struct {
	Registry *signals.Registry
	Selector DatasetSelector
	Splitter Splitter

	// Rand drives negative sampling and untrained scoring. Nil uses the
	// shared source; tests inject a seeded one.
	Rand *rand.Rand
}

// ConceptModel keeps one concept's classifiers in step with the concept
// itself. Identity, synced version, column info and the per-draft classifier
// states persist; the embedding cache and the negative pool are runtime-only
// and rebuilt after a restart.
type ConceptModel struct {
	Namespace     string
	ConceptName   string
	EmbeddingName string
	Version       int
	ColumnInfo    *ConceptColumnInfo

	deps        ModelDeps
	embeddings  map[string][]float32
	negatives   map[string]Example
	draftModels map[DraftID]*LogisticEmbeddingModel
}

// NewConceptModel builds an unsynced model (version -1). When columnInfo is
// set the negative pool is sampled immediately.
func NewConceptModel(ctx context.Context, namespace, conceptName, embeddingName string, columnInfo *ConceptColumnInfo, deps ModelDeps) (*ConceptModel, error) {
	m := &ConceptModel{
		Namespace:     namespace,
		ConceptName:   conceptName,
		EmbeddingName: embeddingName,
		Version:       -1,
		ColumnInfo:    columnInfo,
		deps:          deps,
		embeddings:    map[string][]float32{},
		draftModels:   map[DraftID]*LogisticEmbeddingModel{},
	}
	if columnInfo != nil && deps.Selector != nil {
		negatives, err := generateRandomNegatives(ctx, deps.Selector, deps.Splitter, *columnInfo, deps.Rand)
		if err != nil {
			return nil, fmt.Errorf("sample negatives for %s/%s: %w", namespace, conceptName, err)
		}
		m.negatives = negatives
	}
	return m, nil
}

// Sync brings the model up to the concept's version. It is a no-op exactly
// when the versions already match. Otherwise it fills the embedding cache,
// refits one classifier per draft over the resolved examples plus the
// negative pool, and adopts the concept's version. Returns whether a resync
// happened.
func (m *ConceptModel) Sync(ctx context.Context, c *Concept) (bool, error) {
	if c.Version == m.Version {
		return false, nil
	}
	if err := m.computeEmbeddings(ctx, c); err != nil {
		return false, err
	}

	for _, draft := range c.Drafts() {
		examples, err := DraftExamples(c, draft)
		if err != nil {
			return false, err
		}
		vecs, labels := m.trainingSet(examples)
		lm := m.logisticModel(draft)
		if err := lm.Fit(vecs, labels); err != nil {
			return false, fmt.Errorf("fit %s/%s draft %q: %w", c.Namespace, c.ConceptName, draft, err)
		}
		lm.Version = c.Version
	}

	m.Version = c.Version
	return true, nil
}

// Score embeds the inputs fresh and scores them against the draft's
// classifier. The configured signal must be a text embedding.
func (m *ConceptModel) Score(ctx context.Context, draft DraftID, texts []string, sensitivity Sensitivity) ([]float64, error) {
	embed, err := m.textEmbedding()
	if err != nil {
		return nil, err
	}
	vecs, err := embed.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d inputs with %q: %w", len(texts), m.EmbeddingName, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding %q returned %d vectors for %d inputs", m.EmbeddingName, len(vecs), len(texts))
	}
	return m.logisticModel(draft).ScoreEmbeddings(vecs, sensitivity), nil
}

// computeEmbeddings fills cache misses across the concept data and the
// negative pool with a single batch call. The cache becomes the union of its
// previous entries and the new vectors; ids that vanished from the concept
// are kept so a revert costs nothing.
func (m *ConceptModel) computeEmbeddings(ctx context.Context, c *Concept) error {
	embed, err := m.textEmbedding()
	if err != nil {
		return err
	}

	wanted := make(map[string]Example, len(c.Data)+len(m.negatives))
	for id, ex := range c.Data {
		wanted[id] = ex
	}
	for id, ex := range m.negatives {
		wanted[id] = ex
	}

	var missingIDs []string
	var missingTexts []string
	for _, id := range sortedKeys(wanted) {
		if _, ok := m.embeddings[id]; ok {
			continue
		}
		missingIDs = append(missingIDs, id)
		missingTexts = append(missingTexts, wanted[id].Text)
	}
	if len(missingIDs) == 0 {
		return nil
	}

	vecs, err := embed.Embed(ctx, missingTexts)
	if err != nil {
		return fmt.Errorf("embed %d examples with %q: %w", len(missingTexts), m.EmbeddingName, err)
	}
	if len(vecs) != len(missingIDs) {
		return fmt.Errorf("embedding %q returned %d vectors for %d inputs", m.EmbeddingName, len(vecs), len(missingIDs))
	}

	merged := make(map[string][]float32, len(m.embeddings)+len(vecs))
	for id, v := range m.embeddings {
		merged[id] = v
	}
	for i, id := range missingIDs {
		merged[id] = vecs[i]
	}
	m.embeddings = merged
	return nil
}

// trainingSet assembles embeddings and labels for the resolved examples plus
// the negative pool, in sorted id order so refits are deterministic.
func (m *ConceptModel) trainingSet(examples map[string]Example) ([][]float32, []bool) {
	vecs := make([][]float32, 0, len(examples)+len(m.negatives))
	labels := make([]bool, 0, len(examples)+len(m.negatives))
	appendRows := func(pool map[string]Example) {
		for _, id := range sortedKeys(pool) {
			v, ok := m.embeddings[id]
			if !ok {
				continue
			}
			vecs = append(vecs, v)
			labels = append(labels, pool[id].Label)
		}
	}
	appendRows(examples)
	appendRows(m.negatives)
	return vecs, labels
}

func (m *ConceptModel) textEmbedding() (signals.TextEmbedding, error) {
	if m.deps.Registry == nil {
		return nil, fmt.Errorf("%w: no signal registry configured", pkgerrors.ErrInvalidArgument)
	}
	sig, err := m.deps.Registry.Signal(m.EmbeddingName)
	if err != nil {
		return nil, err
	}
	embed, ok := sig.(signals.TextEmbedding)
	if !ok {
		return nil, fmt.Errorf("%w: signal %q does not embed text", pkgerrors.ErrUnsupportedModality, m.EmbeddingName)
	}
	return embed, nil
}

func (m *ConceptModel) logisticModel(draft DraftID) *LogisticEmbeddingModel {
	if lm, ok := m.draftModels[draft]; ok {
		return lm
	}
	lm := NewLogisticEmbeddingModel(m.deps.Rand)
	m.draftModels[draft] = lm
	return lm
}

// NegativeExamples exposes a copy of the sampled pool, mainly for tests and
// diagnostics.
func (m *ConceptModel) NegativeExamples() []Example {
	out := make([]Example, 0, len(m.negatives))
	for _, id := range sortedKeys(m.negatives) {
		out = append(out, m.negatives[id])
	}
	return out
}

// CachedEmbeddingIDs lists the ids currently held by the embedding cache in
// sorted order.
func (m *ConceptModel) CachedEmbeddingIDs() []string {
	ids := make([]string, 0, len(m.embeddings))
	for id := range m.embeddings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ModelState is the persisted slice of a concept model.
type ModelState struct {
	Namespace     string                              `json:"namespace"`
	ConceptName   string                              `json:"concept_name"`
	EmbeddingName string                              `json:"embedding_name"`
	Version       int                                 `json:"version"`
	ColumnInfo    *ConceptColumnInfo                  `json:"column_info,omitempty"`
	DraftModels   map[DraftID]*LogisticEmbeddingModel `json:"draft_models,omitempty"`
}

// State snapshots the persisted field group.
func (m *ConceptModel) State() ModelState {
	return ModelState{
		Namespace:     m.Namespace,
		ConceptName:   m.ConceptName,
		EmbeddingName: m.EmbeddingName,
		Version:       m.Version,
		ColumnInfo:    m.ColumnInfo,
		DraftModels:   m.draftModels,
	}
}

// RestoreConceptModel rebuilds a model from persisted state. The negative
// pool is re-sampled and the embedding cache starts empty.
func RestoreConceptModel(ctx context.Context, state ModelState, deps ModelDeps) (*ConceptModel, error) {
	m, err := NewConceptModel(ctx, state.Namespace, state.ConceptName, state.EmbeddingName, state.ColumnInfo, deps)
	if err != nil {
		return nil, err
	}
	m.Version = state.Version
	for draft, lm := range state.DraftModels {
		if lm == nil {
			continue
		}
		lm.SetRand(deps.Rand)
		m.draftModels[draft] = lm
	}
	return m, nil
}
