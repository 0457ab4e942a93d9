package concepts

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/conceptlab-backend/internal/pkg/errors"
)

// ConceptType is the modality of the data a concept describes.
type ConceptType string

const (
	ConceptTypeText  ConceptType = "text"
	ConceptTypeImage ConceptType = "image"
)

func ParseConceptType(raw string) (ConceptType, error) {
	switch ConceptType(raw) {
	case ConceptTypeText, ConceptTypeImage:
		return ConceptType(raw), nil
	}
	return "", fmt.Errorf("%w: unknown concept type %q", pkgerrors.ErrInvalidArgument, raw)
}

// DraftID names an isolated branch of a concept's examples.
type DraftID string

// DraftMain is the draft every concept always has.
const DraftMain DraftID = "main"

// ExampleOrigin records the dataset row an example was lifted from.
type ExampleOrigin struct {
	DatasetNamespace string `json:"dataset_namespace"`
	DatasetName      string `json:"dataset_name"`
	DatasetRowID     string `json:"dataset_row_id"`
}

// ExampleIn is an example without an id, used for inserts.
type ExampleIn struct {
	Label  bool           `json:"label"`
	Text   string         `json:"text,omitempty"`
	Origin *ExampleOrigin `json:"origin,omitempty"`
	Draft  DraftID        `json:"draft,omitempty"`
}

// Example is a labeled example stored in a concept.
type Example struct {
	ExampleIn
	ID string `json:"id"`
}

// NewExampleID returns a fresh 32-char hex example id.
func NewExampleID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Concept is a named, versioned collection of labeled examples.
type Concept struct {
	Namespace   string             `json:"namespace"`
	ConceptName string             `json:"concept_name"`
	Type        ConceptType        `json:"type"`
	Data        map[string]Example `json:"data"`
	Version     int                `json:"version"`
	Description string             `json:"description,omitempty"`
}

// Drafts lists every draft id appearing in the concept. The main draft is
// always present, and the result is sorted.
func (c *Concept) Drafts() []DraftID {
	seen := map[DraftID]struct{}{DraftMain: {}}
	for _, ex := range c.Data {
		seen[draftOf(ex)] = struct{}{}
	}
	out := make([]DraftID, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func draftOf(ex Example) DraftID {
	if ex.Draft == "" {
		return DraftMain
	}
	return ex.Draft
}

// DraftExamples resolves the effective example set for a draft by overlaying
// the draft's examples onto main. Main examples are injected only when no
// draft example shares their text; on a text collision the draft entry wins.
func DraftExamples(c *Concept, draft DraftID) (map[string]Example, error) {
	if draft == "" {
		draft = DraftMain
	}

	byDraft := map[DraftID]map[string]Example{}
	for id, ex := range c.Data {
		d := draftOf(ex)
		if byDraft[d] == nil {
			byDraft[d] = map[string]Example{}
		}
		byDraft[d][id] = ex
	}

	if draft == DraftMain {
		out := map[string]Example{}
		for id, ex := range byDraft[DraftMain] {
			out[id] = ex
		}
		return out, nil
	}

	overlay, ok := byDraft[draft]
	if !ok {
		return nil, fmt.Errorf("%w: draft %q not in concept %s/%s", pkgerrors.ErrDraftNotFound, draft, c.Namespace, c.ConceptName)
	}

	out := make(map[string]Example, len(overlay))
	claimed := make(map[string]struct{}, len(overlay))
	for id, ex := range overlay {
		out[id] = ex
		claimed[ex.Text] = struct{}{}
	}

	// Inject main examples whose text the draft does not shadow. Main ids are
	// walked in sorted order so duplicate main texts resolve deterministically.
	mainIDs := sortedKeys(byDraft[DraftMain])
	for _, id := range mainIDs {
		ex := byDraft[DraftMain][id]
		if _, taken := claimed[ex.Text]; taken {
			continue
		}
		out[id] = ex
		claimed[ex.Text] = struct{}{}
	}
	return out, nil
}

// ConceptUpdate is one edit call: inserts, in-place updates and removals,
// applied together as a single version bump.
type ConceptUpdate struct {
	Insert []ExampleIn `json:"insert,omitempty"`
	Update []Example   `json:"update,omitempty"`
	Remove []string    `json:"remove,omitempty"`
}

func (u ConceptUpdate) isEmpty() bool {
	return len(u.Insert) == 0 && len(u.Update) == 0 && len(u.Remove) == 0
}

// ApplyUpdate validates the whole change and then applies it, bumping the
// version exactly once. A failed validation mutates nothing.
func (c *Concept) ApplyUpdate(change ConceptUpdate) error {
	for _, in := range change.Insert {
		if err := validateExample(c.Type, in); err != nil {
			return err
		}
	}
	for _, ex := range change.Update {
		if err := validateExample(c.Type, ex.ExampleIn); err != nil {
			return err
		}
		if _, ok := c.Data[ex.ID]; !ok {
			return fmt.Errorf("%w: example %q not in concept %s/%s", pkgerrors.ErrNotFound, ex.ID, c.Namespace, c.ConceptName)
		}
	}
	for _, id := range change.Remove {
		if _, ok := c.Data[id]; !ok {
			return fmt.Errorf("%w: example %q not in concept %s/%s", pkgerrors.ErrNotFound, id, c.Namespace, c.ConceptName)
		}
	}

	if change.isEmpty() {
		return nil
	}

	if c.Data == nil {
		c.Data = map[string]Example{}
	}
	for _, in := range change.Insert {
		ex := Example{ExampleIn: in, ID: NewExampleID()}
		if ex.Draft == "" {
			ex.Draft = DraftMain
		}
		c.Data[ex.ID] = ex
	}
	for _, ex := range change.Update {
		if ex.Draft == "" {
			ex.Draft = DraftMain
		}
		c.Data[ex.ID] = ex
	}
	for _, id := range change.Remove {
		delete(c.Data, id)
	}

	c.Version++
	return nil
}

// MergeDraft replaces the concept data with the draft's resolved content,
// clearing the draft marker on every surviving example. Main examples
// shadowed by the draft and examples of other drafts are dropped. Merging
// main is a no-op.
func (c *Concept) MergeDraft(draft DraftID) error {
	if draft == "" || draft == DraftMain {
		return nil
	}
	merged, err := DraftExamples(c, draft)
	if err != nil {
		return err
	}
	for id, ex := range merged {
		ex.Draft = DraftMain
		merged[id] = ex
	}
	c.Data = merged
	c.Version++
	return nil
}

func validateExample(t ConceptType, in ExampleIn) error {
	switch t {
	case ConceptTypeText:
		if in.Text == "" {
			return fmt.Errorf("%w: example text is required for text concepts", pkgerrors.ErrTypeMismatch)
		}
	case ConceptTypeImage:
		return fmt.Errorf("%w: image concepts do not accept examples", pkgerrors.ErrTypeMismatch)
	default:
		return fmt.Errorf("%w: unknown concept type %q", pkgerrors.ErrInvalidArgument, t)
	}
	return nil
}

func sortedKeys(m map[string]Example) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
