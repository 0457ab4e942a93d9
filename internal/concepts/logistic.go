package concepts

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	pkgerrors "github.com/yungbote/conceptlab-backend/internal/pkg/errors"
)

// Sensitivity controls how aggressively a concept model flags matches. Higher
// sensitivities pull the decision threshold down so more borderline inputs
// score above the midpoint.
type Sensitivity string

const (
	SensitivityNotSensitive  Sensitivity = "not sensitive"
	SensitivityBalanced      Sensitivity = "balanced"
	SensitivitySensitive     Sensitivity = "sensitive"
	SensitivityVerySensitive Sensitivity = "very sensitive"
)

// sensitivityPercentiles maps each sensitivity to the share of negative
// training examples allowed to score above the threshold.
var sensitivityPercentiles = map[Sensitivity]float64{
	SensitivityNotSensitive:  1,
	SensitivityBalanced:      3,
	SensitivitySensitive:     10,
	SensitivityVerySensitive: 20,
}

// ParseSensitivity parses a wire value, defaulting empty input to balanced.
func ParseSensitivity(raw string) (Sensitivity, error) {
	if raw == "" {
		return SensitivityBalanced, nil
	}
	s := Sensitivity(raw)
	if _, ok := sensitivityPercentiles[s]; !ok {
		return "", fmt.Errorf("%w: unknown sensitivity %q", pkgerrors.ErrInvalidArgument, raw)
	}
	return s, nil
}

const (
	logisticC       = 30.0
	logisticTol     = 1e-5
	logisticMaxIter = 1000

	// scoreMidpoint is what the decision threshold maps to after rescaling,
	// kept a hair under 0.5 so thresholded inputs stay below the midpoint.
	scoreMidpoint = 0.4999
)

// LogisticEmbeddingModel is an L2-regularized logistic regression over
// embedding vectors with balanced class weights. Per-sensitivity thresholds
// are calibrated against the negative training scores so that, at sensitivity
// p, roughly p percent of negatives land above the threshold.
type LogisticEmbeddingModel struct {
	Version    int                     `json:"version"`
	Weights    []float64               `json:"weights,omitempty"`
	Bias       float64                 `json:"bias"`
	Thresholds map[Sensitivity]float64 `json:"thresholds,omitempty"`

	rng *rand.Rand
}

// NewLogisticEmbeddingModel returns an unfitted model. The rng is used to
// score inputs before the first fit; nil falls back to the shared source.
func NewLogisticEmbeddingModel(rng *rand.Rand) *LogisticEmbeddingModel {
	return &LogisticEmbeddingModel{Version: -1, rng: rng}
}

// SetRand swaps the randomness source, typically after restoring persisted
// state.
func (m *LogisticEmbeddingModel) SetRand(rng *rand.Rand) { m.rng = rng }

func (m *LogisticEmbeddingModel) fitted() bool { return len(m.Weights) > 0 }

// Fit trains on the given embeddings and labels. Training is skipped when the
// labels hold fewer than two classes, leaving the previous state intact.
func (m *LogisticEmbeddingModel) Fit(embeddings [][]float32, labels []bool) error {
	if len(embeddings) != len(labels) {
		return fmt.Errorf("%w: got %d embeddings for %d labels", pkgerrors.ErrInvalidArgument, len(embeddings), len(labels))
	}
	nPos, nNeg := 0, 0
	for _, l := range labels {
		if l {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return nil
	}

	n := len(embeddings)
	dim := len(embeddings[0])
	x := make([][]float64, n)
	for i, e := range embeddings {
		if len(e) != dim {
			return fmt.Errorf("%w: embedding %d has dim %d, want %d", pkgerrors.ErrInvalidArgument, i, len(e), dim)
		}
		row := make([]float64, dim)
		for j, v := range e {
			row[j] = float64(v)
		}
		x[i] = row
	}

	// Balanced class weights: n / (numClasses * classCount).
	wPos := float64(n) / (2 * float64(nPos))
	wNeg := float64(n) / (2 * float64(nNeg))
	cw := make([]float64, n)
	y := make([]float64, n)
	for i, l := range labels {
		if l {
			cw[i] = wPos
			y[i] = 1
		} else {
			cw[i] = wNeg
			y[i] = -1
		}
	}

	weights := make([]float64, dim)
	bias := 0.0
	lambda := 1 / (logisticC * float64(n))

	// Constant step from the Lipschitz bound of the weighted logistic loss.
	lip := lambda
	for i := range x {
		sq := 1.0
		for _, v := range x[i] {
			sq += v * v
		}
		lip += cw[i] * sq / (4 * float64(n))
	}
	step := 1 / lip

	gradW := make([]float64, dim)
	for iter := 0; iter < logisticMaxIter; iter++ {
		for j := range gradW {
			gradW[j] = lambda * weights[j]
		}
		gradB := 0.0
		for i := range x {
			z := bias
			for j, v := range x[i] {
				z += weights[j] * v
			}
			// d/dz of log(1+exp(-y*z)) is -y*sigmoid(-y*z).
			g := -cw[i] * y[i] * sigmoid(-y[i]*z) / float64(n)
			for j, v := range x[i] {
				gradW[j] += g * v
			}
			gradB += g
		}

		maxAbs := math.Abs(gradB)
		for _, g := range gradW {
			if a := math.Abs(g); a > maxAbs {
				maxAbs = a
			}
		}
		if maxAbs < logisticTol {
			break
		}

		for j := range weights {
			weights[j] -= step * gradW[j]
		}
		bias -= step * gradB
	}

	m.Weights = weights
	m.Bias = bias

	negScores := make([]float64, 0, nNeg)
	for i, l := range labels {
		if !l {
			negScores = append(negScores, m.prob(x[i]))
		}
	}
	m.Thresholds = make(map[Sensitivity]float64, len(sensitivityPercentiles))
	for s, p := range sensitivityPercentiles {
		m.Thresholds[s] = percentile(negScores, 100-p)
	}
	return nil
}

// ScoreEmbeddings scores each embedding in [0, 1], rescaled so the threshold
// for the given sensitivity lands just under 0.5. An unfitted model returns
// uniform random scores.
func (m *LogisticEmbeddingModel) ScoreEmbeddings(embeddings [][]float32, sensitivity Sensitivity) []float64 {
	out := make([]float64, len(embeddings))
	if !m.fitted() {
		for i := range out {
			out[i] = m.randFloat()
		}
		return out
	}

	threshold := 0.5
	if t, ok := m.Thresholds[sensitivity]; ok {
		threshold = t
	}

	for i, e := range embeddings {
		z := m.Bias
		for j, v := range e {
			if j < len(m.Weights) {
				z += m.Weights[j] * float64(v)
			}
		}
		out[i] = rescaleScore(sigmoid(z), threshold)
	}
	return out
}

func (m *LogisticEmbeddingModel) prob(x []float64) float64 {
	z := m.Bias
	for j, v := range x {
		z += m.Weights[j] * v
	}
	return sigmoid(z)
}

func (m *LogisticEmbeddingModel) randFloat() float64 {
	if m.rng != nil {
		return m.rng.Float64()
	}
	return rand.Float64()
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// rescaleScore maps [0, threshold, 1] piecewise linearly onto
// [0, scoreMidpoint, 1]. Thresholds at the domain edges collapse a segment,
// so they are nudged inward to keep both slopes finite.
func rescaleScore(p, threshold float64) float64 {
	const eps = 1e-9
	if threshold < eps {
		threshold = eps
	}
	if threshold > 1-eps {
		threshold = 1 - eps
	}
	if p <= threshold {
		return p / threshold * scoreMidpoint
	}
	return scoreMidpoint + (p-threshold)/(1-threshold)*(1-scoreMidpoint)
}

// percentile computes the q-th percentile with linear interpolation between
// ranks, matching the numpy default.
func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	if len(s) == 1 {
		return s[0]
	}
	rank := (float64(len(s)) - 1) * q / 100
	lo := int(math.Floor(rank))
	if lo >= len(s)-1 {
		return s[len(s)-1]
	}
	frac := rank - float64(lo)
	return s[lo] + frac*(s[lo+1]-s[lo])
}
