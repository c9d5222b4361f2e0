package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// DistributionKind tags the variant held by a Distribution.
type DistributionKind string

const (
	UniformFloatKind DistributionKind = "uniform_float"
	UniformIntKind   DistributionKind = "uniform_int"
	ChoiceKind       DistributionKind = "choice"
)

// Distribution describes the sampling support of one tunable parameter.
// Exactly one variant is populated, selected by Kind.
type Distribution struct {
	Kind    DistributionKind `json:"kind"`
	Lo      float64          `json:"lo,omitempty"`
	Hi      float64          `json:"hi,omitempty"`
	IntLo   int64            `json:"int_lo,omitempty"`
	IntHi   int64            `json:"int_hi,omitempty"`
	Choices []any            `json:"choices,omitempty"`
}

// UniformFloat declares a continuous uniform distribution on [lo, hi).
func UniformFloat(lo, hi float64) Distribution {
	return Distribution{Kind: UniformFloatKind, Lo: lo, Hi: hi}
}

// UniformInt declares a discrete uniform distribution on [lo, hi] inclusive.
func UniformInt(lo, hi int64) Distribution {
	return Distribution{Kind: UniformIntKind, IntLo: lo, IntHi: hi}
}

// Choice declares a categorical distribution over the given values.
func Choice(values ...any) Distribution {
	return Distribution{Kind: ChoiceKind, Choices: values}
}

// SearchSpace maps step name to parameter name to Distribution.
type SearchSpace map[string]map[string]Distribution

// FlatParams is one sampled point of a SearchSpace: step name to parameter
// name to concrete value. Never mutated after creation.
type FlatParams map[string]map[string]any

// Clone returns a deep copy of the outer and inner maps. Values are shared;
// sampled values are never mutated.
func (p FlatParams) Clone() FlatParams {
	out := make(FlatParams, len(p))
	for step, params := range p {
		inner := make(map[string]any, len(params))
		for name, value := range params {
			inner[name] = value
		}
		out[step] = inner
	}
	return out
}

// TrialRecord is the immutable outcome of one trial: a single parameter set
// evaluated across all cross-validation folds.
type TrialRecord struct {
	Index          int        `json:"index"`
	Params         FlatParams `json:"params"`
	FoldIDs        []int      `json:"fold_ids"`
	FoldScores     []float64  `json:"fold_scores"`
	MeanScore      float64    `json:"mean_score"`
	StddevScore    float64    `json:"stddev_score"`
	DegenerateFold int        `json:"degenerate_folds"`
}

// RunConfig is the persisted configuration of one search run.
type RunConfig struct {
	RunID        string      `json:"run_id"`
	CreatedAtUTC string      `json:"created_at_utc"`
	Dataset      string      `json:"dataset,omitempty"`
	CV           int         `json:"cv"`
	NIter        int         `json:"n_iter"`
	Workers      int         `json:"workers"`
	Seed         int64       `json:"seed"`
	ErrorScore   float64     `json:"error_score"`
	Spaces       SearchSpace `json:"spaces"`
}

// RunRecord is the persisted result of one completed search run.
type RunRecord struct {
	VersionedRecord
	Config     RunConfig     `json:"config"`
	History    []TrialRecord `json:"history"`
	BestIndex  int           `json:"best_index"`
	BestScore  float64       `json:"best_score"`
	BestParams FlatParams    `json:"best_params"`
}
