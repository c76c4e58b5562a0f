package deduplication

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/sabre/internal/sourcemap"
	"github.com/steveyegge/sabre/internal/types"
)

// DeduplicationResult is the outcome of reducing one batch of raw findings
type DeduplicationResult struct {
	// Findings are the unique findings in input order
	Findings []types.Finding `json:"findings"`

	// WithinBatchDuplicates maps duplicate indices to the first occurrence index
	// Key: index in the raw slice (duplicate)
	// Value: index in the raw slice (first occurrence)
	WithinBatchDuplicates map[int]int `json:"within_batch_duplicates,omitempty"`

	Stats DeduplicationStats `json:"stats"`
}

// DeduplicationStats describes a reduction
type DeduplicationStats struct {
	// TotalCandidates is the number of raw findings
	TotalCandidates int `json:"total_candidates"`

	// UniqueCount is the number of findings kept
	UniqueCount int `json:"unique_count"`

	// WithinBatchDuplicateCount is the number of findings dropped as duplicates
	WithinBatchDuplicateCount int `json:"within_batch_duplicate_count"`

	// UnlocatedCount is the number of kept findings without a resolved location
	UnlocatedCount int `json:"unlocated_count"`

	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// Validate checks the result is internally consistent
func (r *DeduplicationResult) Validate() error {
	uniqueCount := len(r.Findings)
	withinBatchCount := len(r.WithinBatchDuplicates)

	if r.Stats.UniqueCount != uniqueCount {
		return fmt.Errorf("stats.unique_count (%d) does not match findings length (%d)",
			r.Stats.UniqueCount, uniqueCount)
	}
	if r.Stats.WithinBatchDuplicateCount != withinBatchCount {
		return fmt.Errorf("stats.within_batch_duplicate_count (%d) does not match within_batch_duplicates length (%d)",
			r.Stats.WithinBatchDuplicateCount, withinBatchCount)
	}
	if total := uniqueCount + withinBatchCount; r.Stats.TotalCandidates != total {
		return fmt.Errorf("stats.total_candidates (%d) does not match unique + within_batch (%d)",
			r.Stats.TotalCandidates, total)
	}

	for dupIdx, origIdx := range r.WithinBatchDuplicates {
		if dupIdx < 0 || dupIdx >= r.Stats.TotalCandidates {
			return fmt.Errorf("within_batch_duplicates contains invalid duplicate index %d (total: %d)",
				dupIdx, r.Stats.TotalCandidates)
		}
		if origIdx < 0 || origIdx >= r.Stats.TotalCandidates {
			return fmt.Errorf("within_batch_duplicates contains invalid original index %d (total: %d)",
				origIdx, r.Stats.TotalCandidates)
		}
		if dupIdx <= origIdx {
			return fmt.Errorf("within_batch_duplicates: duplicate index %d must be > original index %d",
				dupIdx, origIdx)
		}
		// The original cannot itself be a duplicate
		if _, exists := r.WithinBatchDuplicates[origIdx]; exists {
			return fmt.Errorf("within_batch_duplicates references index %d as original, but it is also a duplicate", origIdx)
		}
	}
	return nil
}

// Reducer maps raw findings onto sources and drops duplicates
type Reducer struct {
	logger *slog.Logger
}

// NewReducer creates a Reducer; a nil logger uses slog.Default()
func NewReducer(logger *slog.Logger) *Reducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reducer{logger: logger}
}

// Reduce returns the unique, located findings of raw
func (r *Reducer) Reduce(raw []types.RawFinding, artifact *types.CompiledArtifact, sources *types.SourceSet) []types.Finding {
	return r.Deduplicate(raw, artifact, sources).Findings
}

// Deduplicate resolves every raw finding and keeps the first occurrence of
// each (rule, normalized message, location) identity
func (r *Reducer) Deduplicate(raw []types.RawFinding, artifact *types.CompiledArtifact, sources *types.SourceSet) *DeduplicationResult {
	start := time.Now()
	mapper := r.mapper(artifact, sources)

	result := &DeduplicationResult{
		Findings:              make([]types.Finding, 0, len(raw)),
		WithinBatchDuplicates: make(map[int]int),
	}
	firstIndex := make(map[string]int, len(raw))

	for i, rf := range raw {
		f := r.convert(rf, artifact, mapper)
		key := f.Key()
		if orig, seen := firstIndex[key]; seen {
			result.WithinBatchDuplicates[i] = orig
			continue
		}
		firstIndex[key] = i
		if f.Location == nil {
			result.Stats.UnlocatedCount++
		}
		result.Findings = append(result.Findings, f)
	}

	result.Stats.TotalCandidates = len(raw)
	result.Stats.UniqueCount = len(result.Findings)
	result.Stats.WithinBatchDuplicateCount = len(result.WithinBatchDuplicates)
	result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()

	if err := result.Validate(); err != nil {
		r.logger.Warn("inconsistent deduplication result", "error", err)
	}
	r.logger.Debug("reduced findings",
		"raw", result.Stats.TotalCandidates,
		"unique", result.Stats.UniqueCount,
		"duplicates", result.Stats.WithinBatchDuplicateCount,
		"unlocated", result.Stats.UnlocatedCount)
	return result
}

func (r *Reducer) mapper(artifact *types.CompiledArtifact, sources *types.SourceSet) *sourcemap.Mapper {
	var contents map[string]string
	if sources != nil {
		contents = sources.Contents()
	}
	var sourceList []string
	if artifact != nil {
		sourceList = artifact.SourceList
	}
	m := sourcemap.NewMapper(contents, sourceList)
	if artifact != nil && artifact.DeployedBytecode != "" {
		if err := m.WithBytecode(artifact.DeployedBytecode, artifact.DeployedSourceMap); err != nil {
			r.logger.Debug("program counters will not be resolved", "error", err)
		}
	}
	return m
}

func (r *Reducer) convert(rf types.RawFinding, artifact *types.CompiledArtifact, mapper *sourcemap.Mapper) types.Finding {
	f := types.Finding{
		RuleID:      rf.RuleID,
		Title:       rf.Title,
		Severity:    types.ParseSeverity(rf.Severity),
		Message:     rf.Head,
		Description: rf.Tail,
	}
	if f.Message == "" {
		f.Message = rf.Title
	}
	if rf.FunctionHash != "" && artifact != nil {
		if sig, ok := artifact.FunctionForSelector(rf.FunctionHash); ok {
			f.Function = sig
		}
	}

	for _, loc := range rf.Locations {
		if resolved, ok := resolve(loc, mapper); ok {
			f.Location = resolved
			break
		}
	}
	return f
}

func resolve(loc types.RawLocation, mapper *sourcemap.Mapper) (*types.Location, bool) {
	if loc.SourceMap != "" {
		if l, ok := mapper.Locator(loc.SourceMap, loc.SourceList); ok {
			return l, true
		}
	}
	if loc.PC != nil {
		return mapper.PC(*loc.PC)
	}
	return nil, false
}
