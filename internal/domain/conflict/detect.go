package conflict

import (
	"fmt"
	"sort"
)

// gidConflictThreshold is the number of distinct GIDs one identifier must
// map to before it's flagged as a mapping conflict, matching the original
// implementation's default.
const gidConflictThreshold = 2

// similarityThreshold is the lower bound (exclusive) for flagging a
// near-duplicate match as ambiguous rather than a confident merge.
const similarityThreshold = 0.85

// Analyze runs every detector over the supplied candidates/duplicates and
// produces a ranked Result, following original_source/src/conflict_detection.rs's
// analyze_identifiers pipeline.
func Analyze(candidates Candidates, duplicates []DuplicateSignal) Result {
	if len(candidates) == 0 && len(duplicates) == 0 {
		return Result{
			Severity:       SeverityHigh,
			CanAutoResolve: false,
			SuggestedActions: []SuggestedAction{{
				ActionType:  "add_identifiers",
				Description: "Add identifiers to enable processing",
				Confidence:  0.9,
				Automated:   false,
			}},
		}
	}

	var conflicts []Info
	conflicts = append(conflicts, detectGIDMappingConflicts(candidates)...)
	conflicts = append(conflicts, detectDuplicateAmbiguity(duplicates)...)

	result := Result{
		Conflicts:      conflicts,
		Severity:       overallSeverity(conflicts),
		CanAutoResolve: canAutoResolve(conflicts),
	}
	result.SuggestedActions = suggestedActions(conflicts)
	return result
}

func detectGIDMappingConflicts(candidates Candidates) []Info {
	keys := make([]string, 0, len(candidates))
	for k := range candidates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conflicts []Info
	for _, key := range keys {
		gids := candidates[key]
		if len(gids) < gidConflictThreshold {
			continue
		}
		conflicts = append(conflicts, Info{
			Type:                TypeIdentifierGIDMapping,
			Severity:            SeverityCritical,
			Description:         fmt.Sprintf("identifier %s maps to %d different GIDs: %v", key, len(gids), gids),
			AffectedIdentifiers: []string{key},
			SuggestedResolution: StrategyManualReview,
			Confidence:          0.95,
		})
	}
	return conflicts
}

func detectDuplicateAmbiguity(duplicates []DuplicateSignal) []Info {
	var conflicts []Info
	for _, d := range duplicates {
		if d.Similarity <= similarityThreshold || d.Similarity >= 1.0 {
			continue
		}
		conflicts = append(conflicts, Info{
			Type:                TypeDuplicateDetection,
			Severity:            SeverityMedium,
			Description:         fmt.Sprintf("identifier %s is a %.0f%% match against existing GID %s", d.IdentifierKey, d.Similarity*100, d.GID),
			AffectedIdentifiers: []string{d.IdentifierKey},
			SuggestedResolution: StrategyManualReview,
			Confidence:          d.Similarity,
		})
	}
	return conflicts
}

func overallSeverity(conflicts []Info) Severity {
	max := SeverityNone
	for _, c := range conflicts {
		if c.Severity > max {
			max = c.Severity
		}
	}
	return max
}

func canAutoResolve(conflicts []Info) bool {
	for _, c := range conflicts {
		if c.Severity > SeverityLow {
			return false
		}
		if c.SuggestedResolution != StrategyAutoMerge && c.SuggestedResolution != StrategySkipProcessing {
			return false
		}
	}
	return true
}

func suggestedActions(conflicts []Info) []SuggestedAction {
	if len(conflicts) == 0 {
		return nil
	}

	hasCritical := false
	hasMapping := false
	for _, c := range conflicts {
		if c.Severity == SeverityCritical {
			hasCritical = true
		}
		if c.Type == TypeIdentifierGIDMapping {
			hasMapping = true
		}
	}

	var actions []SuggestedAction
	if hasMapping {
		actions = append(actions, SuggestedAction{
			ActionType:  "manual_review",
			Description: "Review conflicting identifier-to-GID mappings before resolving",
			Confidence:  0.9,
			Automated:   false,
		})
	}
	if hasCritical {
		actions = append(actions, SuggestedAction{
			ActionType:  "escalate",
			Description: "Escalate critical conflicts to an operator",
			Confidence:  0.85,
			Automated:   false,
		})
	}
	if !hasCritical && !hasMapping {
		actions = append(actions, SuggestedAction{
			ActionType:  "auto_merge",
			Description: "Conflicts are low severity and can be auto-merged",
			Confidence:  0.7,
			Automated:   true,
		})
	}
	return actions
}
