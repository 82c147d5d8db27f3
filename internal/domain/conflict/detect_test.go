package conflict

import "testing"

func TestAnalyzeEmptyInputSuggestsAddingIdentifiers(t *testing.T) {
	result := Analyze(nil, nil)
	if result.Severity != SeverityHigh {
		t.Fatalf("expected high severity, got %s", result.Severity)
	}
	if result.CanAutoResolve {
		t.Fatal("expected not auto-resolvable")
	}
	if len(result.SuggestedActions) != 1 || result.SuggestedActions[0].ActionType != "add_identifiers" {
		t.Fatalf("unexpected suggested actions: %+v", result.SuggestedActions)
	}
}

func TestAnalyzeDetectsGIDMappingConflict(t *testing.T) {
	candidates := Candidates{
		"farm-a:ear_tag:EU123": {"gid-1", "gid-2"},
	}
	result := Analyze(candidates, nil)

	if result.Severity != SeverityCritical {
		t.Fatalf("expected critical severity, got %s", result.Severity)
	}
	if result.CanAutoResolve {
		t.Fatal("expected not auto-resolvable for a critical mapping conflict")
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].Type != TypeIdentifierGIDMapping {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}

	foundEscalate := false
	for _, a := range result.SuggestedActions {
		if a.ActionType == "escalate" {
			foundEscalate = true
		}
	}
	if !foundEscalate {
		t.Fatalf("expected an escalate action, got %+v", result.SuggestedActions)
	}
}

func TestAnalyzeIgnoresSingleGIDMapping(t *testing.T) {
	candidates := Candidates{
		"farm-a:ear_tag:EU123": {"gid-1"},
	}
	result := Analyze(candidates, nil)
	if len(result.Conflicts) != 0 {
		t.Fatalf("expected no conflicts for a single GID mapping, got %+v", result.Conflicts)
	}
	if result.Severity != SeverityNone {
		t.Fatalf("expected none severity, got %s", result.Severity)
	}
}

func TestAnalyzeDetectsDuplicateAmbiguity(t *testing.T) {
	duplicates := []DuplicateSignal{
		{IdentifierKey: "farm-a:color:brown", GID: "gid-1", Similarity: 0.9},
	}
	result := Analyze(nil, duplicates)

	if result.Severity != SeverityMedium {
		t.Fatalf("expected medium severity, got %s", result.Severity)
	}
	if len(result.Conflicts) != 1 || result.Conflicts[0].Type != TypeDuplicateDetection {
		t.Fatalf("unexpected conflicts: %+v", result.Conflicts)
	}
}

func TestAnalyzeIgnoresExactAndLowSimilarityDuplicates(t *testing.T) {
	duplicates := []DuplicateSignal{
		{IdentifierKey: "a", GID: "gid-1", Similarity: 1.0},
		{IdentifierKey: "b", GID: "gid-2", Similarity: 0.5},
	}
	result := Analyze(nil, duplicates)
	if len(result.Conflicts) != 0 {
		t.Fatalf("expected no conflicts, got %+v", result.Conflicts)
	}
}

func TestAnalyzeMediumSeverityDuplicateIsNotAutoResolvable(t *testing.T) {
	duplicates := []DuplicateSignal{
		{IdentifierKey: "a", GID: "gid-1", Similarity: 0.9},
	}
	result := Analyze(nil, duplicates)
	// Medium severity alone already rules out auto-resolve; the detector
	// also always suggests manual review, which independently disqualifies it.
	if result.CanAutoResolve {
		t.Fatal("expected medium-severity duplicates to not be auto-resolvable")
	}
}
