package detector

import "testing"

func clusterWithOutlier() []float64 {
	values := []float64{
		100, 102, 98, 101, 99, 103, 97, 100, 102, 98,
		101, 99, 100, 103, 97, 96, 104, 100, 98,
	}
	return append(values, 5000)
}

func TestForestIsolatesOutlier(t *testing.T) {
	values := clusterWithOutlier()
	forest, err := FitForest(values, ForestOptions{Trees: 100, Seed: 42})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	scores := forest.Scores(values)
	maxIdx := 0
	for i, s := range scores {
		if s > scores[maxIdx] {
			maxIdx = i
		}
	}
	if maxIdx != len(values)-1 {
		t.Fatalf("expected the outlier to carry the maximum score, got index %d", maxIdx)
	}
	if scores[maxIdx] <= scores[0] {
		t.Fatalf("outlier score %g not above cluster score %g", scores[maxIdx], scores[0])
	}
}

func TestForestDeterministicForSeed(t *testing.T) {
	values := clusterWithOutlier()
	a, err := FitForest(values, ForestOptions{Trees: 50, Seed: 7})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	b, err := FitForest(values, ForestOptions{Trees: 50, Seed: 7})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	for _, v := range []float64{96, 100, 104, 5000} {
		if a.Score(v) != b.Score(v) {
			t.Fatalf("same seed produced different scores for %g", v)
		}
	}
}

func TestForestConstantValues(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 120
	}

	forest, err := FitForest(values, ForestOptions{Trees: 100, Seed: 42})
	if err != nil {
		t.Fatalf("fit on constant window must not fail: %v", err)
	}

	scores := forest.Scores(values)
	for i, s := range scores {
		if s != scores[0] {
			t.Fatalf("constant window must yield identical scores, got %g at %d vs %g", s, i, scores[0])
		}
	}
}

func TestForestEmptyTrainingSet(t *testing.T) {
	if _, err := FitForest(nil, ForestOptions{}); err == nil {
		t.Fatal("expected error fitting an empty training set")
	}
}

func TestForestScoreRange(t *testing.T) {
	values := clusterWithOutlier()
	forest, err := FitForest(values, ForestOptions{Trees: 100, Seed: 42})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}

	for _, v := range append(values, 0.1, 10_000) {
		s := forest.Score(v)
		if s <= 0 || s > 1 {
			t.Fatalf("score out of range for %g: %g", v, s)
		}
	}
}
