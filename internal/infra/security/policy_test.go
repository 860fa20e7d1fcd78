package security

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/marketgrid/credential-service/internal/core/domain"
)

func TestEvaluateRejectsShortPassword(t *testing.T) {
	evaluator := NewPolicyEvaluator(zaptest.NewLogger(t))

	result := evaluator.Evaluate("short1", domain.PasswordContext{})
	if result.Valid {
		t.Fatal("expected short password to be invalid")
	}
	if result.Score != 0 {
		t.Fatalf("expected score 0 on hard failure, got %d", result.Score)
	}
	if len(result.Reasons) == 0 {
		t.Fatal("expected reasons on hard failure")
	}
}

func TestEvaluateScoresStrongPassword(t *testing.T) {
	evaluator := NewPolicyEvaluator(zaptest.NewLogger(t))

	result := evaluator.Evaluate("LongEnough1!", domain.PasswordContext{})
	if !result.Valid {
		t.Fatalf("expected password to be valid, reasons: %v", result.Reasons)
	}
	if result.Score < 4 {
		t.Fatalf("expected score >= 4, got %d", result.Score)
	}
	if len(result.Reasons) != 0 {
		t.Fatalf("expected no reasons for valid password, got %v", result.Reasons)
	}
}

func TestEvaluateScoreComponents(t *testing.T) {
	evaluator := NewPolicyEvaluator(zaptest.NewLogger(t))

	cases := []struct {
		name     string
		password string
		score    int
	}{
		{name: "lower only, short of bonus", password: "abcdefgh", score: 1},
		{name: "lower and digit", password: "abcdefg1", score: 2},
		{name: "bonus length lower only", password: "abcdefghijkl", score: 2},
		{name: "all classes and bonus", password: "Abcdefghijk1!", score: 5},
	}

	for _, tc := range cases {
		result := evaluator.Evaluate(tc.password, domain.PasswordContext{})
		if !result.Valid {
			t.Fatalf("%s: expected valid", tc.name)
		}
		if result.Score != tc.score {
			t.Fatalf("%s: expected score %d, got %d", tc.name, tc.score, result.Score)
		}
	}
}

func TestEvaluateWeakPatternRemainsValid(t *testing.T) {
	evaluator := NewPolicyEvaluator(zaptest.NewLogger(t))

	// Contains a known weak pattern; policy logs a warning but does not reject.
	result := evaluator.Evaluate("password2024", domain.PasswordContext{Username: "merchant"})
	if !result.Valid {
		t.Fatal("expected weak-pattern password to remain valid")
	}
	if len(result.Reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", result.Reasons)
	}
}
