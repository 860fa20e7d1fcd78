package security

import (
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
	"go.uber.org/zap"

	"github.com/marketgrid/credential-service/internal/core/domain"
)

const (
	minPasswordLength   = 8
	bonusPasswordLength = 12
	maxPolicyScore      = 5

	policySymbols = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// weakPatterns are substrings that mark a password as guessable. Their
// presence is logged as a soft warning and does not invalidate the password;
// tightening this to a hard rejection is a product decision.
var weakPatterns = []string{
	"12345678",
	"password",
	"qwerty",
	"admin",
	"letmein",
	"welcome",
}

// PolicyEvaluator scores passwords against the service strength policy.
type PolicyEvaluator struct {
	logger *zap.Logger
}

// NewPolicyEvaluator constructs a policy evaluator. A nil logger is replaced
// with a no-op logger.
func NewPolicyEvaluator(logger *zap.Logger) *PolicyEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyEvaluator{logger: logger}
}

// Evaluate applies the strength policy. Validity is strictly the minimum
// length rule; the score is advisory feedback on a 0..5 scale. Reasons are
// only populated on hard failure.
func (p *PolicyEvaluator) Evaluate(password string, ctx domain.PasswordContext) domain.PasswordPolicyResult {
	if len([]rune(password)) < minPasswordLength {
		return domain.PasswordPolicyResult{
			Valid:   false,
			Score:   0,
			Reasons: []string{"too short"},
		}
	}

	score := 0
	if len([]rune(password)) >= bonusPasswordLength {
		score++
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(policySymbols, r):
			hasSymbol = true
		}
	}

	if hasUpper {
		score++
	}
	if hasLower {
		score++
	}
	if hasDigit {
		score++
	}
	if hasSymbol {
		score++
	}
	if score > maxPolicyScore {
		score = maxPolicyScore
	}

	p.warnOnWeakPattern(password, ctx)

	return domain.PasswordPolicyResult{Valid: true, Score: score}
}

func (p *PolicyEvaluator) warnOnWeakPattern(password string, ctx domain.PasswordContext) {
	lowered := strings.ToLower(password)
	for _, pattern := range weakPatterns {
		if !strings.Contains(lowered, pattern) {
			continue
		}

		inputs := make([]string, 0, 3)
		if ctx.Username != "" {
			inputs = append(inputs, ctx.Username)
		}
		if ctx.Email != "" {
			inputs = append(inputs, ctx.Email)
		}
		if ctx.Phone != nil && *ctx.Phone != "" {
			inputs = append(inputs, *ctx.Phone)
		}

		strength := zxcvbn.PasswordStrength(password, inputs)
		p.logger.Warn("password contains a known weak pattern",
			zap.String("pattern", pattern),
			zap.Int("zxcvbn_score", strength.Score),
		)
		return
	}
}
