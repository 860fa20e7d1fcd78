package domain

// PasswordPolicyResult captures the outcome of a password strength evaluation.
// Score is advisory feedback on a 0..5 scale; Valid is the hard gate.
type PasswordPolicyResult struct {
	Valid   bool
	Score   int
	Reasons []string
}

// PasswordContext carries user attributes considered during strength checks
// so passwords derived from the user's own identifiers can be flagged.
type PasswordContext struct {
	Username string
	Email    string
	Phone    *string
}
