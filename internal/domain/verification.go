package domain

import "time"

// Purpose identifies an independent one-time secret channel on an account.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// MaxSecretAttempts is the number of wrong guesses after which a secret is
// dead even if the right value is presented later.
const MaxSecretAttempts = 5

// OneTimeSecret is a short-lived single-use secret embedded in the account
// document under secrets.<purpose>. Only the SHA-256 digest of the value is stored.
type OneTimeSecret struct {
	Purpose    Purpose    `json:"purpose" dynamodbav:"purpose"`
	ValueHash  string     `json:"-" dynamodbav:"value_hash"`
	ExpiresAt  time.Time  `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty" dynamodbav:"consumed_at,omitempty,unixtime"`
	Attempts   int        `json:"attempts" dynamodbav:"attempts"`
	CreatedAt  time.Time  `json:"created" dynamodbav:"created_at"`
}

// Live reports whether the secret can still be consumed at now.
func (s *OneTimeSecret) Live(now time.Time) bool {
	return s != nil && s.ConsumedAt == nil && s.Attempts < MaxSecretAttempts && now.Before(s.ExpiresAt)
}
