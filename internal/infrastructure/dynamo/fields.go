package dynamo

// DynamoDB attribute names used in update and condition expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldAccountID      = "account_id"
	fieldEmail          = "email"
	fieldCredentialHash = "credential_hash"
	fieldVerified       = "verified"
	fieldActive         = "active"
	fieldRole           = "role"
	fieldProfile        = "profile"
	fieldSecrets        = "secrets"
	fieldLastLoginAt    = "last_login_at"
	fieldUpdatedAt      = "updated_at"

	fieldDisplayName = "display_name"
	fieldPhone       = "phone"
	fieldAvatarKey   = "avatar_key"
	fieldAddresses   = "addresses"

	fieldValueHash  = "value_hash"
	fieldExpiresAt  = "expires_at"
	fieldConsumedAt = "consumed_at"
	fieldAttempts   = "attempts"

	fieldJTI = "jti"
)
