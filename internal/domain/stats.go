package domain

// Dashboard summarises the account population for admins.
type Dashboard struct {
	TotalAccounts      int       `json:"total_users"`
	VerifiedAccounts   int       `json:"verified_users"`
	UnverifiedAccounts int       `json:"unverified_users"`
	AdminAccounts      int       `json:"admin_users"`
	Recent             []Account `json:"recent_users"`
}
