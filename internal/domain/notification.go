package domain

// NotificationKind names the template a sink renders.
type NotificationKind string

const (
	NotifyEmailVerification NotificationKind = "email_verification"
	NotifyPasswordReset     NotificationKind = "password_reset"
	NotifyPasswordChanged   NotificationKind = "password_changed"
)

// Notification is an out-of-band message for one account holder.
// Secret carries the one-time value for the verification and reset kinds.
type Notification struct {
	Kind      NotificationKind
	AccountID string
	Email     string
	Phone     string
	Secret    string
}
