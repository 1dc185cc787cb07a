package domain

// Caller is the authenticated identity a call operation runs on behalf of.
// It is threaded explicitly through every operation.
type Caller struct {
	UserID      string
	Username    string
	RCUserID    string
	AccessToken string
	Role        UserRole
}

// SystemCaller acts for teardown triggered by the room provider
func SystemCaller() *Caller {
	return &Caller{
		UserID:   "system",
		Username: "system",
		Role:     UserRoleConsultant,
	}
}
