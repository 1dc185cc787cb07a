package domain

// SessionStatus is the lifecycle state of a counseling session
type SessionStatus string

const (
	SessionStatusInitial    SessionStatus = "INITIAL"
	SessionStatusNew        SessionStatus = "NEW"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusDone       SessionStatus = "DONE"
)

// ConsultantSession is the user service view of a session owned by the current consultant
type ConsultantSession struct {
	ID      int64         `json:"id"`
	GroupID string        `json:"groupId"`
	AskerID string        `json:"askerId"`
	Status  SessionStatus `json:"status"`
}

// ChatInfo is the user service view of a group chat
type ChatInfo struct {
	ID      int64  `json:"id"`
	GroupID string `json:"groupId"`
}

// ChatMember is one entry of a group chat roster
type ChatMember struct {
	ID       string `json:"_id"`
	Username string `json:"username,omitempty"`
}
