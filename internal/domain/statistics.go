package domain

import (
	"time"
)

// StatisticsEventType names an analytics event
type StatisticsEventType string

const (
	StatisticsEventStartVideoCall StatisticsEventType = "START_VIDEO_CALL"
	StatisticsEventStopVideoCall  StatisticsEventType = "STOP_VIDEO_CALL"
)

// UserRole is the role of the actor reported in statistics
type UserRole string

const (
	UserRoleConsultant UserRole = "CONSULTANT"
	UserRoleAsker      UserRole = "ASKER"
)

// StatisticsEvent is one start or stop record
type StatisticsEvent struct {
	EventType     StatisticsEventType `json:"eventType"`
	UserID        string              `json:"userId"`
	UserRole      UserRole            `json:"userRole"`
	SessionID     *int64              `json:"sessionId,omitempty"`
	VideoCallUUID string              `json:"videoCallUuid"`
	Timestamp     time.Time           `json:"timestamp"`
}

// NewStartVideoCallEvent records the start of a one-to-one call
func NewStartVideoCallEvent(userID string, role UserRole, sessionID int64, callID string) *StatisticsEvent {
	return &StatisticsEvent{
		EventType:     StatisticsEventStartVideoCall,
		UserID:        userID,
		UserRole:      role,
		SessionID:     &sessionID,
		VideoCallUUID: callID,
		Timestamp:     time.Now().UTC(),
	}
}

// NewStopVideoCallEvent records the end of a call identified by its room id
func NewStopVideoCallEvent(userID string, role UserRole, roomID string) *StatisticsEvent {
	return &StatisticsEvent{
		EventType:     StatisticsEventStopVideoCall,
		UserID:        userID,
		UserRole:      role,
		VideoCallUUID: roomID,
		Timestamp:     time.Now().UTC(),
	}
}
