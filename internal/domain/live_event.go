package domain

// EventType names a live event pushed to connected clients
type EventType string

const (
	EventTypeVideoCallRequest EventType = "videoCallRequest"
)

// VideoCallRequest is the content of a video call invitation
type VideoCallRequest struct {
	RCGroupID         string `json:"rcGroupId"`
	VideoCallURL      string `json:"videoCallUrl"`
	InitiatorRCUserID string `json:"initiatorRcUserId"`
	InitiatorUsername string `json:"initiatorUsername"`
}

// LiveEventMessage is the envelope delivered to recipients of a live event
type LiveEventMessage struct {
	EventType    EventType         `json:"eventType"`
	EventContent *VideoCallRequest `json:"eventContent"`
}

// NewVideoCallRequestEvent builds an invitation carrying the participant URL
func NewVideoCallRequestEvent(groupID, userVideoURL, initiatorID, initiatorName string) *LiveEventMessage {
	return &LiveEventMessage{
		EventType: EventTypeVideoCallRequest,
		EventContent: &VideoCallRequest{
			RCGroupID:         groupID,
			VideoCallURL:      userVideoURL,
			InitiatorRCUserID: initiatorID,
			InitiatorUsername: initiatorName,
		},
	}
}
