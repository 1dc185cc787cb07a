// Package messageservice posts system messages into chat conversations.
package messageservice

import (
	"context"
	"net/http"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/client"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
)

// HeaderRCGroupID selects the target conversation
const HeaderRCGroupID = "rcGroupId"

// VideoHint event types understood by the message service
const (
	EventCallStarted = "CALL_STARTED"
	EventCallIgnored = "IGNORED_CALL"
)

// VideoHint is the payload of a call related system message
type VideoHint struct {
	EventType         string `json:"eventType"`
	InitiatorUserName string `json:"initiatorUserName"`
	InitiatorRCUserID string `json:"initiatorRcUserId,omitempty"`
	RoomID            string `json:"roomId,omitempty"`
	VideoLink         string `json:"videoLink,omitempty"`
}

type textMessage struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}

// Client talks to the message service
type Client struct {
	rest *client.REST
}

// NewClient creates a message service client
func NewClient(cfg client.Config) *Client {
	if cfg.Service == "" {
		cfg.Service = "message service"
	}
	return &Client{rest: client.NewREST(cfg)}
}

// PostVideoCallStarted announces a started group call in the chat. The
// chat is readable by every member, so participantURL must be the
// non-moderator link.
func (c *Client) PostVideoCallStarted(ctx context.Context, caller *domain.Caller, groupID, username, roomID, participantURL string) error {
	return c.postVideoHint(ctx, caller, groupID, &VideoHint{
		EventType:         EventCallStarted,
		InitiatorUserName: username,
		RoomID:            roomID,
		VideoLink:         participantURL,
	})
}

// PostVideoCallRejected tells the initiator that the invitee declined
func (c *Client) PostVideoCallRejected(ctx context.Context, caller *domain.Caller, groupID, initiatorUsername, initiatorRCUserID string) error {
	return c.postVideoHint(ctx, caller, groupID, &VideoHint{
		EventType:         EventCallIgnored,
		InitiatorUserName: initiatorUsername,
		InitiatorRCUserID: initiatorRCUserID,
	})
}

// PostMessage posts a plain system message that refers to room
func (c *Client) PostMessage(ctx context.Context, caller *domain.Caller, groupID, text string, room *domain.VideoRoom) error {
	msg := &textMessage{Message: text}
	if room != nil {
		msg.RoomID = room.RoomID
	}
	return c.rest.Do(ctx, caller, client.Request{
		Method:   http.MethodPost,
		Path:     "/messages/new",
		Resource: "Conversation",
		Headers:  map[string]string{HeaderRCGroupID: groupID},
		Body:     msg,
	}, nil)
}

func (c *Client) postVideoHint(ctx context.Context, caller *domain.Caller, groupID string, hint *VideoHint) error {
	return c.rest.Do(ctx, caller, client.Request{
		Method:   http.MethodPost,
		Path:     "/messages/videohint/new",
		Resource: "Conversation",
		Headers:  map[string]string{HeaderRCGroupID: groupID},
		Body:     hint,
	}, nil)
}
