// Package userservice reads sessions and group chats owned by the user service.
package userservice

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/lo"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/client"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
)

// Client talks to the user service
type Client struct {
	rest *client.REST
}

// NewClient creates a user service client
func NewClient(cfg client.Config) *Client {
	if cfg.Service == "" {
		cfg.Service = "user service"
	}
	return &Client{rest: client.NewREST(cfg)}
}

// FindSessionOfCurrentConsultant returns a session only if it is assigned to caller
func (c *Client) FindSessionOfCurrentConsultant(ctx context.Context, caller *domain.Caller, sessionID int64) (*domain.ConsultantSession, error) {
	var session domain.ConsultantSession
	err := c.rest.Do(ctx, caller, client.Request{
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("/users/consultants/sessions/%d", sessionID),
		Resource: "Session",
	}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// AssertCanModerateChat fails with FORBIDDEN when caller may not moderate chatID
func (c *Client) AssertCanModerateChat(ctx context.Context, caller *domain.Caller, chatID int64) error {
	return c.rest.Do(ctx, caller, client.Request{
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("/users/chat/%d/moderation", chatID),
		Resource: "Chat",
	}, nil)
}

// FindChatByID returns the chat metadata
func (c *Client) FindChatByID(ctx context.Context, caller *domain.Caller, chatID int64) (*domain.ChatInfo, error) {
	var chat domain.ChatInfo
	err := c.rest.Do(ctx, caller, client.Request{
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("/users/chat/%d", chatID),
		Resource: "Chat",
	}, &chat)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

type chatMembersResponse struct {
	Members []domain.ChatMember `json:"members"`
}

// GetChatMemberIDs returns the chat user ids of every chat member
func (c *Client) GetChatMemberIDs(ctx context.Context, caller *domain.Caller, chatID int64) ([]string, error) {
	var resp chatMembersResponse
	err := c.rest.Do(ctx, caller, client.Request{
		Method:   http.MethodGet,
		Path:     fmt.Sprintf("/users/chat/%d/members", chatID),
		Resource: "Chat",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return lo.Map(resp.Members, func(m domain.ChatMember, _ int) string { return m.ID }), nil
}
