// Package video orchestrates starting, stopping and rejecting video calls.
package video

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	apperrors "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/errors"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/logger"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/metrics"
)

// StoppedMessage is posted into a group chat when its call ends
const StoppedMessage = "Video-Call stopped"

// IdentifierRegistry issues call identifiers
type IdentifierRegistry interface {
	Generate(ctx context.Context) (string, error)
	Release(ctx context.Context, id string) error
}

// URLGenerator derives join URLs from a call identifier
type URLGenerator interface {
	DeriveURLs(callID string) (domain.CallURLs, error)
}

// SessionChatClient reads sessions and chats owned by the user service
type SessionChatClient interface {
	FindSessionOfCurrentConsultant(ctx context.Context, caller *domain.Caller, sessionID int64) (*domain.ConsultantSession, error)
	AssertCanModerateChat(ctx context.Context, caller *domain.Caller, chatID int64) error
	FindChatByID(ctx context.Context, caller *domain.Caller, chatID int64) (*domain.ChatInfo, error)
	GetChatMemberIDs(ctx context.Context, caller *domain.Caller, chatID int64) ([]string, error)
}

// RoomManager owns call rooms
type RoomManager interface {
	CreateOneToOneRoom(ctx context.Context, sessionID int64, callID, moderatorURL string) (*domain.VideoRoom, error)
	CreateGroupRoom(ctx context.Context, chatID int64, callID, moderatorURL string) (*domain.VideoRoom, error)
	FindByRoomID(ctx context.Context, roomID string) (*domain.VideoRoom, error)
	CloseRoom(ctx context.Context, room *domain.VideoRoom) error
}

// Notifier delivers call invitations
type Notifier interface {
	SendCallInvitation(ctx context.Context, msg *domain.LiveEventMessage, recipientIDs []string) error
}

// StatisticsRecorder reports call events. Implementations must not block.
type StatisticsRecorder interface {
	RecordStart(actorID string, role domain.UserRole, sessionID int64, callID string)
	RecordStop(actorID string, role domain.UserRole, roomID string)
}

// MessageClient posts system messages into conversations
type MessageClient interface {
	PostVideoCallStarted(ctx context.Context, caller *domain.Caller, groupID, username, roomID, participantURL string) error
	PostVideoCallRejected(ctx context.Context, caller *domain.Caller, groupID, initiatorUsername, initiatorRCUserID string) error
	PostMessage(ctx context.Context, caller *domain.Caller, groupID, text string, room *domain.VideoRoom) error
}

// Dependencies are the collaborators of the call service
type Dependencies struct {
	Registry   IdentifierRegistry
	URLs       URLGenerator
	Sessions   SessionChatClient
	Rooms      RoomManager
	Notifier   Notifier
	Statistics StatisticsRecorder
	Messages   MessageClient
	Metrics    *metrics.Metrics
}

// Service handles video call business logic
type Service struct {
	registry   IdentifierRegistry
	urls       URLGenerator
	sessions   SessionChatClient
	rooms      RoomManager
	notifier   Notifier
	statistics StatisticsRecorder
	messages   MessageClient
	metrics    *metrics.Metrics
}

// NewService creates a new video call service
func NewService(deps Dependencies) *Service {
	return &Service{
		registry:   deps.Registry,
		urls:       deps.URLs,
		sessions:   deps.Sessions,
		rooms:      deps.Rooms,
		notifier:   deps.Notifier,
		statistics: deps.Statistics,
		messages:   deps.Messages,
		metrics:    deps.Metrics,
	}
}

// StartCallInput selects the call target. Exactly one of SessionID and GroupChatID is set.
type StartCallInput struct {
	SessionID            *int64
	GroupChatID          *int64
	InitiatorDisplayName string
}

// StartCall invites the other party (or every chat member) and opens the room.
// Invitations go out before the room exists; a failed room creation is reported but not undone.
func (s *Service) StartCall(ctx context.Context, caller *domain.Caller, input *StartCallInput) (*domain.VideoCallSession, error) {
	if (input.SessionID == nil) == (input.GroupChatID == nil) {
		return nil, apperrors.BadRequestError("Exactly one of sessionId and groupChatId is required")
	}

	var (
		call *domain.VideoCallSession
		err  error
		kind = domain.CallKindOneToOne
	)
	if input.GroupChatID != nil {
		kind = domain.CallKindGroup
		call, err = s.startGroupCall(ctx, caller, *input.GroupChatID, input.InitiatorDisplayName)
	} else {
		call, err = s.startOneToOneCall(ctx, caller, *input.SessionID, input.InitiatorDisplayName)
	}
	if err != nil {
		s.metrics.RecordCallFailure(string(kind), failureReason(err))
		return nil, err
	}

	s.metrics.RecordCallStarted(string(kind))
	return call, nil
}

func (s *Service) startOneToOneCall(ctx context.Context, caller *domain.Caller, sessionID int64, displayName string) (*domain.VideoCallSession, error) {
	session, err := s.sessions.FindSessionOfCurrentConsultant(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	if err := AssertStartable(session); err != nil {
		return nil, err
	}

	callID, urls, err := s.newCall(ctx)
	if err != nil {
		return nil, err
	}

	s.invite(ctx, caller, callID, session.GroupID, urls.UserVideoURL, displayName, []string{session.AskerID})

	room, err := s.rooms.CreateOneToOneRoom(ctx, session.ID, callID, urls.ModeratorVideoURL)
	if err != nil {
		return nil, err
	}

	s.statistics.RecordStart(caller.UserID, domain.UserRoleConsultant, session.ID, callID)

	logger.FromContext(ctx).Info("Video call started",
		zap.String("call_id", callID),
		zap.Int64("session_id", session.ID))

	return &domain.VideoCallSession{
		CallID:    callID,
		Kind:      domain.CallKindOneToOne,
		SubjectID: session.ID,
		URLs:      urls,
		Room:      room,
	}, nil
}

func (s *Service) startGroupCall(ctx context.Context, caller *domain.Caller, chatID int64, displayName string) (*domain.VideoCallSession, error) {
	if err := s.sessions.AssertCanModerateChat(ctx, caller, chatID); err != nil {
		return nil, err
	}
	chat, err := s.sessions.FindChatByID(ctx, caller, chatID)
	if err != nil {
		return nil, err
	}
	members, err := s.sessions.GetChatMemberIDs(ctx, caller, chatID)
	if err != nil {
		return nil, err
	}

	callID, urls, err := s.newCall(ctx)
	if err != nil {
		return nil, err
	}

	s.invite(ctx, caller, callID, chat.GroupID, urls.UserVideoURL, displayName, members)

	room, err := s.rooms.CreateGroupRoom(ctx, chatID, callID, urls.ModeratorVideoURL)
	if err != nil {
		return nil, err
	}

	if err := s.messages.PostVideoCallStarted(ctx, caller, chat.GroupID, caller.Username, callID, urls.UserVideoURL); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Group video call started",
		zap.String("call_id", callID),
		zap.Int64("chat_id", chatID),
		zap.Int("invitees", len(members)))

	return &domain.VideoCallSession{
		CallID:    callID,
		Kind:      domain.CallKindGroup,
		SubjectID: chatID,
		URLs:      urls,
		Room:      room,
	}, nil
}

func (s *Service) newCall(ctx context.Context) (string, domain.CallURLs, error) {
	callID, err := s.registry.Generate(ctx)
	if err != nil {
		return "", domain.CallURLs{}, err
	}
	urls, err := s.urls.DeriveURLs(callID)
	if err != nil {
		return "", domain.CallURLs{}, apperrors.WrapWithStatus(apperrors.ErrCodeInternal, "Failed to derive call urls", http.StatusInternalServerError, err)
	}
	return callID, urls, nil
}

// invite sends the participant URL only. Delivery problems are logged, never returned.
func (s *Service) invite(ctx context.Context, caller *domain.Caller, callID, groupID, userVideoURL, displayName string, recipients []string) {
	msg := domain.NewVideoCallRequestEvent(groupID, userVideoURL, caller.RCUserID, initiatorName(caller, displayName))
	if err := s.notifier.SendCallInvitation(ctx, msg, recipients); err != nil {
		logger.FromContext(ctx).Warn("Video call invitation not delivered to every recipient",
			zap.String("call_id", callID),
			zap.Error(err))
	}
}

func initiatorName(caller *domain.Caller, displayName string) string {
	if name := strings.TrimSpace(displayName); name != "" {
		return name
	}
	return caller.Username
}

// StopCall ends the call of roomID. Only group rooms are closed here;
// one-to-one rooms are left to the provider and only the stop is reported.
func (s *Service) StopCall(ctx context.Context, caller *domain.Caller, roomID string) error {
	room, err := s.rooms.FindByRoomID(ctx, roomID)
	if err != nil {
		return err
	}
	return s.stop(ctx, caller, room)
}

func (s *Service) stop(ctx context.Context, caller *domain.Caller, room *domain.VideoRoom) error {
	if room.IsGroup() {
		if err := s.stopGroupCall(ctx, caller, room); err != nil {
			s.metrics.RecordCallFailure(string(domain.CallKindGroup), failureReason(err))
			return err
		}
	}

	s.statistics.RecordStop(caller.UserID, domain.UserRoleConsultant, room.RoomID)
	s.metrics.RecordCallStopped(string(room.Kind()))

	logger.FromContext(ctx).Info("Video call stopped",
		zap.String("room_id", room.RoomID),
		zap.String("kind", string(room.Kind())),
		zap.String("stopped_by", caller.UserID))

	return nil
}

func (s *Service) stopGroupCall(ctx context.Context, caller *domain.Caller, room *domain.VideoRoom) error {
	chat, err := s.sessions.FindChatByID(ctx, caller, *room.GroupChatID)
	if err != nil {
		return err
	}
	if err := s.rooms.CloseRoom(ctx, room); err != nil {
		return err
	}
	if err := s.messages.PostMessage(ctx, caller, chat.GroupID, StoppedMessage, room); err != nil {
		return err
	}

	if err := s.registry.Release(ctx, room.RoomID); err != nil {
		logger.FromContext(ctx).Warn("Failed to release call identifier",
			zap.String("room_id", room.RoomID),
			zap.Error(err))
	}
	return nil
}

// StopCallByProvider handles a room the media provider reports as finished.
// Unknown and already closed rooms are acknowledged without action, so a
// redelivered event reports the stop once. The room is closed whatever its kind.
func (s *Service) StopCallByProvider(ctx context.Context, roomID string) error {
	room, err := s.rooms.FindByRoomID(ctx, roomID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeRoomNotFound) {
			logger.FromContext(ctx).Warn("Provider finished unknown room", zap.String("room_id", roomID))
			return nil
		}
		return err
	}
	if room.IsClosed() {
		return nil
	}

	if !room.IsGroup() {
		if err := s.rooms.CloseRoom(ctx, room); err != nil {
			s.metrics.RecordCallFailure(string(domain.CallKindOneToOne), failureReason(err))
			return err
		}
	}
	return s.stop(ctx, domain.SystemCaller(), room)
}

// RejectCallInput identifies the declined invitation
type RejectCallInput struct {
	RCGroupID         string
	InitiatorUsername string
	InitiatorRCUserID string
}

// RejectCall informs the initiator's conversation that the invitee declined
func (s *Service) RejectCall(ctx context.Context, caller *domain.Caller, input *RejectCallInput) error {
	if input.RCGroupID == "" || input.InitiatorUsername == "" || input.InitiatorRCUserID == "" {
		return apperrors.BadRequestError("rcGroupId, initiatorUsername and initiatorRcUserId are required")
	}

	if err := s.messages.PostVideoCallRejected(ctx, caller, input.RCGroupID, input.InitiatorUsername, input.InitiatorRCUserID); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("Video call rejected",
		zap.String("rc_group_id", input.RCGroupID),
		zap.String("initiator_rc_user_id", input.InitiatorRCUserID))
	return nil
}

func failureReason(err error) string {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return strings.ToLower(string(appErr.Code))
	}
	return "unknown"
}
