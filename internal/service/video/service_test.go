package video

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/service/callid"
	apperrors "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/errors"
)

var consultant = &domain.Caller{
	UserID:      "consultant-1",
	Username:    "berater",
	RCUserID:    "rc-consultant",
	AccessToken: "token",
	Role:        domain.UserRoleConsultant,
}

var testURLs = domain.CallURLs{
	ModeratorVideoURL: "https://video/call-1?jwt=moderator",
	UserVideoURL:      "https://video/call-1?jwt=user",
}

func int64Ptr(v int64) *int64 { return &v }

func inProgressSession() *domain.ConsultantSession {
	return &domain.ConsultantSession{ID: 42, GroupID: "g1", AskerID: "asker-9", Status: domain.SessionStatusInProgress}
}

func TestStartCall_OneToOne(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()
	order := &callLog{}
	room := &domain.VideoRoom{SessionID: int64Ptr(42), RoomID: "call-1", VideoLink: testURLs.ModeratorVideoURL}

	d.sessions.On("FindSessionOfCurrentConsultant", ctx, consultant, int64(42)).Return(inProgressSession(), nil)
	d.registry.On("Generate", ctx).Return("call-1", nil)
	d.urls.On("DeriveURLs", "call-1").Return(testURLs, nil)
	d.notifier.On("SendCallInvitation", ctx, mock.MatchedBy(func(msg *domain.LiveEventMessage) bool {
		c := msg.EventContent
		return msg.EventType == domain.EventTypeVideoCallRequest &&
			c.RCGroupID == "g1" &&
			c.VideoCallURL == testURLs.UserVideoURL &&
			c.InitiatorRCUserID == "rc-consultant" &&
			c.InitiatorUsername == "berater"
	}), []string{"asker-9"}).Run(func(mock.Arguments) { order.add("notify") }).Return(nil)
	d.rooms.On("CreateOneToOneRoom", ctx, int64(42), "call-1", testURLs.ModeratorVideoURL).
		Run(func(mock.Arguments) { order.add("room") }).Return(room, nil)
	d.statistics.On("RecordStart", "consultant-1", domain.UserRoleConsultant, int64(42), "call-1").
		Run(func(mock.Arguments) { order.add("statistics") }).Return()

	call, err := svc.StartCall(ctx, consultant, &StartCallInput{SessionID: int64Ptr(42)})

	require.NoError(t, err)
	assert.Equal(t, "call-1", call.CallID)
	assert.Equal(t, domain.CallKindOneToOne, call.Kind)
	assert.Equal(t, int64(42), call.SubjectID)
	assert.Equal(t, testURLs, call.URLs)
	assert.Same(t, room, call.Room)
	assert.Equal(t, []string{"notify", "room", "statistics"}, order.list())
	d.messages.AssertNotCalled(t, "PostVideoCallStarted", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	d.sessions.AssertExpectations(t)
	d.notifier.AssertExpectations(t)
	d.rooms.AssertExpectations(t)
	d.statistics.AssertExpectations(t)
}

func TestStartCall_OneToOne_UsesDisplayName(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()

	d.sessions.On("FindSessionOfCurrentConsultant", ctx, consultant, int64(42)).Return(inProgressSession(), nil)
	d.registry.On("Generate", ctx).Return("call-1", nil)
	d.urls.On("DeriveURLs", "call-1").Return(testURLs, nil)
	d.notifier.On("SendCallInvitation", ctx, mock.MatchedBy(func(msg *domain.LiveEventMessage) bool {
		return msg.EventContent.InitiatorUsername == "Frau Berater"
	}), []string{"asker-9"}).Return(nil)
	d.rooms.On("CreateOneToOneRoom", ctx, int64(42), "call-1", testURLs.ModeratorVideoURL).Return(&domain.VideoRoom{RoomID: "call-1"}, nil)
	d.statistics.On("RecordStart", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	_, err := svc.StartCall(ctx, consultant, &StartCallInput{SessionID: int64Ptr(42), InitiatorDisplayName: "  Frau Berater "})

	require.NoError(t, err)
	d.notifier.AssertExpectations(t)
}

func TestStartCall_OneToOne_SessionNotInProgress(t *testing.T) {
	for _, status := range []domain.SessionStatus{domain.SessionStatusNew, domain.SessionStatusDone, domain.SessionStatusInitial} {
		t.Run(string(status), func(t *testing.T) {
			svc, d := newTestService()
			ctx := context.Background()
			session := inProgressSession()
			session.Status = status

			d.sessions.On("FindSessionOfCurrentConsultant", ctx, consultant, int64(42)).Return(session, nil)

			call, err := svc.StartCall(ctx, consultant, &StartCallInput{SessionID: int64Ptr(42)})

			assert.Nil(t, call)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePreconditionFailed))
			d.registry.AssertNotCalled(t, "Generate", mock.Anything)
			d.assertNoSideEffects(t)
		})
	}
}

func TestStartCall_OneToOne_SessionLookupFails(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()

	d.sessions.On("FindSessionOfCurrentConsultant", ctx, consultant, int64(42)).
		Return(nil, apperrors.UpstreamError("user service", errors.New("timeout")))

	_, err := svc.StartCall(ctx, consultant, &StartCallInput{SessionID: int64Ptr(42)})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamUnavailable))
	d.assertNoSideEffects(t)
}

func TestStartCall_DiscriminatorMustBeExclusive(t *testing.T) {
	tests := []struct {
		name  string
		input *StartCallInput
	}{
		{"neither", &StartCallInput{}},
		{"both", &StartCallInput{SessionID: int64Ptr(42), GroupChatID: int64Ptr(7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newTestService()

			call, err := svc.StartCall(context.Background(), consultant, tt.input)

			assert.Nil(t, call)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))
			d.sessions.AssertExpectations(t)
			assert.Empty(t, d.sessions.Calls)
			assert.Empty(t, d.registry.Calls)
			assert.Empty(t, d.urls.Calls)
			assert.Empty(t, d.notifier.Calls)
			assert.Empty(t, d.rooms.Calls)
			assert.Empty(t, d.statistics.Calls)
			assert.Empty(t, d.messages.Calls)
		})
	}
}

func TestStartCall_Group(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()
	order := &callLog{}
	room := &domain.VideoRoom{GroupChatID: int64Ptr(7), RoomID: "call-1", VideoLink: testURLs.ModeratorVideoURL}

	d.sessions.On("AssertCanModerateChat", ctx, consultant, int64(7)).Return(nil)
	d.sessions.On("FindChatByID", ctx, consultant, int64(7)).Return(&domain.ChatInfo{ID: 7, GroupID: "g1"}, nil)
	d.sessions.On("GetChatMemberIDs", ctx, consultant, int64(7)).Return([]string{"m1", "m2", "m3"}, nil)
	d.registry.On("Generate", ctx).Return("call-1", nil)
	d.urls.On("DeriveURLs", "call-1").Return(testURLs, nil)
	d.notifier.On("SendCallInvitation", ctx, mock.MatchedBy(func(msg *domain.LiveEventMessage) bool {
		return msg.EventContent.RCGroupID == "g1" && msg.EventContent.VideoCallURL == testURLs.UserVideoURL
	}), []string{"m1", "m2", "m3"}).Run(func(mock.Arguments) { order.add("notify") }).Return(nil)
	d.rooms.On("CreateGroupRoom", ctx, int64(7), "call-1", testURLs.ModeratorVideoURL).
		Run(func(mock.Arguments) { order.add("room") }).Return(room, nil)
	d.messages.On("PostVideoCallStarted", ctx, consultant, "g1", "berater", "call-1", testURLs.UserVideoURL).
		Run(func(mock.Arguments) { order.add("message") }).Return(nil)

	call, err := svc.StartCall(ctx, consultant, &StartCallInput{GroupChatID: int64Ptr(7)})

	require.NoError(t, err)
	assert.Equal(t, domain.CallKindGroup, call.Kind)
	assert.Equal(t, int64(7), call.SubjectID)
	assert.Equal(t, testURLs.ModeratorVideoURL, call.URLs.ModeratorVideoURL)
	assert.Equal(t, []string{"notify", "room", "message"}, order.list())
	d.statistics.AssertNotCalled(t, "RecordStart", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	d.sessions.AssertExpectations(t)
	d.notifier.AssertExpectations(t)
	d.messages.AssertExpectations(t)
}

func TestStartCall_Group_InitiatorIsNotExcluded(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()
	roster := []string{"rc-consultant", "m1"}

	d.sessions.On("AssertCanModerateChat", ctx, consultant, int64(7)).Return(nil)
	d.sessions.On("FindChatByID", ctx, consultant, int64(7)).Return(&domain.ChatInfo{ID: 7, GroupID: "g1"}, nil)
	d.sessions.On("GetChatMemberIDs", ctx, consultant, int64(7)).Return(roster, nil)
	d.registry.On("Generate", ctx).Return("call-1", nil)
	d.urls.On("DeriveURLs", "call-1").Return(testURLs, nil)
	d.notifier.On("SendCallInvitation", ctx, mock.Anything, roster).Return(nil)
	d.rooms.On("CreateGroupRoom", ctx, int64(7), "call-1", testURLs.ModeratorVideoURL).Return(&domain.VideoRoom{RoomID: "call-1"}, nil)
	d.messages.On("PostVideoCallStarted", ctx, consultant, "g1", "berater", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.StartCall(ctx, consultant, &StartCallInput{GroupChatID: int64Ptr(7)})

	require.NoError(t, err)
	d.notifier.AssertExpectations(t)
}

func TestStartCall_Group_ChatNeverSeesModeratorURL(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()
	room := &domain.VideoRoom{GroupChatID: int64Ptr(7), RoomID: "call-1", VideoLink: testURLs.ModeratorVideoURL}
	var posted string

	d.sessions.On("AssertCanModerateChat", ctx, consultant, int64(7)).Return(nil)
	d.sessions.On("FindChatByID", ctx, consultant, int64(7)).Return(&domain.ChatInfo{ID: 7, GroupID: "g1"}, nil)
	d.sessions.On("GetChatMemberIDs", ctx, consultant, int64(7)).Return([]string{"m1"}, nil)
	d.registry.On("Generate", ctx).Return("call-1", nil)
	d.urls.On("DeriveURLs", "call-1").Return(testURLs, nil)
	d.notifier.On("SendCallInvitation", ctx, mock.Anything, mock.Anything).Return(nil)
	d.rooms.On("CreateGroupRoom", ctx, int64(7), "call-1", testURLs.ModeratorVideoURL).Return(room, nil)
	d.messages.On("PostVideoCallStarted", ctx, consultant, "g1", "berater", "call-1", mock.Anything).
		Run(func(args mock.Arguments) { posted = args.String(5) }).Return(nil)

	_, err := svc.StartCall(ctx, consultant, &StartCallInput{GroupChatID: int64Ptr(7)})

	require.NoError(t, err)
	require.NotEqual(t, testURLs.ModeratorVideoURL, testURLs.UserVideoURL)
	assert.Equal(t, testURLs.UserVideoURL, posted)
	assert.NotEqual(t, testURLs.ModeratorVideoURL, posted)
}

func TestStartCall_Group_NotModerator(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()

	d.sessions.On("AssertCanModerateChat", ctx, consultant, int64(7)).Return(apperrors.ForbiddenError("Not allowed"))

	_, err := svc.StartCall(ctx, consultant, &StartCallInput{GroupChatID: int64Ptr(7)})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbidden))
	d.sessions.AssertNotCalled(t, "FindChatByID", mock.Anything, mock.Anything, mock.Anything)
	d.registry.AssertNotCalled(t, "Generate", mock.Anything)
	d.assertNoSideEffects(t)
}

func TestStartCall_NotificationFailureIsSwallowed(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()

	d.sessions.On("FindSessionOfCurrentConsultant", ctx, consultant, int64(42)).Return(inProgressSession(), nil)
	d.registry.On("Generate", ctx).Return("call-1", nil)
	d.urls.On("DeriveURLs", "call-1").Return(testURLs, nil)
	d.notifier.On("SendCallInvitation", ctx, mock.Anything, []string{"asker-9"}).
		Return(apperrors.UpstreamError("live events", errors.New("redis down")))
	d.rooms.On("CreateOneToOneRoom", ctx, int64(42), "call-1", testURLs.ModeratorVideoURL).Return(&domain.VideoRoom{RoomID: "call-1"}, nil)
	d.statistics.On("RecordStart", "consultant-1", domain.UserRoleConsultant, int64(42), "call-1").Return()

	call, err := svc.StartCall(ctx, consultant, &StartCallInput{SessionID: int64Ptr(42)})

	require.NoError(t, err)
	assert.Equal(t, testURLs.ModeratorVideoURL, call.URLs.ModeratorVideoURL)
	d.rooms.AssertExpectations(t)
	d.statistics.AssertExpectations(t)
}

func TestStartCall_RoomCreationFailsAfterNotification(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()

	d.sessions.On("FindSessionOfCurrentConsultant", ctx, consultant, int64(42)).Return(inProgressSession(), nil)
	d.registry.On("Generate", ctx).Return("call-1", nil)
	d.urls.On("DeriveURLs", "call-1").Return(testURLs, nil)
	d.notifier.On("SendCallInvitation", ctx, mock.Anything, []string{"asker-9"}).Return(nil)
	d.rooms.On("CreateOneToOneRoom", ctx, int64(42), "call-1", testURLs.ModeratorVideoURL).
		Return(nil, apperrors.UpstreamError("room provider", errors.New("unreachable")))

	call, err := svc.StartCall(ctx, consultant, &StartCallInput{SessionID: int64Ptr(42)})

	assert.Nil(t, call)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamUnavailable))
	d.notifier.AssertExpectations(t)
	d.statistics.AssertNotCalled(t, "RecordStart", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	d.registry.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestStartCall_IdentifierSpaceExhausted(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()

	d.sessions.On("FindSessionOfCurrentConsultant", ctx, consultant, int64(42)).Return(inProgressSession(), nil)
	d.registry.On("Generate", ctx).Return("", callid.ErrIdentifierSpaceExhausted)

	_, err := svc.StartCall(ctx, consultant, &StartCallInput{SessionID: int64Ptr(42)})

	assert.ErrorIs(t, err, callid.ErrIdentifierSpaceExhausted)
	d.assertNoSideEffects(t)
}

func TestStartCall_ConcurrentCallsGetDistinctIdentifiers(t *testing.T) {
	d := &testDeps{
		urls:       new(MockURLGenerator),
		sessions:   new(MockSessionChatClient),
		rooms:      new(MockRoomManager),
		notifier:   new(MockNotifier),
		statistics: new(MockStatistics),
		messages:   new(MockMessageClient),
	}
	svc := NewService(Dependencies{
		Registry:   callid.NewMemoryRegistry(nil, nil),
		URLs:       d.urls,
		Sessions:   d.sessions,
		Rooms:      d.rooms,
		Notifier:   d.notifier,
		Statistics: d.statistics,
		Messages:   d.messages,
	})

	d.sessions.On("FindSessionOfCurrentConsultant", mock.Anything, consultant, int64(42)).Return(inProgressSession(), nil)
	d.urls.On("DeriveURLs", mock.Anything).Return(testURLs, nil)
	d.notifier.On("SendCallInvitation", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.rooms.On("CreateOneToOneRoom", mock.Anything, int64(42), mock.Anything, mock.Anything).Return(&domain.VideoRoom{}, nil)
	d.statistics.On("RecordStart", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	const workers = 32
	var mu sync.Mutex
	seen := make(map[string]struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			call, err := svc.StartCall(context.Background(), consultant, &StartCallInput{SessionID: int64Ptr(42)})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[call.CallID] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers)
}

func TestStopCall_UnknownRoom(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()

	d.rooms.On("FindByRoomID", ctx, "missing").Return(nil, apperrors.RoomNotFoundError("missing"))

	err := svc.StopCall(ctx, consultant, "missing")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRoomNotFound))
	assert.Equal(t, 404, apperrors.GetAppError(err).StatusCode)
	assert.Empty(t, d.sessions.Calls)
	assert.Empty(t, d.messages.Calls)
	assert.Empty(t, d.statistics.Calls)
	assert.Empty(t, d.registry.Calls)
	d.rooms.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything)
}

func TestStopCall_Group(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()
	order := &callLog{}
	room := &domain.VideoRoom{GroupChatID: int64Ptr(7), RoomID: "call-1"}

	d.rooms.On("FindByRoomID", ctx, "call-1").Return(room, nil)
	d.sessions.On("FindChatByID", ctx, consultant, int64(7)).
		Run(func(mock.Arguments) { order.add("chat") }).Return(&domain.ChatInfo{ID: 7, GroupID: "g1"}, nil)
	d.rooms.On("CloseRoom", ctx, room).Run(func(mock.Arguments) { order.add("close") }).Return(nil)
	d.messages.On("PostMessage", ctx, consultant, "g1", StoppedMessage, room).
		Run(func(mock.Arguments) { order.add("message") }).Return(nil)
	d.registry.On("Release", ctx, "call-1").Return(nil)
	d.statistics.On("RecordStop", "consultant-1", domain.UserRoleConsultant, "call-1").
		Run(func(mock.Arguments) { order.add("statistics") }).Return()

	err := svc.StopCall(ctx, consultant, "call-1")

	require.NoError(t, err)
	assert.Equal(t, []string{"chat", "close", "message", "statistics"}, order.list())
	d.rooms.AssertExpectations(t)
	d.messages.AssertExpectations(t)
	d.statistics.AssertExpectations(t)
	d.registry.AssertExpectations(t)
}

// One-to-one rooms are not closed on stop; only the stop event is recorded.
func TestStopCall_OneToOne_DoesNotCloseRoom(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()
	room := &domain.VideoRoom{SessionID: int64Ptr(42), RoomID: "call-1"}

	d.rooms.On("FindByRoomID", ctx, "call-1").Return(room, nil)
	d.statistics.On("RecordStop", "consultant-1", domain.UserRoleConsultant, "call-1").Return()

	err := svc.StopCall(ctx, consultant, "call-1")

	require.NoError(t, err)
	d.statistics.AssertExpectations(t)
	d.rooms.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything)
	assert.Empty(t, d.sessions.Calls)
	assert.Empty(t, d.messages.Calls)
	assert.Empty(t, d.registry.Calls)
}

func TestStopCall_Group_ChatLookupFails(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()
	room := &domain.VideoRoom{GroupChatID: int64Ptr(7), RoomID: "call-1"}

	d.rooms.On("FindByRoomID", ctx, "call-1").Return(room, nil)
	d.sessions.On("FindChatByID", ctx, consultant, int64(7)).Return(nil, apperrors.UpstreamError("user service", errors.New("down")))

	err := svc.StopCall(ctx, consultant, "call-1")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamUnavailable))
	d.rooms.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything)
	assert.Empty(t, d.statistics.Calls)
}

func TestStopCall_Group_ReleaseFailureIsLogged(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()
	room := &domain.VideoRoom{GroupChatID: int64Ptr(7), RoomID: "call-1"}

	d.rooms.On("FindByRoomID", ctx, "call-1").Return(room, nil)
	d.sessions.On("FindChatByID", ctx, consultant, int64(7)).Return(&domain.ChatInfo{GroupID: "g1"}, nil)
	d.rooms.On("CloseRoom", ctx, room).Return(nil)
	d.messages.On("PostMessage", ctx, consultant, "g1", StoppedMessage, room).Return(nil)
	d.registry.On("Release", ctx, "call-1").Return(errors.New("redis down"))
	d.statistics.On("RecordStop", "consultant-1", domain.UserRoleConsultant, "call-1").Return()

	assert.NoError(t, svc.StopCall(ctx, consultant, "call-1"))
	d.statistics.AssertExpectations(t)
}

func TestStopCallByProvider(t *testing.T) {
	t.Run("unknown room is acknowledged", func(t *testing.T) {
		svc, d := newTestService()
		ctx := context.Background()
		d.rooms.On("FindByRoomID", ctx, "gone").Return(nil, apperrors.RoomNotFoundError("gone"))

		assert.NoError(t, svc.StopCallByProvider(ctx, "gone"))
		assert.Empty(t, d.statistics.Calls)
	})

	t.Run("closed room is ignored", func(t *testing.T) {
		svc, d := newTestService()
		ctx := context.Background()
		closedAt := time.Now()
		d.rooms.On("FindByRoomID", ctx, "call-1").Return(&domain.VideoRoom{GroupChatID: int64Ptr(7), RoomID: "call-1", ClosedAt: &closedAt}, nil)

		assert.NoError(t, svc.StopCallByProvider(ctx, "call-1"))
		assert.Empty(t, d.statistics.Calls)
		d.rooms.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything)
	})

	t.Run("open group room is stopped by the system", func(t *testing.T) {
		svc, d := newTestService()
		ctx := context.Background()
		room := &domain.VideoRoom{GroupChatID: int64Ptr(7), RoomID: "call-1"}
		system := domain.SystemCaller()

		d.rooms.On("FindByRoomID", ctx, "call-1").Return(room, nil)
		d.sessions.On("FindChatByID", ctx, system, int64(7)).Return(&domain.ChatInfo{GroupID: "g1"}, nil)
		d.rooms.On("CloseRoom", ctx, room).Return(nil)
		d.messages.On("PostMessage", ctx, system, "g1", StoppedMessage, room).Return(nil)
		d.registry.On("Release", ctx, "call-1").Return(nil)
		d.statistics.On("RecordStop", "system", domain.UserRoleConsultant, "call-1").Return()

		require.NoError(t, svc.StopCallByProvider(ctx, "call-1"))
		d.rooms.AssertExpectations(t)
		d.statistics.AssertExpectations(t)
	})

	t.Run("one-to-one room is closed and reported once", func(t *testing.T) {
		svc, d := newTestService()
		ctx := context.Background()
		room := &domain.VideoRoom{SessionID: int64Ptr(42), RoomID: "call-1"}

		d.rooms.On("FindByRoomID", ctx, "call-1").Return(room, nil)
		d.rooms.On("CloseRoom", ctx, room).Run(func(args mock.Arguments) {
			closedAt := time.Now()
			args.Get(1).(*domain.VideoRoom).ClosedAt = &closedAt
		}).Return(nil)
		d.statistics.On("RecordStop", "system", domain.UserRoleConsultant, "call-1").Return()

		require.NoError(t, svc.StopCallByProvider(ctx, "call-1"))
		require.NoError(t, svc.StopCallByProvider(ctx, "call-1"))

		assert.True(t, room.IsClosed())
		d.rooms.AssertNumberOfCalls(t, "FindByRoomID", 2)
		d.rooms.AssertNumberOfCalls(t, "CloseRoom", 1)
		d.statistics.AssertNumberOfCalls(t, "RecordStop", 1)
		assert.Empty(t, d.sessions.Calls)
		assert.Empty(t, d.messages.Calls)
	})

	t.Run("one-to-one close failure is not reported", func(t *testing.T) {
		svc, d := newTestService()
		ctx := context.Background()
		room := &domain.VideoRoom{SessionID: int64Ptr(42), RoomID: "call-1"}

		d.rooms.On("FindByRoomID", ctx, "call-1").Return(room, nil)
		d.rooms.On("CloseRoom", ctx, room).Return(apperrors.DatabaseError(errors.New("down")))

		err := svc.StopCallByProvider(ctx, "call-1")

		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabase))
		assert.Empty(t, d.statistics.Calls)
	})
}

func TestRejectCall(t *testing.T) {
	svc, d := newTestService()
	ctx := context.Background()
	asker := &domain.Caller{UserID: "asker-9", Username: "ratsuchende", AccessToken: "t"}

	d.messages.On("PostVideoCallRejected", ctx, asker, "g1", "berater", "rc-consultant").Return(nil)

	err := svc.RejectCall(ctx, asker, &RejectCallInput{
		RCGroupID:         "g1",
		InitiatorUsername: "berater",
		InitiatorRCUserID: "rc-consultant",
	})

	require.NoError(t, err)
	d.messages.AssertExpectations(t)
	assert.Empty(t, d.rooms.Calls)
	assert.Empty(t, d.statistics.Calls)
}

func TestRejectCall_MissingFields(t *testing.T) {
	svc, d := newTestService()

	err := svc.RejectCall(context.Background(), consultant, &RejectCallInput{RCGroupID: "g1"})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))
	assert.Empty(t, d.messages.Calls)
}
