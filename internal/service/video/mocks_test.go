package video

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
)

// callLog records the order collaborators were invoked in
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// MockRegistry is a mock implementation of IdentifierRegistry
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Generate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockRegistry) Release(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockURLGenerator is a mock implementation of URLGenerator
type MockURLGenerator struct {
	mock.Mock
}

func (m *MockURLGenerator) DeriveURLs(callID string) (domain.CallURLs, error) {
	args := m.Called(callID)
	return args.Get(0).(domain.CallURLs), args.Error(1)
}

// MockSessionChatClient is a mock implementation of SessionChatClient
type MockSessionChatClient struct {
	mock.Mock
}

func (m *MockSessionChatClient) FindSessionOfCurrentConsultant(ctx context.Context, caller *domain.Caller, sessionID int64) (*domain.ConsultantSession, error) {
	args := m.Called(ctx, caller, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConsultantSession), args.Error(1)
}

func (m *MockSessionChatClient) AssertCanModerateChat(ctx context.Context, caller *domain.Caller, chatID int64) error {
	args := m.Called(ctx, caller, chatID)
	return args.Error(0)
}

func (m *MockSessionChatClient) FindChatByID(ctx context.Context, caller *domain.Caller, chatID int64) (*domain.ChatInfo, error) {
	args := m.Called(ctx, caller, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatInfo), args.Error(1)
}

func (m *MockSessionChatClient) GetChatMemberIDs(ctx context.Context, caller *domain.Caller, chatID int64) ([]string, error) {
	args := m.Called(ctx, caller, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockRoomManager is a mock implementation of RoomManager
type MockRoomManager struct {
	mock.Mock
}

func (m *MockRoomManager) CreateOneToOneRoom(ctx context.Context, sessionID int64, callID, moderatorURL string) (*domain.VideoRoom, error) {
	args := m.Called(ctx, sessionID, callID, moderatorURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VideoRoom), args.Error(1)
}

func (m *MockRoomManager) CreateGroupRoom(ctx context.Context, chatID int64, callID, moderatorURL string) (*domain.VideoRoom, error) {
	args := m.Called(ctx, chatID, callID, moderatorURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VideoRoom), args.Error(1)
}

func (m *MockRoomManager) FindByRoomID(ctx context.Context, roomID string) (*domain.VideoRoom, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VideoRoom), args.Error(1)
}

func (m *MockRoomManager) CloseRoom(ctx context.Context, room *domain.VideoRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendCallInvitation(ctx context.Context, msg *domain.LiveEventMessage, recipientIDs []string) error {
	args := m.Called(ctx, msg, recipientIDs)
	return args.Error(0)
}

// MockStatistics is a mock implementation of StatisticsRecorder
type MockStatistics struct {
	mock.Mock
}

func (m *MockStatistics) RecordStart(actorID string, role domain.UserRole, sessionID int64, callID string) {
	m.Called(actorID, role, sessionID, callID)
}

func (m *MockStatistics) RecordStop(actorID string, role domain.UserRole, roomID string) {
	m.Called(actorID, role, roomID)
}

// MockMessageClient is a mock implementation of MessageClient
type MockMessageClient struct {
	mock.Mock
}

func (m *MockMessageClient) PostVideoCallStarted(ctx context.Context, caller *domain.Caller, groupID, username, roomID, participantURL string) error {
	args := m.Called(ctx, caller, groupID, username, roomID, participantURL)
	return args.Error(0)
}

func (m *MockMessageClient) PostVideoCallRejected(ctx context.Context, caller *domain.Caller, groupID, initiatorUsername, initiatorRCUserID string) error {
	args := m.Called(ctx, caller, groupID, initiatorUsername, initiatorRCUserID)
	return args.Error(0)
}

func (m *MockMessageClient) PostMessage(ctx context.Context, caller *domain.Caller, groupID, text string, room *domain.VideoRoom) error {
	args := m.Called(ctx, caller, groupID, text, room)
	return args.Error(0)
}

type testDeps struct {
	registry   *MockRegistry
	urls       *MockURLGenerator
	sessions   *MockSessionChatClient
	rooms      *MockRoomManager
	notifier   *MockNotifier
	statistics *MockStatistics
	messages   *MockMessageClient
}

func newTestService() (*Service, *testDeps) {
	d := &testDeps{
		registry:   new(MockRegistry),
		urls:       new(MockURLGenerator),
		sessions:   new(MockSessionChatClient),
		rooms:      new(MockRoomManager),
		notifier:   new(MockNotifier),
		statistics: new(MockStatistics),
		messages:   new(MockMessageClient),
	}
	svc := NewService(Dependencies{
		Registry:   d.registry,
		URLs:       d.urls,
		Sessions:   d.sessions,
		Rooms:      d.rooms,
		Notifier:   d.notifier,
		Statistics: d.statistics,
		Messages:   d.messages,
	})
	return svc, d
}

func (d *testDeps) assertNoSideEffects(t mock.TestingT) {
	d.notifier.AssertNotCalled(t, "SendCallInvitation", mock.Anything, mock.Anything, mock.Anything)
	d.rooms.AssertNotCalled(t, "CreateOneToOneRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	d.rooms.AssertNotCalled(t, "CreateGroupRoom", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	d.statistics.AssertNotCalled(t, "RecordStart", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	d.messages.AssertNotCalled(t, "PostVideoCallStarted", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
