package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"whispra-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserConnector is a mock implementation of UserConnector
type MockUserConnector struct {
	mock.Mock
}

func (m *MockUserConnector) Connect(ctx context.Context, username, chatID string) (*models.User, error) {
	args := m.Called(ctx, username, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type reply struct {
	ChatID int64
	Text   string
}

// recordingReplier keeps every reply and can fail the first N calls
type recordingReplier struct {
	mu      sync.Mutex
	replies []reply
	failN   int
}

func (r *recordingReplier) Reply(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failN > 0 {
		r.failN--
		return errors.New("telegram unavailable")
	}
	r.replies = append(r.replies, reply{ChatID: chatID, Text: text})
	return nil
}

func (r *recordingReplier) all() []reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reply(nil), r.replies...)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
	}{
		{"/start", CommandStart},
		{"  /start  ", CommandStart},
		{"/START", CommandStart},
		{"/help", CommandHelp},
		{"/link", CommandLink},
		{"/link@whispra_bot", CommandLink},
		{"/start ref-code", CommandStart},
		{"/settings", CommandUnknown},
		{"/", CommandUnknown},
		{"hello", CommandNone},
		{"", CommandNone},
		{"link", CommandNone},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCommand(tt.text))
		})
	}
}

func TestEvent_Identifier(t *testing.T) {
	assert.Equal(t, "Alice", Event{ChatID: 1001, Username: "Alice"}.Identifier())
	assert.Equal(t, "user1001", Event{ChatID: 1001}.Identifier())
	assert.Equal(t, "user-1001", Event{ChatID: -1001}.Identifier())
}

func TestDispatcher_LinkFor(t *testing.T) {
	d := NewDispatcher(nil, nil, "https://whispra.example/")
	assert.Equal(t, "https://whispra.example/alice_w", d.LinkFor("Alice_W"))
}

func TestDispatcher_StartAndLink(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		contains string
	}{
		{name: "start", text: "/start", contains: "Welcome to Whispra!"},
		{name: "link", text: "/link", contains: "Your message link:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserConnector)
			users.On("Connect", mock.Anything, "Alice", "1001").
				Return(&models.User{Username: "Alice", ChatID: "1001"}, nil).Once()
			replier := &recordingReplier{}

			d := NewDispatcher(users, replier, "https://whispra.example")
			err := d.Handle(context.Background(), Event{ChatID: 1001, Username: "Alice", Text: tt.text})
			require.NoError(t, err)

			replies := replier.all()
			require.Len(t, replies, 1)
			assert.Equal(t, int64(1001), replies[0].ChatID)
			assert.Contains(t, replies[0].Text, tt.contains)
			assert.Contains(t, replies[0].Text, "https://whispra.example/alice")
			users.AssertExpectations(t)
		})
	}
}

func TestDispatcher_StartWithoutHandle(t *testing.T) {
	users := new(MockUserConnector)
	users.On("Connect", mock.Anything, "user1001", "1001").Return(&models.User{}, nil)
	replier := &recordingReplier{}

	d := NewDispatcher(users, replier, "https://whispra.example")
	require.NoError(t, d.Handle(context.Background(), Event{ChatID: 1001, Text: "/start"}))

	replies := replier.all()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "https://whispra.example/user1001")
}

func TestDispatcher_HelpDoesNotWrite(t *testing.T) {
	users := new(MockUserConnector)
	replier := &recordingReplier{}

	d := NewDispatcher(users, replier, "https://whispra.example")
	require.NoError(t, d.Handle(context.Background(), Event{ChatID: 1001, Username: "alice", Text: "/help"}))

	replies := replier.all()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "/start")
	assert.Contains(t, replies[0].Text, "/link")
	assert.Contains(t, replies[0].Text, "https://whispra.example/alice")
	users.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_UnknownAndPlainText(t *testing.T) {
	users := new(MockUserConnector)
	replier := &recordingReplier{}
	d := NewDispatcher(users, replier, "https://whispra.example")

	require.NoError(t, d.Handle(context.Background(), Event{ChatID: 1001, Text: "just chatting"}))
	assert.Empty(t, replier.all())

	require.NoError(t, d.Handle(context.Background(), Event{ChatID: 1001, Text: "/whatever"}))
	replies := replier.all()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0].Text, "/help")
	users.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcher_Apology(t *testing.T) {
	t.Run("connect fails", func(t *testing.T) {
		users := new(MockUserConnector)
		users.On("Connect", mock.Anything, "alice", "1001").Return(nil, errors.New("database unavailable"))
		replier := &recordingReplier{}

		d := NewDispatcher(users, replier, "https://whispra.example")
		err := d.Handle(context.Background(), Event{ChatID: 1001, Username: "alice", Text: "/start"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "/start")

		replies := replier.all()
		require.Len(t, replies, 1)
		assert.Equal(t, ApologyReply, replies[0].Text)
	})

	t.Run("reply fails once", func(t *testing.T) {
		users := new(MockUserConnector)
		replier := &recordingReplier{failN: 1}

		d := NewDispatcher(users, replier, "https://whispra.example")
		err := d.Handle(context.Background(), Event{ChatID: 1001, Username: "alice", Text: "/help"})
		require.Error(t, err)

		replies := replier.all()
		require.Len(t, replies, 1)
		assert.Equal(t, ApologyReply, replies[0].Text)
	})
}
