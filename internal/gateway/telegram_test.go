package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tg-modbot/internal/moderation"
)

type fakeBot struct {
	sentPoll    *telego.SendPollParams
	sentMessage *telego.SendMessageParams
	edited      *telego.EditMessageTextParams
	stopped     *telego.StopPollParams

	poll      *telego.Poll
	admins    []telego.ChatMember
	members   int
	deleteErr error
	stopErr   error
}

func (f *fakeBot) SendPoll(_ context.Context, p *telego.SendPollParams) (*telego.Message, error) {
	f.sentPoll = p
	return &telego.Message{MessageID: 55, Poll: &telego.Poll{ID: "poll-55"}}, nil
}

func (f *fakeBot) StopPoll(_ context.Context, p *telego.StopPollParams) (*telego.Poll, error) {
	f.stopped = p
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	return f.poll, nil
}

func (f *fakeBot) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.sentMessage = p
	return &telego.Message{MessageID: 56}, nil
}

func (f *fakeBot) EditMessageText(_ context.Context, p *telego.EditMessageTextParams) (*telego.Message, error) {
	f.edited = p
	return &telego.Message{MessageID: p.MessageID}, nil
}

func (f *fakeBot) DeleteMessage(context.Context, *telego.DeleteMessageParams) error {
	return f.deleteErr
}

func (f *fakeBot) GetChatMemberCount(context.Context, *telego.GetChatMemberCountParams) (*int, error) {
	n := f.members
	return &n, nil
}

func (f *fakeBot) GetChatAdministrators(context.Context, *telego.GetChatAdministratorsParams) ([]telego.ChatMember, error) {
	return f.admins, nil
}

func TestCreatePoll(t *testing.T) {
	bot := &fakeBot{}
	gw := &Telegram{bot: bot}

	pollID, msgID, err := gw.CreatePoll(context.Background(), -1, "delete?", []string{"Delete", "Don't Delete"}, 42)
	require.NoError(t, err)
	assert.Equal(t, "poll-55", pollID)
	assert.Equal(t, 55, msgID)

	require.NotNil(t, bot.sentPoll)
	assert.Equal(t, int64(-1), bot.sentPoll.ChatID.ID)
	assert.Equal(t, "delete?", bot.sentPoll.Question)
	require.Len(t, bot.sentPoll.Options, 2)
	assert.Equal(t, "Don't Delete", bot.sentPoll.Options[1].Text)
	require.NotNil(t, bot.sentPoll.ReplyParameters)
	assert.Equal(t, 42, bot.sentPoll.ReplyParameters.MessageID)
}

func TestClosePollTally(t *testing.T) {
	bot := &fakeBot{poll: &telego.Poll{Options: []telego.PollOption{
		{Text: "Delete", VoterCount: 4},
		{Text: "Don't Delete", VoterCount: 2},
	}}}
	gw := &Telegram{bot: bot}

	tally, err := gw.ClosePoll(context.Background(), -1, 55)
	require.NoError(t, err)
	assert.Equal(t, 4, tally.Deletes())
	assert.Equal(t, 2, tally[moderation.OptionKeep])
	assert.Equal(t, 55, bot.stopped.MessageID)
}

func TestClosePollAlreadyClosed(t *testing.T) {
	gw := &Telegram{bot: &fakeBot{stopErr: errors.New("telego: stopPoll: api: 400 \"Bad Request: poll has already been closed\"")}}

	_, err := gw.ClosePoll(context.Background(), -1, 55)
	assert.ErrorIs(t, err, moderation.ErrPollClosed)
}

func TestSendMessageReply(t *testing.T) {
	bot := &fakeBot{}
	gw := &Telegram{bot: bot}

	id, err := gw.SendMessage(context.Background(), -1, "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, 56, id)
	assert.Nil(t, bot.sentMessage.ReplyParameters)

	_, err = gw.SendMessage(context.Background(), -1, "hello", 9)
	require.NoError(t, err)
	require.NotNil(t, bot.sentMessage.ReplyParameters)
	assert.Equal(t, 9, bot.sentMessage.ReplyParameters.MessageID)
}

func TestIsAdmin(t *testing.T) {
	gw := &Telegram{bot: &fakeBot{admins: []telego.ChatMember{
		&telego.ChatMemberOwner{Status: telego.MemberStatusCreator, User: telego.User{ID: 1}},
		&telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator, User: telego.User{ID: 2}},
	}}}
	ctx := context.Background()

	for id, want := range map[int64]bool{1: true, 2: true, 3: false} {
		got, err := gw.IsAdmin(ctx, -1, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "user %d", id)
	}
}

func TestMemberCount(t *testing.T) {
	gw := &Telegram{bot: &fakeBot{members: 17}}
	n, err := gw.GetChatMemberCount(context.Background(), -1)
	require.NoError(t, err)
	assert.Equal(t, 17, n)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		kind moderation.GatewayKind
	}{
		{"Bad Request: message can't be deleted", moderation.GatewayCannotDelete},
		{"Bad Request: MESSAGE CAN'T BE DELETED for everyone", moderation.GatewayCannotDelete},
		{"Bad Request: poll has already been closed", moderation.GatewayPollClosed},
		{"Bad Request: message to delete not found", moderation.GatewayMessageNotFound},
		{"Bad Request: message to edit not found", moderation.GatewayMessageNotFound},
		{"Forbidden: bot was kicked from the group chat", moderation.GatewayOther},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			cause := errors.New(tt.msg)
			err := classify("op", cause)

			var ge *moderation.GatewayError
			require.True(t, errors.As(err, &ge))
			assert.Equal(t, tt.kind, ge.Kind)
			assert.Equal(t, tt.msg, err.Error())
			assert.ErrorIs(t, err, cause)
		})
	}
}

func TestDeleteMessageRefused(t *testing.T) {
	gw := &Telegram{bot: &fakeBot{deleteErr: errors.New("Bad Request: message can't be deleted")}}
	err := gw.DeleteMessage(context.Background(), -1, 1)
	assert.ErrorIs(t, err, moderation.ErrCannotDelete)
}
