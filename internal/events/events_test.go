package events

import (
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var self = BotIdentity{ID: 777, Username: "modbot"}

func groupMessage(text string) *telego.Message {
	return &telego.Message{
		MessageID: 10,
		Chat:      telego.Chat{ID: -100, Type: telego.ChatTypeSupergroup},
		From:      &telego.User{ID: 5},
		Text:      text,
	}
}

func TestParse(t *testing.T) {
	reply := groupMessage("/delete@modbot")
	reply.ReplyToMessage = &telego.Message{MessageID: 9}

	tests := []struct {
		name   string
		update telego.Update
		want   Event
	}{
		{
			name: "migration wins over text",
			update: telego.Update{Message: &telego.Message{
				Chat:            telego.Chat{ID: -1, Type: telego.ChatTypeGroup},
				MigrateToChatID: -1001,
				Text:            "ignored",
			}},
			want: Migrated{ChatID: -1, NewChatID: -1001},
		},
		{
			name:   "group reply",
			update: telego.Update{Message: reply},
			want: TextMessage{ChatID: -100, ChatType: ChatSupergroup, MessageID: 10, FromID: 5,
				Text: "/delete@modbot", ReplyToMessageID: 9},
		},
		{
			name: "private text",
			update: telego.Update{Message: &telego.Message{
				MessageID: 3,
				Chat:      telego.Chat{ID: 5, Type: telego.ChatTypePrivate},
				From:      &telego.User{ID: 5},
				Text:      "/start",
			}},
			want: TextMessage{ChatID: 5, ChatType: ChatPrivate, MessageID: 3, FromID: 5, Text: "/start"},
		},
		{
			name: "bot added",
			update: telego.Update{Message: &telego.Message{
				Chat:           telego.Chat{ID: -1, Type: telego.ChatTypeGroup},
				NewChatMembers: []telego.User{{ID: 1}, {ID: 777}},
			}},
			want: BotAdded{ChatID: -1},
		},
		{
			name: "someone else added",
			update: telego.Update{Message: &telego.Message{
				Chat:           telego.Chat{ID: -1, Type: telego.ChatTypeGroup},
				NewChatMembers: []telego.User{{ID: 1}},
			}},
			want: Ignored{},
		},
		{
			name: "group created",
			update: telego.Update{Message: &telego.Message{
				Chat:             telego.Chat{ID: -2, Type: telego.ChatTypeGroup},
				GroupChatCreated: true,
			}},
			want: BotAdded{ChatID: -2},
		},
		{
			name: "bot left",
			update: telego.Update{MyChatMember: &telego.ChatMemberUpdated{
				Chat:          telego.Chat{ID: -3},
				NewChatMember: &telego.ChatMemberLeft{Status: telego.MemberStatusLeft, User: telego.User{ID: 777}},
			}},
			want: BotRemoved{ChatID: -3},
		},
		{
			name: "bot kicked",
			update: telego.Update{MyChatMember: &telego.ChatMemberUpdated{
				Chat:          telego.Chat{ID: -3},
				NewChatMember: &telego.ChatMemberBanned{Status: telego.MemberStatusBanned, User: telego.User{ID: 777}},
			}},
			want: BotRemoved{ChatID: -3},
		},
		{
			name: "bot promoted",
			update: telego.Update{MyChatMember: &telego.ChatMemberUpdated{
				Chat:          telego.Chat{ID: -3},
				NewChatMember: &telego.ChatMemberAdministrator{Status: telego.MemberStatusAdministrator, User: telego.User{ID: 777}},
			}},
			want: Ignored{},
		},
		{
			name: "poll update",
			update: telego.Update{Poll: &telego.Poll{
				ID: "p1",
				Options: []telego.PollOption{
					{Text: "Delete", VoterCount: 3},
					{Text: "Don't Delete", VoterCount: 1},
				},
			}},
			want: PollUpdate{PollID: "p1", Options: map[string]int{"Delete": 3, "Don't Delete": 1}},
		},
		{
			name:   "empty",
			update: telego.Update{},
			want:   Ignored{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.update, self))
		})
	}
}

func TestPollUpdateCount(t *testing.T) {
	ev := Parse(telego.Update{Poll: &telego.Poll{ID: "p", IsClosed: true, Options: []telego.PollOption{{Text: "Delete", VoterCount: 2}}}}, self)
	p, ok := ev.(PollUpdate)
	require.True(t, ok)
	assert.True(t, p.IsClosed)
	assert.Equal(t, 2, p.Count("Delete"))
	assert.Equal(t, 0, p.Count("Don't Delete"))
	assert.Equal(t, KindPoll, p.Kind())
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text           string
		requireMention bool
		ok             bool
		name           string
		args           []string
	}{
		{text: "/delete@modbot", requireMention: true, ok: true, name: "delete"},
		{text: "  /setthreshold@modbot 4 ", requireMention: true, ok: true, name: "setthreshold", args: []string{"4"}},
		{text: "/delete@ModBot", requireMention: true, ok: true, name: "delete"},
		{text: "/delete", requireMention: true, ok: false},
		{text: "/delete@otherbot", requireMention: true, ok: false},
		{text: "/unknown@modbot", requireMention: true, ok: false},
		{text: "delete@modbot", requireMention: true, ok: false},
		{text: "", requireMention: true, ok: false},
		{text: "/start", requireMention: false, ok: true, name: "start"},
		{text: "/help@modbot", requireMention: false, ok: true, name: "help"},
		{text: "/help@otherbot", requireMention: false, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, ok := ParseCommand(tt.text, self.Username, tt.requireMention)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.name, cmd.Name)
			assert.Equal(t, len(tt.args), len(cmd.Args))
			for i := range tt.args {
				assert.Equal(t, tt.args[i], cmd.Args[i])
			}
		})
	}
}

func TestIntArg(t *testing.T) {
	n, ok := Command{Args: []string{"12"}}.IntArg()
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	n, ok = Command{Args: []string{"-3"}}.IntArg()
	assert.True(t, ok)
	assert.Equal(t, -3, n)

	for _, args := range [][]string{nil, {"a"}, {"1", "2"}, {"1.5"}} {
		_, ok := Command{Args: args}.IntArg()
		assert.False(t, ok, "%v", args)
	}
}
