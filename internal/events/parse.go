package events

import (
	"github.com/mymmrac/telego"
)

// Parse classifies update. The checks run in a fixed order: migration, text,
// bot added, bot removed, poll. Anything else is Ignored.
func Parse(update telego.Update, self BotIdentity) Event {
	if m := update.Message; m != nil {
		if m.MigrateToChatID != 0 {
			return Migrated{ChatID: m.Chat.ID, NewChatID: m.MigrateToChatID}
		}
		if m.Text != "" {
			return textMessage(m)
		}
		if m.GroupChatCreated || joinedChat(m.NewChatMembers, self.ID) {
			return BotAdded{ChatID: m.Chat.ID}
		}
	}

	if u := update.MyChatMember; u != nil && u.NewChatMember != nil {
		if u.NewChatMember.MemberUser().ID == self.ID {
			switch u.NewChatMember.MemberStatus() {
			case telego.MemberStatusLeft, telego.MemberStatusBanned:
				return BotRemoved{ChatID: u.Chat.ID}
			}
		}
	}

	if p := update.Poll; p != nil {
		options := make(map[string]int, len(p.Options))
		for _, o := range p.Options {
			options[o.Text] = o.VoterCount
		}
		return PollUpdate{PollID: p.ID, IsClosed: p.IsClosed, Options: options}
	}

	return Ignored{}
}

func textMessage(m *telego.Message) TextMessage {
	ev := TextMessage{
		ChatID:    m.Chat.ID,
		ChatType:  ChatType(m.Chat.Type),
		MessageID: m.MessageID,
		Text:      m.Text,
	}
	if m.From != nil {
		ev.FromID = m.From.ID
	}
	if m.ReplyToMessage != nil {
		ev.ReplyToMessageID = m.ReplyToMessage.MessageID
	}
	return ev
}

func joinedChat(members []telego.User, botID int64) bool {
	for _, u := range members {
		if u.ID == botID {
			return true
		}
	}
	return false
}
