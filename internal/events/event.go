// Package events turns raw Telegram updates into a closed set of typed events
package events

// BotIdentity is the bot's own account, fetched once at startup
type BotIdentity struct {
	ID       int64
	Username string
}

type Kind string

const (
	KindMigrated   Kind = "migrated"
	KindText       Kind = "text"
	KindPoll       Kind = "poll"
	KindBotAdded   Kind = "bot_added"
	KindBotRemoved Kind = "bot_removed"
	KindIgnored    Kind = "ignored"
)

// Event is one of Migrated, TextMessage, PollUpdate, BotAdded, BotRemoved or Ignored
type Event interface {
	Kind() Kind
	event()
}

// Migrated: a group was upgraded to a supergroup
type Migrated struct {
	ChatID    int64
	NewChatID int64
}

type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

type TextMessage struct {
	ChatID    int64
	ChatType  ChatType
	MessageID int
	FromID    int64
	Text      string
	// ReplyToMessageID is 0 when the message is not a reply
	ReplyToMessageID int
}

func (m TextMessage) IsPrivate() bool { return m.ChatType == ChatPrivate }

func (m TextMessage) IsGroup() bool {
	return m.ChatType == ChatGroup || m.ChatType == ChatSupergroup
}

// PollUpdate carries the current per-option voter counts
type PollUpdate struct {
	PollID   string
	IsClosed bool
	Options  map[string]int
}

func (p PollUpdate) Count(option string) int { return p.Options[option] }

type BotAdded struct {
	ChatID int64
}

type BotRemoved struct {
	ChatID int64
}

type Ignored struct{}

func (Migrated) Kind() Kind    { return KindMigrated }
func (TextMessage) Kind() Kind { return KindText }
func (PollUpdate) Kind() Kind  { return KindPoll }
func (BotAdded) Kind() Kind    { return KindBotAdded }
func (BotRemoved) Kind() Kind  { return KindBotRemoved }
func (Ignored) Kind() Kind     { return KindIgnored }

func (Migrated) event()    {}
func (TextMessage) event() {}
func (PollUpdate) event()  {}
func (BotAdded) event()    {}
func (BotRemoved) event()  {}
func (Ignored) event()     {}
