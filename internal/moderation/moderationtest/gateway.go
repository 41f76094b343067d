package moderationtest

import (
	"context"
	"fmt"
	"sync"

	"tg-modbot/internal/moderation"
)

// CreatedPoll is one CreatePoll call
type CreatedPoll struct {
	ChatID    int64
	Question  string
	Options   []string
	ReplyTo   int
	PollID    string
	MessageID int
}

// Message is a message the gateway sent, with its latest text
type Message struct {
	ChatID  int64
	ID      int
	Text    string
	ReplyTo int
	Edits   int
}

type DeletedMessage struct {
	ChatID    int64
	MessageID int
}

// FakeGateway implements moderation.Gateway and records every call
type FakeGateway struct {
	mu sync.Mutex

	members map[int64]int
	admins  map[int64]map[int64]bool
	tallies map[int]moderation.Tally

	nextID   int
	polls    []CreatedPoll
	closed   []int
	messages []*Message
	deleted  []DeletedMessage

	// Members is the member count reported for chats without an explicit one
	Members   int
	CreateErr error
	CloseErr  error
	DeleteErr error
	SendErr   error
	// OnClose runs at the start of every ClosePoll, before the call is recorded
	OnClose func(pollMessageID int)
}

var _ moderation.Gateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		members: make(map[int64]int),
		admins:  make(map[int64]map[int64]bool),
		tallies: make(map[int]moderation.Tally),
		nextID:  1000,
		Members: 10,
	}
}

func (g *FakeGateway) SetMembers(chatID int64, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[chatID] = n
}

func (g *FakeGateway) SetAdmin(chatID, userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.admins[chatID] == nil {
		g.admins[chatID] = make(map[int64]bool)
	}
	g.admins[chatID][userID] = true
}

// SetTally sets the result ClosePoll returns for a poll message
func (g *FakeGateway) SetTally(pollMessageID int, t moderation.Tally) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tallies[pollMessageID] = t
}

func (g *FakeGateway) CreatePoll(_ context.Context, chatID int64, question string, options []string, replyTo int) (string, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return "", 0, g.CreateErr
	}
	g.nextID++
	p := CreatedPoll{
		ChatID:    chatID,
		Question:  question,
		Options:   append([]string(nil), options...),
		ReplyTo:   replyTo,
		PollID:    fmt.Sprintf("poll-%d", g.nextID),
		MessageID: g.nextID,
	}
	g.polls = append(g.polls, p)
	return p.PollID, p.MessageID, nil
}

func (g *FakeGateway) ClosePoll(_ context.Context, _ int64, pollMessageID int) (moderation.Tally, error) {
	if g.OnClose != nil {
		g.OnClose(pollMessageID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = append(g.closed, pollMessageID)
	if g.CloseErr != nil {
		return nil, g.CloseErr
	}
	t := moderation.Tally{moderation.OptionDelete: 0, moderation.OptionKeep: 0}
	for k, v := range g.tallies[pollMessageID] {
		t[k] = v
	}
	return t, nil
}

func (g *FakeGateway) SendMessage(_ context.Context, chatID int64, text string, replyTo int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SendErr != nil {
		return 0, g.SendErr
	}
	g.nextID++
	g.messages = append(g.messages, &Message{ChatID: chatID, ID: g.nextID, Text: text, ReplyTo: replyTo})
	return g.nextID, nil
}

func (g *FakeGateway) EditMessage(_ context.Context, chatID int64, messageID int, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.messages {
		if m.ChatID == chatID && m.ID == messageID {
			m.Text = text
			m.Edits++
			return nil
		}
	}
	return &moderation.GatewayError{Op: "editMessageText", Kind: moderation.GatewayMessageNotFound}
}

func (g *FakeGateway) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.DeleteErr != nil {
		return g.DeleteErr
	}
	g.deleted = append(g.deleted, DeletedMessage{ChatID: chatID, MessageID: messageID})
	return nil
}

func (g *FakeGateway) GetChatMemberCount(_ context.Context, chatID int64) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.members[chatID]; ok {
		return n, nil
	}
	return g.Members, nil
}

func (g *FakeGateway) IsAdmin(_ context.Context, chatID, userID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.admins[chatID][userID], nil
}

func (g *FakeGateway) Polls() []CreatedPoll {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]CreatedPoll(nil), g.polls...)
}

// ClosedPolls lists the poll message ids passed to ClosePoll
func (g *FakeGateway) ClosedPolls() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int(nil), g.closed...)
}

func (g *FakeGateway) Deleted() []DeletedMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]DeletedMessage(nil), g.deleted...)
}

// Messages returns copies of the messages sent to chatID, oldest first
func (g *FakeGateway) Messages(chatID int64) []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Message
	for _, m := range g.messages {
		if m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	return out
}

// Texts returns the current text of each message sent to chatID
func (g *FakeGateway) Texts(chatID int64) []string {
	var out []string
	for _, m := range g.Messages(chatID) {
		out = append(out, m.Text)
	}
	return out
}
