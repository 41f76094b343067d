package events

import (
	"strconv"
	"strings"
)

const (
	CmdStart        = "start"
	CmdHelp         = "help"
	CmdSupport      = "support"
	CmdDelete       = "delete"
	CmdGetConfig    = "getconfig"
	CmdSetThreshold = "setthreshold"
	CmdSetExpiry    = "setexpiry"
)

var knownCommands = map[string]bool{
	CmdStart:        true,
	CmdHelp:         true,
	CmdSupport:      true,
	CmdDelete:       true,
	CmdGetConfig:    true,
	CmdSetThreshold: true,
	CmdSetExpiry:    true,
}

// Command is a parsed "/<name>@<bot> args..." message
type Command struct {
	Name    string
	Mention string
	Args    []string
}

// ParseCommand accepts text only when it names a known command. When
// requireMention is set the command must be addressed to username; a mention
// of another bot is always rejected.
func ParseCommand(text, username string, requireMention bool) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}

	name, mention, hasMention := strings.Cut(fields[0][1:], "@")
	if !knownCommands[name] {
		return Command{}, false
	}
	if hasMention && !strings.EqualFold(mention, username) {
		return Command{}, false
	}
	if requireMention && !hasMention {
		return Command{}, false
	}

	return Command{Name: name, Mention: mention, Args: fields[1:]}, true
}

// IntArg returns the single integer argument. Anything else is rejected.
func (c Command) IntArg() (int, bool) {
	if len(c.Args) != 1 {
		return 0, false
	}
	n, err := strconv.Atoi(c.Args[0])
	if err != nil {
		return 0, false
	}
	return n, true
}
