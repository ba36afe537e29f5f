package models

import "strings"

// CommandType enumerates the chat commands understood over WhatsApp.
type CommandType string

const (
	CommandStock   CommandType = "stock"
	CommandConsume CommandType = "consume"
	CommandRestock CommandType = "restock"
	CommandHelp    CommandType = "help"
	CommandUnknown CommandType = "unknown"
)

// Command represents a parsed chat instruction.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// IsCommandText reports whether a message already uses the slash syntax.
func IsCommandText(message string) bool {
	return strings.HasPrefix(strings.TrimSpace(message), "/")
}

// ParseCommand derives a Command from free-form text such as "/consume 1700000000000 50".
func ParseCommand(message string) Command {
	normalized := strings.TrimSpace(strings.ToLower(message))
	cmd := Command{Type: CommandUnknown, Raw: message}

	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return cmd
	}

	switch head := CommandType(strings.TrimPrefix(tokens[0], "/")); head {
	case CommandStock, CommandConsume, CommandRestock, CommandHelp:
		cmd.Type = head
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
