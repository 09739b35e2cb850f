package tui

import "strings"

// Command is a parsed ":" prompt entry.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string without the leading ':'.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	switch cmd.Name {
	case "q", "quit", "exit":
		cmd.Name = "quit"
	case "n", "new", "to":
		cmd.Name = "new"
	case "rename":
		cmd.Name = "name"
	case "rm", "del":
		cmd.Name = "delete"
	case "h":
		cmd.Name = "help"
	}
	return cmd
}
