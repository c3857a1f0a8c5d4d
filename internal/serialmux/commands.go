package serialmux

import (
	"errors"
	"fmt"
	"strings"
)

// Command is a single-character instruction understood by the robot
// firmware.
type Command string

const (
	CmdForward    Command = "w"
	CmdBackward   Command = "s"
	CmdLeft       Command = "a"
	CmdLeftShort  Command = "z"
	CmdRight      Command = "d"
	CmdRightShort Command = "c"
	CmdScan       Command = "m"
	CmdJingle     Command = "j"
	CmdIgnore     Command = "l"
)

var ErrUnknownCommand = errors.New("unknown robot command")

// CommandInfo describes a command for UIs and the debug page.
type CommandInfo struct {
	Command     Command `json:"command"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

var commandTable = []CommandInfo{
	{CmdForward, "forward", "drive forward"},
	{CmdBackward, "backward", "drive backward"},
	{CmdLeft, "left", "turn left"},
	{CmdLeftShort, "left-short", "turn left a few degrees"},
	{CmdRight, "right", "turn right"},
	{CmdRightShort, "right-short", "turn right a few degrees"},
	{CmdScan, "scan", "sweep the sensor from 0 to 180 degrees"},
	{CmdJingle, "jingle", "play the jingle"},
	{CmdIgnore, "ignore", "ignore the bump and cliff stop"},
}

// Commands lists every known command.
func Commands() []CommandInfo {
	return append([]CommandInfo(nil), commandTable...)
}

// ParseCommand accepts either the command character or its name.
func ParseCommand(s string) (Command, error) {
	s = strings.TrimSpace(s)
	for _, c := range commandTable {
		if s == string(c.Command) || strings.EqualFold(s, c.Name) {
			return c.Command, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}
