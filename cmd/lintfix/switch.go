package main

import (
	"fmt"
	"os"
	"strings"
)

// autoSwitch is the value of an auto|on|off flag such as --color or --ui.
type autoSwitch uint8

const (
	switchAuto autoSwitch = iota
	switchOn
	switchOff
)

// parseAutoSwitch reads the value of --<flag>.
func parseAutoSwitch(flag, value string) (autoSwitch, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return switchAuto, nil
	case "on", "always":
		return switchOn, nil
	case "off", "never":
		return switchOff, nil
	default:
		return switchAuto, fmt.Errorf("--%s: unknown value %q, want auto, on or off", flag, value)
	}
}

// enabled resolves auto against whether the output is an interactive terminal.
func (s autoSwitch) enabled(interactive bool) bool {
	switch s {
	case switchOn:
		return true
	case switchOff:
		return false
	default:
		return interactive
	}
}

// interactiveStdout reports whether stdout can take colors and redraws.
func interactiveStdout() bool {
	return isTerminal(os.Stdout) && os.Getenv("TERM") != "dumb"
}
