// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Theme represents the visual theme for prompts.
type Theme string

const (
	// ThemeDefault uses the base huh theme.
	ThemeDefault Theme = "default"
	// ThemeCharm uses the Charm theme.
	ThemeCharm Theme = "charm"
	// ThemeDracula uses the Dracula theme.
	ThemeDracula Theme = "dracula"
	// ThemeCatppuccin uses the Catppuccin theme.
	ThemeCatppuccin Theme = "catppuccin"
)

// Config holds common configuration for prompts.
type Config struct {
	Theme Theme
	// Accessible replaces the full-screen widgets with line-based prompts
	// that screen readers and non-terminal inputs can drive.
	Accessible bool
	Input      io.Reader
	Output     io.Writer
}

// DefaultConfig returns a configuration for the current process. Accessible
// mode is enabled when stdin or stdout is not a terminal or ACCESSIBLE is
// set, and prompts are then written to stderr so they stay visible when
// stdout is redirected.
func DefaultConfig() Config {
	accessible := !IsTerminal() || os.Getenv("ACCESSIBLE") != ""
	var out io.Writer = os.Stdout
	if accessible {
		out = os.Stderr
	}
	return Config{
		Theme:      ThemeDefault,
		Accessible: accessible,
		Input:      os.Stdin,
		Output:     out,
	}
}

// IsTerminal reports whether both stdin and stdout are terminals.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func huhTheme(t Theme) *huh.Theme {
	switch t {
	case ThemeCharm:
		return huh.ThemeCharm()
	case ThemeDracula:
		return huh.ThemeDracula()
	case ThemeCatppuccin:
		return huh.ThemeCatppuccin()
	default:
		return huh.ThemeBase()
	}
}

func (c Config) form(groups ...*huh.Group) *huh.Form {
	f := huh.NewForm(groups...).
		WithTheme(huhTheme(c.Theme)).
		WithAccessible(c.Accessible).
		WithShowHelp(!c.Accessible)
	if c.Input != nil {
		f = f.WithInput(c.Input)
	}
	if c.Output != nil {
		f = f.WithOutput(c.Output)
	}
	return f
}
