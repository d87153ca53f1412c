// Package commands describes slash commands shared by the registry and routers.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are hidden from the menu and guarded by the admin check.
	AdminOnly bool
	Hidden    bool
	// Aliases route to the same handler, e.g. a second language; the leading
	// slash is optional.
	Aliases []string
}

// Visible reports whether the command belongs in the public command menu.
func (c Command) Visible() bool { return !c.Hidden && !c.AdminOnly }

// Names returns name followed by the aliases, all with a leading slash and
// without duplicates.
func (c Command) Names(name string) []string {
	names := make([]string, 0, 1+len(c.Aliases))
	seen := make(map[string]struct{}, cap(names))
	for _, n := range append([]string{name}, c.Aliases...) {
		n = Slash(n)
		if n == "/" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	return names
}

// Slash trims n and makes sure it starts with "/".
func Slash(n string) string {
	n = strings.TrimSpace(n)
	if strings.HasPrefix(n, "/") {
		return n
	}
	return "/" + n
}
