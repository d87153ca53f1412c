package telegram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/m3rciful/leihbot/core/logger"
	"github.com/m3rciful/leihbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

const wireComponent = "tg.wire"

var (
	// ErrInvalidCommand is returned for a command without slash, handler or description.
	ErrInvalidCommand = errors.New("telegram: invalid command")
	// ErrDuplicateCommand is returned when a name or alias is already taken.
	ErrDuplicateCommand = errors.New("telegram: duplicate command")
)

// Registry holds bot commands. Every name and alias resolves to exactly one
// command.
type Registry struct {
	commands map[string]commands.Command
	// index maps each name and alias to its command's key.
	index map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
		index:    make(map[string]string),
	}
}

// RegisterCommand adds cmd under name, which must start with "/". A command
// whose name or alias clashes with an earlier one is rejected as a whole.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	err := r.register(name, cmd)
	if err != nil {
		logger.Warn(context.Background(), wireComponent, "register.command.skip",
			slog.String("name", name),
			slog.String("err", err.Error()),
		)
	}
	return err
}

func (r *Registry) register(name string, cmd commands.Command) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return fmt.Errorf("%w: %q needs a leading slash", ErrInvalidCommand, name)
	case cmd.Handler == nil || cmd.Description == "":
		return fmt.Errorf("%w: %s needs a handler and a description", ErrInvalidCommand, name)
	}
	names := cmd.Names(name)
	for _, n := range names {
		if owner, taken := r.index[n]; taken {
			return fmt.Errorf("%w: %s is taken by %s", ErrDuplicateCommand, n, owner)
		}
	}
	r.commands[name] = cmd
	for _, n := range names {
		r.index[n] = name
	}
	return nil
}

// ListCommands returns the menu entries sorted by name. visibleOnly leaves
// out hidden and admin-only commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && !cmd.Visible() {
			continue
		}
		// The menu takes names without the leading slash.
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return cmp.Compare(a.Text, b.Text) })
	return list
}

// LookupCommand resolves a name or alias, with or without slash, to the
// command's key and definition.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	key, ok := r.index[commands.Slash(name)]
	if !ok {
		return "", commands.Command{}, false
	}
	return key, r.commands[key], true
}

// Commands returns the registered commands by key. Callers must not modify the map.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// SetupCommands publishes the visible commands as the bot's command menu.
func SetupCommands(bot *tele.Bot, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	ctx := context.Background()
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.Error(ctx, wireComponent, "register.commands.set",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, wireComponent, "register.commands.set",
		slog.String("status", "ok"),
		slog.Int("count", len(list)),
	)
}
