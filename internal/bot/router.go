// Package bot connects the version watcher to a Discord channel: it routes
// prefixed chat commands, reacts to a few phrases and announces new versions.
package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/obentoo/paperbot/internal/common/logger"
)

// DefaultPrefix introduces every command
const DefaultPrefix = "!"

// Request is one parsed command invocation.
type Request struct {
	// Name is the command name without prefix
	Name string
	// Args are the whitespace separated words after the name
	Args []string
	// ChannelID is where the command was sent
	ChannelID string
	// Author is the display name of the sender
	Author string
}

// Arg returns the i-th argument or "" when absent.
func (r *Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// HandlerFunc answers a request with the text to send back. Handlers turn
// their own failures into replies; the returned error is only logged.
type HandlerFunc func(ctx context.Context, req *Request) (string, error)

// Command is a named chat command.
type Command struct {
	Name        string
	Usage       string
	Description string
	Handler     HandlerFunc
}

// Router dispatches messages to commands. The command table is fixed at
// construction and only read afterwards, so Dispatch is safe for
// concurrent use.
type Router struct {
	prefix   string
	commands map[string]*Command
	log      *logger.Logger
}

// NewRouter creates a router for prefix with the given commands and a
// built-in help command listing them.
func NewRouter(prefix string, commands ...*Command) *Router {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	r := &Router{
		prefix:   prefix,
		commands: make(map[string]*Command, len(commands)+1),
		log:      logger.Named("router"),
	}
	for _, c := range commands {
		r.commands[c.Name] = c
	}
	if _, ok := r.commands["help"]; !ok {
		r.commands["help"] = &Command{
			Name:        "help",
			Usage:       "help",
			Description: "List the available commands",
			Handler:     r.help,
		}
	}
	return r
}

// Prefix returns the command prefix.
func (r *Router) Prefix() string {
	return r.prefix
}

// Commands returns the registered commands sorted by name.
func (r *Router) Commands() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, c := range r.commands {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Parse splits a message into command name and arguments. It reports
// false when the message does not start with the prefix or names no
// command.
func (r *Router) Parse(content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, r.prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, r.prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return fields[0], fields[1:], true
}

// Dispatch runs the command named in content. It reports false when the
// message is not a known command; the reply may be empty.
func (r *Router) Dispatch(ctx context.Context, content string, req Request) (string, bool) {
	name, args, ok := r.Parse(content)
	if !ok {
		return "", false
	}
	cmd, ok := r.commands[name]
	if !ok {
		r.log.Debug("Unknown command %q from %s", name, req.Author)
		return "", false
	}

	req.Name = name
	req.Args = args
	r.log.Debug("%s ran %s%s %v", req.Author, r.prefix, name, args)

	reply, err := cmd.Handler(ctx, &req)
	if err != nil {
		r.log.Error("Command %s failed: %v", name, err)
	}
	return reply, true
}

func (r *Router) help(ctx context.Context, req *Request) (string, error) {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range r.Commands() {
		fmt.Fprintf(&b, "`%s%s` %s\n", r.prefix, c.Usage, c.Description)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
