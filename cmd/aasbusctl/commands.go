package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/codec"
)

type CommandHandler func(ctx context.Context, c *CLI, args []string) error

type Command struct {
	Name        string
	Usage       string
	Description string
	// Stream commands run until interrupted instead of under a timeout.
	Stream  bool
	Handler CommandHandler
}

var commands = map[string]*Command{}

func addCommand(cmd *Command) {
	commands[cmd.Name] = cmd
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	addCommand(&Command{
		Name:        "publish",
		Usage:       "publish <kind> <ref|-> [value|error text]",
		Description: "Publish a message onto the bus",
		Handler:     cmdPublish,
	})
	addCommand(&Command{
		Name:        "stats",
		Usage:       "stats",
		Description: "Show bus counters",
		Handler:     getter("/api/stats"),
	})
	addCommand(&Command{
		Name:        "kinds",
		Usage:       "kinds",
		Description: "List message kinds",
		Handler:     getter("/api/kinds"),
	})
	addCommand(&Command{
		Name:        "status",
		Usage:       "status",
		Description: "Show API server status",
		Handler:     getter("/api/status"),
	})
	addCommand(&Command{
		Name:        "value",
		Usage:       "value <ref>",
		Description: "Show the last recorded value of an element",
		Handler:     lookup("/api/elements/value"),
	})
	addCommand(&Command{
		Name:        "element",
		Usage:       "element <ref>",
		Description: "Show the last recorded element",
		Handler:     lookup("/api/elements"),
	})
	addCommand(&Command{
		Name:        "watch",
		Usage:       "watch [kind,...] [ref]",
		Description: "Stream matching messages until interrupted",
		Stream:      true,
		Handler:     cmdWatch,
	})
	addCommand(&Command{
		Name:        "format",
		Usage:       "format <json|yaml>",
		Description: "Set the output format",
		Handler:     cmdFormat,
	})
	addCommand(&Command{
		Name:        "help",
		Usage:       "help",
		Description: "Show available commands",
		Handler:     cmdHelp,
	})
}

// buildMessage turns publish arguments into a message. The trailing argument
// is JSON for value kinds and free text for errors.
func buildMessage(args []string) (*events.Message, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: %s", commands["publish"].Usage)
	}

	kind, err := events.ParseKind(args[0])
	if err != nil {
		return nil, err
	}

	var ref *events.Reference
	if args[1] != "-" {
		ref, err = events.ParseReference(args[1])
		if err != nil {
			return nil, err
		}
	}

	rest := strings.Join(args[2:], " ")
	if kind == events.KindError {
		return events.NewError(ref, events.ErrorLevelError, rest), nil
	}

	var value events.ElementValue
	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return nil, fmt.Errorf("value is not valid JSON: %s", rest)
		}
		value = events.ElementValue(rest)
	}

	if kind == events.KindValueChange {
		return events.NewValueChange(ref, nil, value), nil
	}
	return &events.Message{Kind: kind, Element: ref, Value: value}, nil
}

func cmdPublish(ctx context.Context, c *CLI, args []string) error {
	msg, err := buildMessage(args)
	if err != nil {
		return err
	}
	data, err := codec.Encode(msg)
	if err != nil {
		return err
	}
	out, err := c.client.Publish(ctx, data)
	if err != nil {
		return err
	}
	return c.print(out)
}

func getter(path string) CommandHandler {
	return func(ctx context.Context, c *CLI, args []string) error {
		out, err := c.client.Get(ctx, path, nil)
		if err != nil {
			return err
		}
		return c.print(out)
	}
}

func lookup(path string) CommandHandler {
	return func(ctx context.Context, c *CLI, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("element reference required")
		}
		out, err := c.client.Get(ctx, path, url.Values{"ref": {strings.Join(args, " ")}})
		if err != nil {
			return err
		}
		return c.print(out)
	}
}

func cmdWatch(ctx context.Context, c *CLI, args []string) error {
	var kinds, ref string
	if len(args) > 0 {
		kinds = args[0]
	}
	if len(args) > 1 {
		ref = strings.Join(args[1:], " ")
	}

	fmt.Fprintln(c.out, "Watching, press Ctrl-C to stop")
	return c.client.Watch(ctx, kinds, ref, func(data []byte) {
		var v interface{}
		if err := json.Unmarshal(data, &v); err != nil {
			fmt.Fprintln(c.out, string(data))
			return
		}
		c.print(v)
	})
}

func cmdFormat(ctx context.Context, c *CLI, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["format"].Usage)
	}
	format, err := ParseOutputFormat(args[0])
	if err != nil {
		return err
	}
	c.format = format
	return nil
}

func cmdHelp(ctx context.Context, c *CLI, args []string) error {
	fmt.Fprintln(c.out)
	for _, name := range commandNames() {
		cmd := commands[name]
		fmt.Fprintf(c.out, "  %-36s %s\n", cmd.Usage, cmd.Description)
	}
	fmt.Fprintf(c.out, "  %-36s %s\n\n", "exit", "Leave the console")
	return nil
}
