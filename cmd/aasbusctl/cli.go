package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/veesix-networks/aasbus/pkg/events"
)

type CLI struct {
	client     *Client
	serverAddr string
	rl         *readline.Instance
	out        io.Writer
	format     OutputFormat

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func NewCLI(client *Client, serverAddr string) *CLI {
	return &CLI{
		client:     client,
		serverAddr: serverAddr,
		out:        os.Stdout,
		format:     FormatJSON,
		running:    true,
	}
}

func (c *CLI) Run() error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:              "aasbus> ",
		HistoryFile:         os.ExpandEnv("$HOME/.aasbusctl_history"),
		AutoComplete:        buildCompleter(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer c.rl.Close()
	c.out = c.rl.Stdout()

	c.printBanner()

	for c.isRunning() {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if err == io.EOF {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := c.processCommand(line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	return nil
}

func (c *CLI) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

func (c *CLI) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Interrupt cancels the running command. It reports false when no command
// was running.
func (c *CLI) Interrupt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

func (c *CLI) printBanner() {
	fmt.Fprintln(c.out, "=====================================")
	fmt.Fprintln(c.out, "    aasbus Interactive CLI")
	fmt.Fprintln(c.out, "=====================================")
	fmt.Fprintf(c.out, "Connected to: %s\n", c.serverAddr)
	fmt.Fprintln(c.out, "Type 'help' for available commands")
	fmt.Fprintln(c.out, "Type 'exit' or 'quit' to exit")
	fmt.Fprintln(c.out)
}

func (c *CLI) processCommand(line string) error {
	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]

	if name == "exit" || name == "quit" {
		c.Stop()
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help'", name)
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if cmd.Stream {
		ctx, cancel = context.WithCancel(context.Background())
	} else {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	}
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	return cmd.Handler(ctx, c, args)
}

func (c *CLI) print(data interface{}) error {
	out, err := Format(data, c.format)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, out)
	return nil
}

func buildCompleter() readline.AutoCompleter {
	kinds := make([]readline.PrefixCompleterInterface, 0)
	for _, k := range events.Kinds() {
		if !k.Abstract() {
			kinds = append(kinds, readline.PcItem(k.String()))
		}
	}
	watchKinds := make([]readline.PrefixCompleterInterface, 0)
	for _, k := range events.Kinds() {
		watchKinds = append(watchKinds, readline.PcItem(k.String()))
	}

	items := []readline.PrefixCompleterInterface{
		readline.PcItem("publish", kinds...),
		readline.PcItem("watch", watchKinds...),
		readline.PcItem("format", readline.PcItem(string(FormatJSON)), readline.PcItem(string(FormatYAML))),
		readline.PcItem("exit"),
	}
	for _, name := range commandNames() {
		switch name {
		case "publish", "watch", "format":
			continue
		}
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

func filterInput(r rune) (rune, bool) {
	switch r {
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}
