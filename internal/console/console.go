// Package console provides an interactive operator REPL for driving the
// engine from a terminal without going through the HTTP surface, grounded
// on dragonfly's server/console package.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/ron808/eagrouter/internal/engine"
)

const (
	defaultPromptPrefix = "eagrouter> "
	maxHistoryEntries   = 128
)

// Console reads operator commands from an io.Reader (os.Stdin by default)
// and drives an engine.Engine directly, bypassing the HTTP surface.
type Console struct {
	eng     *engine.Engine
	log     *slog.Logger
	reader  io.Reader
	history []string
}

// New returns a Console bound to eng, logging command output through log.
func New(eng *engine.Engine, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{eng: eng, log: log, reader: os.Stdin}
}

// WithReader overrides the input source, used by tests to drive the console
// without a terminal.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run consumes commands until ctx is cancelled or the reader hits EOF.
func (c *Console) Run(ctx context.Context) {
	if c.reader != os.Stdin {
		c.runScanner(ctx)
		return
	}
	c.runInteractive(ctx)
}

func (c *Console) runScanner(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("console input error", "error", err)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !c.execute(line) {
			return
		}
	}
}

func (c *Console) runInteractive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := prompt.Input(defaultPromptPrefix, c.complete,
			prompt.OptionTitle("eagrouter console"),
			prompt.OptionHistory(c.history),
			prompt.OptionPrefix(defaultPromptPrefix),
			prompt.OptionCompletionOnDown(),
			prompt.OptionMaxSuggestion(len(commandTable)),
		)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !c.execute(line) {
			return
		}
	}
}

// execute runs one command line and reports whether the console should
// keep reading (false after "quit"/"exit").
func (c *Console) execute(line string) bool {
	c.history = append(c.history, line)
	if len(c.history) > maxHistoryEntries {
		c.history = c.history[len(c.history)-maxHistoryEntries:]
	}

	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	cmd, ok := commandTable[name]
	if !ok {
		c.log.Error("unknown command", "command", name)
		return true
	}
	if name == "quit" || name == "exit" {
		return false
	}
	cmd.run(c, args)
	return true
}

type command struct {
	usage string
	run   func(c *Console, args []string)
}

var commandTable = map[string]command{
	"start":  {usage: "start", run: (*Console).cmdStart},
	"stop":   {usage: "stop", run: (*Console).cmdStop},
	"reset":  {usage: "reset", run: (*Console).cmdReset},
	"tick":   {usage: "tick [n]", run: (*Console).cmdTick},
	"status": {usage: "status", run: (*Console).cmdStatus},
	"bots":   {usage: "bots", run: (*Console).cmdBots},
	"orders": {usage: "orders", run: (*Console).cmdOrders},
	"quit":   {usage: "quit"},
	"exit":   {usage: "exit"},
}

func (c *Console) cmdStart(_ []string) {
	c.eng.Start()
	c.log.Info("simulation started")
}

func (c *Console) cmdStop(_ []string) {
	c.eng.Stop()
	c.log.Info("simulation stopped")
}

func (c *Console) cmdReset(_ []string) {
	n, err := c.eng.Reset()
	if err != nil {
		c.log.Error("reset failed", "error", err)
		return
	}
	c.log.Info("simulation reset", "orders_cancelled", n)
}

func (c *Console) cmdTick(args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			c.log.Error("tick: argument must be a positive integer", "arg", args[0])
			return
		}
		n = v
	}
	for i := 0; i < n; i++ {
		result, err := c.eng.Tick()
		if err != nil {
			c.log.Error("tick failed", "error", err)
			return
		}
		c.log.Info("tick", "tick", result.TickCount, "assigned", result.OrdersAssigned,
			"picked_up", result.OrdersPickedUp, "delivered", result.OrdersDelivered, "moved", result.BotsMoved)
	}
}

func (c *Console) cmdStatus(_ []string) {
	snap := c.eng.Status()
	c.log.Info("status", "is_running", snap.IsRunning, "tick_count", snap.TickCount, "non_idle_bots", snap.NonIdleBots)
	counts := make(map[string]int, len(snap.OrdersByStatus))
	statuses := make([]string, 0, len(snap.OrdersByStatus))
	for s, n := range snap.OrdersByStatus {
		counts[string(s)] = n
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Printf("  %-10s %d\n", s, counts[s])
	}
}

func (c *Console) cmdBots(_ []string) {
	for _, b := range c.eng.BotPositions() {
		target := "-"
		if b.Target != nil {
			target = fmt.Sprintf("%s@%d", b.Target.Action, b.Target.NodeID)
		}
		fmt.Printf("  bot %-4d %-10s node=%-6d active_orders=%d target=%s\n", b.ID, b.Status, b.CurrentNodeID, b.ActiveOrders, target)
	}
}

func (c *Console) cmdOrders(_ []string) {
	for _, o := range c.eng.Orders() {
		fmt.Printf("  order %-4d %-10s restaurant=%d pickup=%d delivery=%d\n", o.ID, o.Status, o.RestaurantID, o.PickupNodeID, o.DeliveryNodeID)
	}
}

func (c *Console) complete(doc prompt.Document) []prompt.Suggest {
	word := doc.GetWordBeforeCursor()
	suggestions := make([]prompt.Suggest, 0, len(commandTable))
	for name, cmd := range commandTable {
		suggestions = append(suggestions, prompt.Suggest{Text: name, Description: cmd.usage})
	}
	sort.Slice(suggestions, func(i, j int) bool { return suggestions[i].Text < suggestions[j].Text })
	return prompt.FilterHasPrefix(suggestions, word, true)
}
