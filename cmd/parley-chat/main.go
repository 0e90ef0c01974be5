package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/antoniostano/parley/internal/dialogue"
	"github.com/antoniostano/parley/internal/protocol"
	"github.com/antoniostano/parley/internal/session"
	"github.com/antoniostano/parley/internal/transcript"
)

type options struct {
	baseURL string
	timeout time.Duration
	beLimit int
	noColor bool
}

func main() {
	_ = godotenv.Load()

	cfg, err := parseFlags()
	if err != nil {
		color.Red("parley-chat: %v", err)
		os.Exit(2)
	}
	if cfg.noColor {
		color.NoColor = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := dialogue.NewHTTPClient(cfg.baseURL+"/api/chat", cfg.timeout)
	controller := session.NewController(client, nil, nil, zerolog.Nop(), session.Options{BELimit: cfg.beLimit})
	c := newChat(controller, os.Stdout)
	if err := c.run(ctx, os.Stdin); err != nil {
		color.Red("parley-chat: %v", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	flag.StringVar(&cfg.baseURL, "base-url", envOr("PARLEY_CHAT_URL", "http://127.0.0.1:8080"), "parley server base URL")
	flag.DurationVar(&cfg.timeout, "timeout", 60*time.Second, "per-turn HTTP timeout")
	flag.IntVar(&cfg.beLimit, "be-limit", protocol.DefaultBELimit, "be_limit session attribute")
	flag.BoolVar(&cfg.noColor, "no-color", false, "disable colored output")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if cfg.timeout <= 0 {
		return options{}, fmt.Errorf("timeout must be > 0")
	}
	if cfg.beLimit <= 0 {
		return options{}, fmt.Errorf("be-limit must be > 0")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// chat is a line-oriented front end over a session controller.
type chat struct {
	controller *session.Controller
	out        io.Writer
	lastID     uint64

	user   *color.Color
	bot    *color.Color
	system *color.Color
	hint   *color.Color
}

func newChat(controller *session.Controller, out io.Writer) *chat {
	return &chat{
		controller: controller,
		out:        out,
		user:       color.New(color.FgCyan, color.Bold),
		bot:        color.New(color.FgGreen, color.Bold),
		system:     color.New(color.FgYellow),
		hint:       color.New(color.Faint),
	}
}

func (c *chat) run(ctx context.Context, in io.Reader) error {
	c.hint.Fprintln(c.out, "commands: /create /end /clear /quit")
	scanner := bufio.NewScanner(in)
	for {
		c.prompt()
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if quit := c.handle(ctx, scanner.Text()); quit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *chat) prompt() {
	switch c.controller.State() {
	case session.StateActive:
		c.user.Fprint(c.out, "> ")
	default:
		c.hint.Fprint(c.out, "(no session) > ")
	}
}

// handle executes one input line and reports whether the client should exit.
func (c *chat) handle(ctx context.Context, line string) bool {
	switch strings.TrimSpace(line) {
	case "/quit", "/exit":
		return true
	case "/create":
		if _, err := c.controller.TryCreate(); err != nil {
			c.warn(err)
		}
	case "/end":
		c.hint.Fprintln(c.out, "ending session...")
		if err := c.controller.End(ctx); err != nil {
			c.warn(err)
		}
	case "/clear":
		c.controller.ClearTranscript()
		c.hint.Fprintln(c.out, "transcript cleared")
	default:
		c.controller.SetDraft(line)
		if err := c.controller.SubmitDraft(ctx); err != nil {
			if errors.Is(err, session.ErrEmptyInput) {
				return false
			}
			c.warn(err)
		}
	}
	c.flush()
	return false
}

func (c *chat) warn(err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		c.system.Fprintln(c.out, "no active session, type /create first")
	case errors.Is(err, session.ErrSessionActive):
		c.system.Fprintln(c.out, "a session is already active, type /end first")
	default:
		c.system.Fprintln(c.out, err.Error())
	}
}

// flush prints every entry appended since the last flush.
func (c *chat) flush() {
	for _, e := range c.controller.Transcript().Entries() {
		if e.ID <= c.lastID {
			continue
		}
		c.lastID = e.ID
		c.printEntry(e)
	}
}

func (c *chat) printEntry(e transcript.Entry) {
	body := renderMarkup(e.Content)
	switch e.Kind {
	case transcript.KindUser:
		fmt.Fprintf(c.out, "%s %s\n", c.user.Sprint("you:"), body)
	case transcript.KindAssistant:
		fmt.Fprintf(c.out, "%s %s\n", c.bot.Sprint("bot:"), body)
	default:
		fmt.Fprintln(c.out, c.system.Sprint(body))
	}
}

var (
	strongTag = regexp.MustCompile(`(?s)<strong>(.*?)</strong>`)
	emTag     = regexp.MustCompile(`(?s)<em>(.*?)</em>`)
	bold      = color.New(color.Bold)
	italic    = color.New(color.Italic)
)

// renderMarkup turns the transcript's strong/em tags into terminal styles.
func renderMarkup(content string) string {
	out := strongTag.ReplaceAllStringFunc(content, func(m string) string {
		return bold.Sprint(strongTag.FindStringSubmatch(m)[1])
	})
	return emTag.ReplaceAllStringFunc(out, func(m string) string {
		return italic.Sprint(emTag.FindStringSubmatch(m)[1])
	})
}
