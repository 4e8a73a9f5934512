package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/ticketsync-server/internal/log"
	"github.com/vovakirdan/ticketsync-server/internal/syncagent"
	"github.com/vovakirdan/ticketsync-server/internal/ticket"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ticketwatch: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	server    string
	token     string
	author    string
	admin     bool
	resync    bool
	reconnect time.Duration
	logLevel  string
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "ticketwatch <ticket-id>",
		Short: "Follow a complaint ticket live from the terminal",
		Long: `ticketwatch loads a ticket, joins its room and prints comments and
status changes as they happen.

Lines typed on stdin are posted as comments. A line of the form
"/status <open|in-progress|resolved|pending>" changes the status.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, args[0], opts, in, out)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("TICKETSYNC_TOKEN"), "bearer token")
	cmd.Flags().StringVar(&opts.author, "author", "cli-user", "author id for posted comments")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "post comments as admin")
	cmd.Flags().BoolVar(&opts.resync, "resync", true, "re-fetch the ticket after reconnecting")
	cmd.Flags().DurationVar(&opts.reconnect, "reconnect-delay", time.Second, "first wait before reconnecting")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level")
	return cmd
}

func run(ctx context.Context, ticketID string, opts options, in io.Reader, out io.Writer) error {
	logger := log.NewWithWriter(os.Stderr, opts.logLevel, "console")

	agent, err := syncagent.New(ticketID, syncagent.Options{
		BaseURL:           opts.server,
		Token:             opts.token,
		AuthorID:          opts.author,
		IsAdmin:           opts.admin,
		ReconnectDelay:    opts.reconnect,
		ResyncOnReconnect: opts.resync,
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	defer agent.Close()

	unsubscribe := agent.Subscribe(func(c syncagent.Change) {
		printChange(out, c)
	})
	defer unsubscribe()

	if err := agent.Load(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- agent.Run(ctx)
	}()

	// Input ending only stops posting; the watch runs until ctx is done.
	go readInput(ctx, agent, in, out)

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func readInput(ctx context.Context, agent *syncagent.Agent, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		if rest, ok := strings.CutPrefix(line, "/status"); ok {
			var st ticket.Status
			st, err = ticket.ParseStatus(rest)
			if err == nil {
				err = agent.SetStatus(ctx, st)
			}
		} else {
			err = agent.PostComment(ctx, line)
		}

		switch {
		case err == nil:
		case errors.Is(err, syncagent.ErrNotConnected):
			fmt.Fprintln(out, "! saved, but not connected: others will see it after they reload")
		default:
			fmt.Fprintf(out, "! %v\n", err)
		}
	}
}

func printChange(out io.Writer, c syncagent.Change) {
	switch c.Kind {
	case syncagent.ChangeLoaded:
		t := c.Ticket
		fmt.Fprintf(out, "ticket %s [%s] %s: %s\n", t.ID, t.Status, t.ComplaintType, t.Description)
		for _, cm := range t.Comments {
			printComment(out, cm)
		}
	case syncagent.ChangeComment:
		printComment(out, c.Comment)
	case syncagent.ChangeStatus:
		fmt.Fprintf(out, "* status is now %s\n", c.Status)
	}
}

func printComment(out io.Writer, c ticket.Comment) {
	who := c.AuthorID
	if c.IsAdminComment {
		who += " (admin)"
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", c.CreatedAt.Local().Format("15:04:05"), who, c.Content)
}
