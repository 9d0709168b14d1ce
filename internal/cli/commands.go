// Package cli implements goalctl, a terminal client for the Goal Architect
// server.
package cli

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/goal-architect/internal/agent"
	"github.com/ashureev/goal-architect/internal/domain"
	"github.com/ashureev/goal-architect/internal/identity"
	"github.com/ashureev/goal-architect/internal/progress"
	"github.com/spf13/cobra"
)

const (
	envServerURL = "GOAL_SERVER_URL"
	envUserID    = "GOAL_USER_ID"
)

type options struct {
	server  string
	userID  string
	timeout time.Duration
}

func (o *options) client(cmd *cobra.Command) (*Client, error) {
	if o.userID == "" {
		id, err := identity.NewAnonID()
		if err != nil {
			return nil, err
		}
		o.userID = id
		fmt.Fprintf(cmd.ErrOrStderr(), "%s export %s=%s to keep this identity\n",
			dimStyle.Render("new user:"), envUserID, id)
	}
	if !identity.IsValidAnonID(o.userID) {
		return nil, fmt.Errorf("invalid user id %q", o.userID)
	}
	return NewClient(o.server, o.userID, o.timeout), nil
}

// NewRootCmd builds the goalctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "goalctl",
		Short: "Talk to the Goal Architect agent from the terminal",
		Long: `goalctl chats with the Goal Architect agent, shows the goals,
milestones and trackers it has recorded, and logs progress.`,
		SilenceUsage: true,
	}

	serverDefault := os.Getenv(envServerURL)
	if serverDefault == "" {
		serverDefault = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&opts.server, "server", serverDefault, "server base URL (env "+envServerURL+")")
	root.PersistentFlags().StringVar(&opts.userID, "user", os.Getenv(envUserID), "anonymous user id (env "+envUserID+")")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "per-request timeout")

	root.AddCommand(
		newChatCmd(opts),
		newStateCmd(opts),
		newDashboardCmd(opts),
		newLogCmd(opts),
		newProgressCmd(opts),
	)
	return root
}

func newChatCmd(opts *options) *cobra.Command {
	var threadID string
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message, or start an interactive session without one",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			send := func(msg string) error {
				var resp agent.ChatResponse
				if err := c.post(ctx, "/api/agent/chat", agent.ChatRequest{ThreadID: threadID, Message: msg}, &resp); err != nil {
					return err
				}
				if threadID == "" {
					fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("thread: "+resp.ThreadID))
				}
				threadID = resp.ThreadID
				renderReplies(out, resp.ToUser)
				if resp.Pending {
					fmt.Fprintln(out, warnStyle.Render("(no reply yet, send the message again)"))
				}
				return nil
			}

			if len(args) > 0 {
				return send(strings.Join(args, " "))
			}

			fmt.Fprintln(out, dimStyle.Render("Type a message. /quit to exit."))
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, headerStyle.Render("> "))
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				}
				if err := send(line); err != nil {
					renderError(out, err)
				}
			}
		},
	}
	cmd.Flags().StringVar(&threadID, "thread", "", "thread to continue (new thread if empty)")
	return cmd
}

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state <thread-id>",
		Short: "Show the stage and recent replies of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			var view agent.StateView
			if err := c.get(cmd.Context(), "/api/agent/state?thread_id="+url.QueryEscape(args[0]), &view); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("thread "+view.ThreadID), stageLabel(view.Stage))
			if g := view.StructuredData.Goal; g != nil {
				fmt.Fprintf(out, "  goal: %s\n", g.What)
			}
			if n := len(view.StructuredData.Milestones); n > 0 {
				fmt.Fprintf(out, "  milestones: %d\n", n)
			}
			fmt.Fprintf(out, "  history: %d messages\n", len(view.MessageHistory))
			renderReplies(out, view.ToUser)
			return nil
		},
	}
}

func newDashboardCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"view"},
		Short:   "Show goals, milestones and trackers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			var dash domain.Dashboard
			if err := c.get(cmd.Context(), "/api/dashboard", &dash); err != nil {
				return err
			}
			renderDashboard(cmd.OutOrStdout(), &dash)
			return nil
		},
	}
}

func newLogCmd(opts *options) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "log <tracker-id> <value>",
		Short: "Record a progress value for a tracker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("value must be a number: %w", err)
			}
			body := map[string]any{"tracker_id": args[0], "value": value}
			if at != "" {
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC 3339: %w", err)
				}
				body["timestamp"] = ts
			}

			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			var res domain.AggregateResult
			if err := c.post(cmd.Context(), "/api/logs", body, &res); err != nil {
				return err
			}
			note := ""
			if !res.Applied {
				note = dimStyle.Render(" (a newer value is already recorded)")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s now %g%s\n", okStyle.Render("logged"), res.TrackerID, res.CurrentValue, note)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "timestamp of the observation (RFC 3339, default now)")
	return cmd
}

func newProgressCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <tracker-id>",
		Short: "Show window and streak progress of a tracker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			var ev progress.Evaluation
			if err := c.get(cmd.Context(), "/api/trackers/"+url.PathEscape(args[0])+"/progress", &ev); err != nil {
				return err
			}
			renderProgress(cmd.OutOrStdout(), &ev)
			return nil
		},
	}
}
