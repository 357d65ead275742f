// Package sessionctl is the command tree of the sessionctl binary: the
// interactive session panel plus scriptable list, revoke and lookup commands.
package sessionctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/session-console/internal/panel"
	"github.com/sandeepkv93/session-console/internal/tools/common"
	"github.com/sandeepkv93/session-console/internal/tools/ui"
)

type options struct {
	envFile string
	baseURL string
	token   string
	ci      bool
	timeout time.Duration
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Inspect and revoke the sessions of the signed-in user",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional env file read before the environment")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "sessiond base URL (overrides AUTH_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.token, "token", "", "access token (overrides AUTH_TOKEN)")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "overall deadline in --ci mode")
	cmd.AddCommand(
		newPanelCommand(opts),
		newListCommand(opts),
		newRevokeCommand(opts),
		newRevokeOthersCommand(opts),
		newLookupCommand(opts),
	)
	return cmd
}

func newPanelCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "panel",
		Short: "Open the interactive session panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ci {
				return errors.New("panel needs an interactive terminal; drop --ci")
			}
			ctx := cmd.Context()
			c, err := buildConsole(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = c.Close(context.Background()) }()
			return ui.RunPanel(ctx, c.co, "Active sessions")
		},
	}
}

func newListCommand(opts *options) *cobra.Command {
	var (
		search string
		oldest bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "sessionctl list", func(ctx context.Context, c *console) ([]string, error) {
				if err := c.co.Reload(ctx); err != nil {
					return nil, err
				}
				s := c.co.Sessions()
				if oldest {
					s.ToggleSort()
				}
				c.co.SearchLabel(search)
				return listLines(s), nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter by user agent, OS, browser or IP")
	cmd.Flags().BoolVar(&oldest, "oldest-first", false, "sort by creation time ascending")
	return cmd
}

func newRevokeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token> [token...]",
		Short: "Revoke one or more sessions by token",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "sessionctl revoke", func(ctx context.Context, c *console) ([]string, error) {
				if err := c.co.Reload(ctx); err != nil {
					return nil, err
				}
				s := c.co.Sessions()
				var out panel.Outcome
				if len(args) == 1 {
					out = s.RevokeOne(ctx, args[0])
				} else {
					for _, token := range args {
						if err := s.Select(token); err != nil {
							return nil, fmt.Errorf("token %s: %w", token, err)
						}
					}
					out = s.RevokeSelected(ctx)
				}
				return settle(ctx, c, out)
			})
		},
	}
}

func newRevokeOthersCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-others",
		Short: "Revoke every session except the current one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "sessionctl revoke-others", func(ctx context.Context, c *console) ([]string, error) {
				if err := c.co.Reload(ctx); err != nil {
					return nil, err
				}
				return settle(ctx, c, c.co.Sessions().RevokeAllOthers(ctx))
			})
		},
	}
}

func newLookupCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <ip>",
		Short: "Resolve the location and network of an IP address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "sessionctl lookup", func(ctx context.Context, c *console) ([]string, error) {
				w := c.co.Widget()
				req, err := c.co.LookupIP(args[0])
				if err != nil {
					return nil, err
				}
				w.Resolve(w.Fetch(ctx, req))
				return lookupLines(w)
			})
		},
	}
}

// settle turns a revoke outcome into output and re-reads the sessions the
// way the panel does after a successful revoke.
func settle(ctx context.Context, c *console, out panel.Outcome) ([]string, error) {
	if out.Err != nil {
		return nil, errors.New(out.Notice.Message)
	}
	details := []string{out.Notice.Message}
	if err := c.co.Finish(ctx, out); err != nil {
		return details, fmt.Errorf("refresh sessions: %w", err)
	}
	return append(details, fmt.Sprintf("active sessions left: %d", c.co.Sessions().TotalSessions())), nil
}

// execute builds the console and runs fn either behind the spinner or, in
// --ci mode, under a deadline with a JSON result on stdout.
func execute(cmd *cobra.Command, opts *options, title string, fn func(context.Context, *console) ([]string, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := buildConsole(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		report(cmd.OutOrStdout(), opts, title, nil, err)
		return err
	}
	defer func() { _ = c.Close(context.Background()) }()

	run := func(ctx context.Context) ([]string, error) { return fn(ctx, c) }
	var details []string
	if opts.ci {
		cctx, cancel := context.WithTimeout(ctx, opts.timeout)
		defer cancel()
		details, err = run(cctx)
		report(cmd.OutOrStdout(), opts, title, details, err)
		return err
	}
	_, err = ui.Run(ctx, title, run)
	return err
}

func report(w io.Writer, opts *options, title string, details []string, err error) {
	if !opts.ci {
		return
	}
	if err != nil {
		err = errors.New(panel.NoticeFor(err).Message)
	}
	_ = common.WriteCIResult(w, common.NewCIResult(err == nil, title, details, err))
}
