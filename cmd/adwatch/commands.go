package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"adwatch/internal/client"
	"adwatch/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const progressStep = 250 * time.Millisecond

type cliOptions struct {
	server  string
	token   string
	timeout time.Duration
}

func (o *cliOptions) client() *client.Client {
	c := client.New(o.server, nil)
	c.SetToken(o.token)
	return c
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "adwatch",
		Short:         "Watch ads, validate views and publish listings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("ADWATCH_SERVER", "http://localhost:8080"), "API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("ADWATCH_TOKEN"), "bearer token")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall command timeout")

	root.AddCommand(
		newLoginCmd(opts),
		newAdsCmd(opts),
		newViewsCmd(opts),
		newQuotaCmd(opts),
		newWatchCmd(opts),
		newCreateCmd(opts),
		newResetCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (o *cliOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func newLoginCmd(opts *cliOptions) *cobra.Command {
	var register bool
	var name string
	cmd := &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Authenticate and print a token for ADWATCH_TOKEN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			c := opts.client()
			var err error
			if register {
				_, err = c.Register(ctx, args[0], args[1], name)
			} else {
				_, err = c.Login(ctx, args[0], args[1])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.Token())
			return nil
		},
	}
	cmd.Flags().BoolVar(&register, "register", false, "create the account first")
	cmd.Flags().StringVar(&name, "name", "", "display name for --register")
	return cmd
}

func newAdsCmd(opts *cliOptions) *cobra.Command {
	var filter domain.AdFilter
	cmd := &cobra.Command{
		Use:   "ads",
		Short: "List the catalog with your view status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			st, err := client.NewRefresher(opts.client()).Reload(ctx, filter)
			if err != nil {
				return err
			}
			viewed := make(map[int64]bool, len(st.Views))
			for _, v := range st.Views {
				viewed[v.AdID] = true
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tPRICE\tVIEWED")
			for _, ad := range st.Ads {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", ad.ID, ad.Title, ad.Category, price(ad.Price), yesNo(viewed[ad.ID]))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			printQuota(cmd.OutOrStdout(), st.Quota)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "title search")
	cmd.Flags().StringVar(&filter.Category, "category", "", "category filter")
	return cmd
}

func newViewsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List your validated views",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			views, err := opts.client().Views(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AD\tCODE\tVIEWED AT")
			for _, v := range views {
				fmt.Fprintf(w, "%d\t%s\t%s\n", v.AdID, v.Code, v.ViewedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newQuotaCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show how many validated views you have",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()
			q, err := opts.client().Quota(ctx)
			if err != nil {
				return err
			}
			printQuota(cmd.OutOrStdout(), q)
			return nil
		},
	}
}

func newWatchCmd(opts *cliOptions) *cobra.Command {
	var auto bool
	cmd := &cobra.Command{
		Use:   "watch <ad-id>",
		Short: "Play an ad, then enter the code it showed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid ad id %q", args[0])
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			return watchAd(ctx, opts.client(), adID, auto, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&auto, "auto", false, "submit the revealed code without prompting")
	return cmd
}

// watchAd plays the session in real time until it may be closed, then
// submits codes until one matches or the input ends.
func watchAd(ctx context.Context, c *client.Client, adID int64, auto bool, in io.Reader, out io.Writer) error {
	sess, err := c.OpenSession(ctx, adID)
	if err != nil {
		return err
	}
	defer func() { _ = c.DiscardSession(context.Background(), sess.ID) }()

	if _, _, err := c.Report(ctx, sess.ID, "play", 0); err != nil {
		return err
	}
	fmt.Fprintf(out, "watching ad %d", adID)

	ticker := time.NewTicker(progressStep)
	defer ticker.Stop()
	var revealed string
	pos := time.Duration(0)
	for !sess.Closable {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case <-ticker.C:
		}
		pos += progressStep
		var events []client.Event
		sess, events, err = c.Report(ctx, sess.ID, "progress", pos)
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprint(out, ".")
		for _, ev := range events {
			if ev.Kind == "code_appear" {
				revealed = ev.Code
				fmt.Fprintf(out, "\ncode: %s\n", ev.Code)
			}
		}
	}
	fmt.Fprintln(out)

	if _, err := c.CloseSession(ctx, sess.ID); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		code := revealed
		if !auto {
			fmt.Fprint(out, "enter code: ")
			if !scanner.Scan() {
				return errors.New("no code entered")
			}
			code = strings.TrimSpace(scanner.Text())
		}
		res, err := c.Verify(ctx, sess.ID, code)
		if err != nil {
			return err
		}
		if res.Matched() {
			fmt.Fprintln(out, "view validated")
			printQuota(out, res.Quota)
			return nil
		}
		fmt.Fprintln(out, "code does not match, try again")
		if auto {
			return errors.New("revealed code was rejected")
		}
	}
}

func newCreateCmd(opts *cliOptions) *cobra.Command {
	var draft domain.AdDraft
	var priceText string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish an ad once your quota is met",
		RunE: func(cmd *cobra.Command, args []string) error {
			if priceText != "" {
				p, err := decimal.NewFromString(priceText)
				if err != nil {
					return fmt.Errorf("invalid price %q", priceText)
				}
				draft.Price = decimal.NewNullDecimal(p)
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			ad, err := opts.client().CreateAd(ctx, draft)
			if errors.Is(err, domain.ErrQuotaNotMet) {
				return fmt.Errorf("watch more ads before publishing: %w", err)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ad)
		},
	}
	f := cmd.Flags()
	f.StringVar(&draft.Title, "title", "", "ad title")
	f.StringVar(&draft.Category, "category", "", "ad category")
	f.StringVar(&draft.Description, "description", "", "ad description")
	f.StringVar(&priceText, "price", "", "price, empty for none")
	f.StringVar(&draft.VideoURL, "video", "", "video URL")
	f.StringVar(&draft.ThumbnailURL, "thumbnail", "", "thumbnail URL")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newResetCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-quota <user-id>",
		Short: "Restart a user's quota window (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			ctx, cancel := opts.context(cmd)
			defer cancel()
			q, err := opts.client().ResetQuota(ctx, userID)
			if err != nil {
				return err
			}
			printQuota(cmd.OutOrStdout(), q)
			return nil
		},
	}
}

func printQuota(w io.Writer, q *client.Quota) {
	if q == nil {
		return
	}
	if q.Met {
		fmt.Fprintf(w, "%d / %d videos, you can publish\n", q.Count, q.Required)
		return
	}
	fmt.Fprintf(w, "%d / %d videos, %d more needed\n", q.Count, q.Required, q.Remaining)
}

func price(p decimal.NullDecimal) string {
	if !p.Valid {
		return "-"
	}
	return p.Decimal.StringFixed(2)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
