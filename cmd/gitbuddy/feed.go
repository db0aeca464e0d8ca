package main

import (
	"fmt"
	"os"

	"github.com/rohankatakam/gitbuddy/internal/config"
	"github.com/rohankatakam/gitbuddy/internal/post"
	"github.com/rohankatakam/gitbuddy/internal/storage"
	"github.com/spf13/cobra"
)

var (
	feedLimit    int
	historyLimit int
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "List recently published posts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runFeed,
}

var showCmd = &cobra.Command{
	Use:   "show <cid>",
	Short: "Print one published post by its IPFS hash",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var unpinCmd = &cobra.Command{
	Use:   "unpin <unique-id>",
	Short: "Unpin a published post and remove it from the local index",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnpin,
}

var historyCmd = &cobra.Command{
	Use:   "history [email]",
	Short: "List posts published from this machine",
	Long: `List posts recorded in the local index (storage.type), newest first.
Without an email the profile email is used; pass "all" to list every author.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	feedCmd.Flags().IntVar(&feedLimit, "limit", post.DefaultFeedLimit, "maximum number of posts")
	historyCmd.Flags().IntVar(&historyLimit, "limit", storage.DefaultListLimit, "maximum number of posts")
}

// pinService builds a post service for commands that only touch published posts
func pinService(c *closers, withIndex bool) (*post.Service, error) {
	if err := validate(config.ValidationContextFeed); err != nil {
		return nil, err
	}
	pins, err := newPinStore()
	if err != nil {
		return nil, err
	}

	var opts []post.Option
	if withIndex {
		index, err := openIndex(c)
		if err != nil {
			return nil, err
		}
		if index != nil {
			opts = append(opts, post.WithIndex(index))
		}
	}
	return post.NewService(nil, pins, opts...), nil
}

func runFeed(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	var c closers
	defer c.Close()
	svc, err := pinService(&c, false)
	if err != nil {
		return err
	}

	feed, err := svc.Feed(cmd.Context(), feedLimit)
	if err != nil {
		return err
	}
	return f.FormatFeed(os.Stdout, feed)
}

func runShow(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	var c closers
	defer c.Close()
	svc, err := pinService(&c, false)
	if err != nil {
		return err
	}

	p, err := svc.Show(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return f.FormatPost(os.Stdout, p)
}

func runUnpin(cmd *cobra.Command, args []string) error {
	var c closers
	defer c.Close()
	svc, err := pinService(&c, true)
	if err != nil {
		return err
	}

	hash, err := svc.Delete(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Unpinned %s (%s)\n", args[0], hash)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}
	var c closers
	defer c.Close()

	index, err := openIndex(&c)
	if err != nil {
		return err
	}
	var opts []post.Option
	if index != nil {
		opts = append(opts, post.WithIndex(index))
	}
	svc := post.NewService(nil, nil, opts...)

	email := identityArg(args)
	if email == "all" {
		email = ""
	}
	records, err := svc.History(cmd.Context(), email, historyLimit)
	if err != nil {
		return err
	}
	return f.FormatHistory(os.Stdout, records)
}
