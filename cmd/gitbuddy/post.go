package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rohankatakam/gitbuddy/internal/config"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
	"github.com/rohankatakam/gitbuddy/internal/post"
	"github.com/spf13/cobra"
)

var (
	postName   string
	postImage  string
	postDryRun bool
	postYes    bool
)

var postCmd = &cobra.Command{
	Use:   "post [email]",
	Short: "Publish a post about your latest commit and extend your streak",
	Long: `Resolve your latest commit, summarize its last changed file, pin the post to IPFS
through Pinata and record it on the streak contract.

--image accepts a URL or a local file, which is uploaded to IPFS first.
--dry-run prints the drafted post without publishing anything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPost,
}

func init() {
	postCmd.Flags().StringVar(&postName, "name", "", "display name (default: profile.name)")
	postCmd.Flags().StringVar(&postImage, "image", "", "avatar URL or local image file (default: profile.image)")
	postCmd.Flags().BoolVar(&postDryRun, "dry-run", false, "draft the post without publishing")
	postCmd.Flags().BoolVarP(&postYes, "yes", "y", false, "publish without asking (implied in CI)")
}

func runPost(cmd *cobra.Command, args []string) error {
	validation := config.ValidationContextPublish
	if postDryRun {
		validation = config.ValidationContextResolve
	}
	if err := validate(validation); err != nil {
		return err
	}
	creds, err := credentials()
	if err != nil {
		return err
	}
	f, err := formatter()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var c closers
	defer c.Close()

	r, err := newResolver(&c)
	if err != nil {
		return err
	}
	summarizer, err := newSummarizer(ctx, &c)
	if err != nil {
		return err
	}

	opts := []post.Option{post.WithSummarizer(summarizer)}
	var pins post.PinStore
	if !postDryRun {
		client, err := newPinStore()
		if err != nil {
			return err
		}
		pins = client

		chain, err := newStreakClient(&c, "")
		if err != nil {
			return err
		}
		opts = append(opts, post.WithStreak(chain))

		index, err := openIndex(&c)
		if err != nil {
			return err
		}
		if index != nil {
			opts = append(opts, post.WithIndex(index))
		}
	}
	svc := post.NewService(r, pins, opts...)

	author := models.Author{
		Name:  firstNonEmpty(postName, cfg.Profile.Name),
		Email: identityArg(args),
		Image: firstNonEmpty(postImage, cfg.Profile.Image),
	}
	if author.Image != "" && !postDryRun && isLocalFile(author.Image) {
		url, err := uploadImage(cmd, svc, author.Image)
		if err != nil {
			return err
		}
		author.Image = url
	}

	draft, err := svc.Draft(ctx, author, creds)
	if err != nil {
		return err
	}
	if err := f.FormatPost(os.Stdout, draft); err != nil {
		return err
	}
	if postDryRun {
		return nil
	}
	if !postYes && config.DetectMode().AllowsInteractivePrompts() && !confirm("Publish this post?") {
		return apperrors.Cancelled(fmt.Errorf("publish declined"))
	}

	result, err := svc.Publish(ctx, draft)
	if result != nil {
		if ferr := f.FormatPublish(os.Stdout, result); ferr != nil {
			return ferr
		}
	}
	return err
}

func uploadImage(cmd *cobra.Command, svc *post.Service, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.KindInvalidArgument, "open image %s", path)
	}
	defer file.Close()

	logger.WithField("file", filepath.Base(path)).Info("Uploading image to IPFS")
	return svc.UploadImage(cmd.Context(), filepath.Base(path), file)
}

func isLocalFile(s string) bool {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "ipfs://") {
		return false
	}
	info, err := os.Stat(s)
	return err == nil && !info.IsDir()
}

func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "\n%s (y/N): ", question)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
