package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/refstash/internal/pipeline"
)

var (
	fetchQuery        string
	fetchRefetch      bool
	fetchForceBrowser bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a URL and save it as a reference",
	Long: `Fetch a URL, extract its readable content as markdown, and save it as a
temporary reference.

Examples:
  # Fetch and save a page
  refstash fetch https://example.com/article

  # Tag the reference with the query that led to it
  refstash fetch https://example.com/article --query "go concurrency"

  # Refresh an already-saved page in place
  refstash fetch https://example.com/article --refetch

  # Skip the plain fetch and render with the browser directly
  refstash fetch https://example.com/spa --force-browser`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchQuery, "query", "", "free-text tag stored with the reference")
	fetchCmd.Flags().BoolVar(&fetchRefetch, "refetch", false, "overwrite an existing reference for this URL")
	fetchCmd.Flags().BoolVar(&fetchForceBrowser, "force-browser", false, "render with the browser directly")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildComponents(GetConfig())
	if err != nil {
		return err
	}
	defer app.browser.RequestShutdown()

	url := args[0]
	outcome := app.fetcher.Fetch(ctx, url, pipeline.Options{ForceFallback: fetchForceBrowser})
	if !outcome.Success {
		if outcome.Suggestion != "" {
			return fmt.Errorf("%w (%s)", outcome.Err, outcome.Suggestion)
		}
		return outcome.Err
	}

	title := outcome.Title
	if title == "" {
		title = url
	}

	saved, err := app.store.Save(title, url, outcome.Markdown, fetchQuery, fetchRefetch)
	if err != nil {
		return fmt.Errorf("save failed: %w", err)
	}

	if saved.AlreadyExists {
		fmt.Printf("Already saved: %s (%s)\n", saved.RefID, saved.Path)
		return nil
	}

	fmt.Printf("Saved: %s (%s)\n", saved.RefID, saved.Path)
	if outcome.Verdict != nil {
		fmt.Printf("  Score: %d", outcome.Verdict.Score)
		if outcome.UsedFallbackRenderer {
			fmt.Printf(" (browser render, reason: %s)", outcome.FallbackReason)
		}
		fmt.Println()
	}
	return nil
}
