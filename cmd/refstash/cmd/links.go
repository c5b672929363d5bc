package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var linksRefetch bool

var linksCmd = &cobra.Command{
	Use:   "links <ref-id>",
	Short: "Fetch every outbound link of a reference",
	Long: `Fetch all outbound links found in a saved reference's body, saving each
result as a new reference. Links are fetched five at a time.

Example:
  refstash links my-article --refetch`,
	Args: cobra.ExactArgs(1),
	RunE: runLinks,
}

func init() {
	rootCmd.AddCommand(linksCmd)

	linksCmd.Flags().BoolVar(&linksRefetch, "refetch", false, "overwrite references that already exist for linked URLs")
}

func runLinks(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildComponents(GetConfig())
	if err != nil {
		return err
	}

	res, err := app.links.FetchLinks(ctx, args[0], linksRefetch)
	if err != nil {
		return err
	}

	for _, r := range res.Results {
		switch r.Status {
		case "failed":
			fmt.Printf("  %-6s %s (%s)\n", r.Status, r.URL, r.Message)
		default:
			fmt.Printf("  %-6s %s -> %s\n", r.Status, r.URL, r.RefID)
		}
	}
	fmt.Printf("\nTotal: %d new, %d cached, %d failed\n",
		res.Summary.New, res.Summary.Cached, res.Summary.Failed)
	return nil
}
