package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listPermanent bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved references",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildComponents(GetConfig())
		if err != nil {
			return err
		}

		refs, err := app.store.List()
		if listPermanent {
			refs, err = app.store.ListPermanent()
		}
		if err != nil {
			return err
		}

		if len(refs) == 0 {
			fmt.Println("No references saved.")
			return nil
		}
		for _, ref := range refs {
			fmt.Printf("%s  %s  %s\n", ref.FetchedDate, ref.RefID, ref.URL)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <ref-id>",
	Short: "Print one reference, frontmatter and body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildComponents(GetConfig())
		if err != nil {
			return err
		}

		ref, err := app.store.Find(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("# %s\n\n%s\nfetched: %s  status: %s\n\n%s\n",
			ref.Title, ref.URL, ref.FetchedDate, ref.Status, ref.Body)
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <ref-id>",
	Short: "Move a reference into permanent storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildComponents(GetConfig())
		if err != nil {
			return err
		}

		res, err := app.store.Promote(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Promoted: %s -> %s\n", res.FromPath, res.ToPath)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <ref-id>",
	Short: "Delete a temporary reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildComponents(GetConfig())
		if err != nil {
			return err
		}

		path, err := app.store.Delete(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Deleted: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd, showCmd, promoteCmd, deleteCmd)

	listCmd.Flags().BoolVar(&listPermanent, "permanent", false, "list the permanent store instead")
}
