package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/yulifengwx/RazorRockstars/service"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	ID  int
	Age int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Print rockstars as JSON",
		Long: `Print rockstars as JSON.

--id selects one rockstar and wins over --age. Without either flag
every rockstar is printed.

Example:
  rockstars search --age 27`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := service.SearchRequest{ID: opts.ID}
			if cmd.Flags().Changed("age") {
				req.Age = &opts.Age
			}

			return runSearch(opts, req, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.ID, "id", 0, "rockstar id")
	cmd.Flags().IntVar(&opts.Age, "age", 0, "rockstar age")

	return cmd
}

func runSearch(opts *SearchOptions, req service.SearchRequest, cmd *cobra.Command) error {
	a, err := openApp(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.service.Search(cmd.Context(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
