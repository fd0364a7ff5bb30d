package cli

import (
	"strings"

	"github.com/hyperjump/regqa/internal/models"
	"github.com/spf13/cobra"
)

func newQueryCommand(opts *globalOptions) *cobra.Command {
	var (
		k      int
		hybrid bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Retrieve the chunks most relevant to a question",
		Example: `  regqa query "When must an early warning be submitted?"
  regqa query --k 8 --hybrid "CSIRT notification"
  regqa query --output json "supply chain security"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ParseOutputFormat(output)
			if err != nil {
				return err
			}
			c, err := opts.initialize()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			idx, err := c.load(ctx)
			if err != nil {
				return err
			}
			engine, err := c.engine(idx)
			if err != nil {
				return err
			}
			defer engine.Close()

			resp, err := engine.Search(ctx, models.QueryRequest{
				Query:  strings.Join(args, " "),
				K:      k,
				Hybrid: hybrid,
			})
			if err != nil {
				return err
			}
			return WriteResults(cmd.OutOrStdout(), resp, format)
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "number of chunks to return (default from config)")
	cmd.Flags().BoolVar(&hybrid, "hybrid", false, "fuse keyword and semantic scores")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}
