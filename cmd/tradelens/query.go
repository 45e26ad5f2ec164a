package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rhuss/tradelens/pkg/api"
)

func newQueryCmd() *cobra.Command {
	var (
		namespace string
		topK      int
		summary   bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   `query "question"`,
		Short: "Answer one question and print the result",
		Long: `query runs a single question through routing, retrieval and the optional
summary, then prints the raw record listing. With --json the full answer
object is printed instead.`,
		Example: `  tradelens query "german exporters of ball bearings"
  tradelens query --namespace importers --top-k 10 "frozen shrimp"
  tradelens query --summarize --json "red sea shipping risk news"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := buildStack(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			req := &api.QueryRequest{
				Query:     strings.Join(args, " "),
				Namespace: api.Namespace(namespace),
				TopK:      topK,
			}
			if cmd.Flags().Changed("summarize") {
				req.Summarize = &summary
			}

			ans, err := st.engine.Answer(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(ans)
			}

			fmt.Fprintf(out, "Namespace: %s (%s)\n", ans.Namespace, ans.RecordType)
			if ans.Summary != "" {
				fmt.Fprintf(out, "\n%s\n", ans.Summary)
			} else if ans.SummaryError != "" {
				fmt.Fprintf(out, "\nSummary unavailable: %s\n", ans.SummaryError)
			}
			fmt.Fprint(out, ans.Text)
			if !strings.HasSuffix(ans.Text, "\n") {
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace override (exporters, importers, global_news, all)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of records to retrieve (default from config)")
	cmd.Flags().BoolVar(&summary, "summarize", false, "summarise the records with the configured model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	return cmd
}
