package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rhuss/tradelens/pkg/routing"
)

func newNamespacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "namespaces",
		Short: "Print the keyword routing table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			router, err := routing.New(cfg.Routing.Rules, cfg.Routing.Fallback)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAMESPACE\tRECORD TYPE\tKEYWORDS")
			for _, r := range router.Rules() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Namespace, r.RecordType, strings.Join(r.Keywords, ", "))
			}
			fb := router.Fallback()
			fmt.Fprintf(tw, "%s\t%s\t(fallback)\n", fb.Namespace, fb.RecordType)
			return tw.Flush()
		},
	}
}
