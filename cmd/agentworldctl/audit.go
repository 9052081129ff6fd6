package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "query the node's event audit log"}
	cmd.AddCommand(auditExportCmd())
	return cmd
}

func auditExportCmd() *cobra.Command {
	var kind, causedBy string
	var minTick, maxTick uint64
	var limit int

	c := &cobra.Command{
		Use:   "export",
		Short: "export audit events matching a filter, following cursor pagination to exhaustion",
		RunE: func(cmd *cobra.Command, args []string) error {
			auditAddr, _ := cmd.Flags().GetString("audit-addr")

			var cursorEra, cursorValue uint64
			haveCursor := false
			var all []json.RawMessage

			for {
				q := url.Values{}
				if kind != "" {
					q.Set("kind", kind)
				}
				if causedBy != "" {
					q.Set("caused_by", causedBy)
				}
				if minTick > 0 {
					q.Set("min_tick", fmt.Sprint(minTick))
				}
				if maxTick > 0 {
					q.Set("max_tick", fmt.Sprint(maxTick))
				}
				if limit > 0 {
					q.Set("limit", fmt.Sprint(limit))
				}
				if haveCursor {
					q.Set("cursor_era", fmt.Sprint(cursorEra))
					q.Set("cursor_value", fmt.Sprint(cursorValue))
				}

				var page struct {
					Events     []json.RawMessage `json:"Events"`
					NextCursor *struct {
						Era   uint64 `json:"Era"`
						Value uint64 `json:"Value"`
					} `json:"NextCursor"`
				}
				if err := doJSON("GET", auditAddr, "/api/audit/events?"+q.Encode(), nil, &page); err != nil {
					return err
				}
				all = append(all, page.Events...)
				if page.NextCursor == nil {
					break
				}
				cursorEra, cursorValue = page.NextCursor.Era, page.NextCursor.Value
				haveCursor = true
			}

			return printJSON(all)
		},
	}
	c.Flags().StringVar(&kind, "kind", "", "filter by event kind")
	c.Flags().StringVar(&causedBy, "caused-by", "", "filter by causing action id")
	c.Flags().Uint64Var(&minTick, "min-tick", 0, "minimum tick (inclusive)")
	c.Flags().Uint64Var(&maxTick, "max-tick", 0, "maximum tick (inclusive, 0 = no upper bound)")
	c.Flags().IntVar(&limit, "page-size", 100, "events requested per page")
	return c
}
