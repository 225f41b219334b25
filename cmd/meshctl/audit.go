package main

import (
	"fmt"
	"net/url"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var iface string
	var limit int
	var cursor string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Page through the audit trail of one interface on a running meshd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if iface == "" {
				return fmt.Errorf("--interface is required")
			}
			server, _ := cmd.Flags().GetString("server")

			q := url.Values{}
			if limit > 0 {
				q.Set("limit", fmt.Sprint(limit))
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}

			var body struct {
				Items []struct {
					ID        string `json:"id"`
					Actor     string `json:"actor"`
					Action    string `json:"action"`
					Target    string `json:"target"`
					Detail    string `json:"detail"`
					Timestamp string `json:"timestamp"`
				} `json:"items"`
				NextCursor string `json:"nextCursor"`
			}
			reqURL := fmt.Sprintf("%s/api/interface/%s/audit", server, iface)
			if encoded := q.Encode(); encoded != "" {
				reqURL += "?" + encoded
			}
			if err := callJSON("GET", reqURL, nil, &body); err != nil {
				return fmt.Errorf("audit: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tACTOR\tACTION\tTARGET\tDETAIL")
			for _, entry := range body.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", entry.Timestamp, entry.Actor, entry.Action, entry.Target, entry.Detail)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if body.NextCursor != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "next cursor: %s\n", body.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&iface, "interface", "", "interface name")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor")
	return cmd
}
