package main

import (
	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "snapshot", Short: "inspect world state snapshots"}
	cmd.AddCommand(snapshotListCmd())
	return cmd
}

func snapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list snapshot files the node has written, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			adminAddr, _ := cmd.Flags().GetString("admin-addr")
			var names []string
			if err := doJSON("GET", adminAddr, "/api/snapshots", nil, &names); err != nil {
				return err
			}
			return printJSON(names)
		},
	}
}
