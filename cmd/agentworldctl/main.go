// Command agentworldctl is the operator CLI for a running agentworldd
// node: snapshot inventory, audit export, and governance proposal
// submission. Grounded on the teacher's cmd/synnergy/main.go subcommand-
// factory pattern (testnetCmd/tokensCmd), generalized from mocked
// subcommands to real HTTP calls against the daemon's audit and admin
// APIs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agentworldctl",
		Short: "operate a running agentworldd node",
	}
	rootCmd.PersistentFlags().String("admin-addr", "http://127.0.0.1:8092", "agentworldd admin API base URL")
	rootCmd.PersistentFlags().String("audit-addr", "http://127.0.0.1:8090", "agentworldd audit API base URL")

	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(governanceCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
