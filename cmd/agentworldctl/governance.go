package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func governanceCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "governance", Short: "submit and advance module governance proposals"}
	cmd.AddCommand(governanceProposeCmd())
	cmd.AddCommand(governanceShadowCmd())
	cmd.AddCommand(governanceApproveCmd())
	cmd.AddCommand(governanceApplyCmd())
	cmd.AddCommand(governanceRollbackCmd())
	cmd.AddCommand(governanceGetCmd())
	return cmd
}

func governanceProposeCmd() *cobra.Command {
	var op, moduleID, wasmHash, version, fromVersion, toVersion, proposerID string
	c := &cobra.Command{
		Use:   "propose",
		Short: "open a new module change proposal with a single entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			adminAddr, _ := cmd.Flags().GetString("admin-addr")
			entry := map[string]any{"op": op, "module_id": moduleID}
			if wasmHash != "" {
				entry["artifact"] = map[string]any{"wasm_hash": wasmHash, "version": version}
			}
			if fromVersion != "" {
				entry["from_version"] = fromVersion
			}
			if toVersion != "" {
				entry["to_version"] = toVersion
			}
			body := map[string]any{
				"proposer_kind": "system",
				"proposer_id":   proposerID,
				"entries":       []map[string]any{entry},
			}
			var out map[string]any
			if err := doJSON("POST", adminAddr, "/api/governance/propose", body, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	c.Flags().StringVar(&op, "op", "register", "change op: register, upgrade, activate, deactivate")
	c.Flags().StringVar(&moduleID, "module", "", "module id")
	c.Flags().StringVar(&wasmHash, "wasm-hash", "", "artifact wasm hash (register/upgrade only)")
	c.Flags().StringVar(&version, "version", "", "artifact version (register/upgrade only)")
	c.Flags().StringVar(&fromVersion, "from-version", "", "active version an upgrade must match (upgrade only)")
	c.Flags().StringVar(&toVersion, "to-version", "", "version an upgrade moves to (upgrade only)")
	c.Flags().StringVar(&proposerID, "proposer", "ops", "submitter id recorded as proposer")
	_ = c.MarkFlagRequired("module")
	return c
}

func governanceShadowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shadow [proposal-id]",
		Short: "run shadow validation against a proposal and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminAddr, _ := cmd.Flags().GetString("admin-addr")
			var out map[string]any
			if err := doJSON("POST", adminAddr, "/api/governance/"+args[0]+"/shadow", nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func governanceApproveCmd() *cobra.Command {
	var signerID, signature string
	var consensusHeight, required uint64
	c := &cobra.Command{
		Use:   "approve [proposal-id]",
		Short: "cast a signer's approval toward a proposal's required-signers threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminAddr, _ := cmd.Flags().GetString("admin-addr")
			body := map[string]any{
				"signer_kind":      "system",
				"signer_id":        signerID,
				"signature":        signature,
				"consensus_height": consensusHeight,
				"required_signers": required,
			}
			var out map[string]any
			if err := doJSON("POST", adminAddr, "/api/governance/"+args[0]+"/approve", body, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	c.Flags().StringVar(&signerID, "signer", "ops", "submitter id casting the approval")
	c.Flags().StringVar(&signature, "signature", "", "base64 ed25519 signature over (proposal_id, manifest_hash, consensus_height), required when the node runs a configured governance validator set")
	c.Flags().Uint64Var(&consensusHeight, "consensus-height", 0, "consensus height the approval is cast at")
	c.Flags().Uint64Var(&required, "required", 1, "size of the signer set; quorum is reached once more than half of it has approved")
	return c
}

func governanceApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [proposal-id]",
		Short: "carry out an approved proposal's module change against the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminAddr, _ := cmd.Flags().GetString("admin-addr")
			return doJSON("POST", adminAddr, "/api/governance/"+args[0]+"/apply", nil, nil)
		},
	}
}

func governanceRollbackCmd() *cobra.Command {
	var reason string
	c := &cobra.Command{
		Use:   "rollback [proposal-id]",
		Short: "reverse an applied proposal's module change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminAddr, _ := cmd.Flags().GetString("admin-addr")
			body := map[string]any{"reason": reason}
			return doJSON("POST", adminAddr, "/api/governance/"+args[0]+"/rollback", body, nil)
		},
	}
	c.Flags().StringVar(&reason, "reason", "", "why the proposal is being rolled back")
	return c
}

func governanceGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [proposal-id]",
		Short: "print a proposal's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminAddr, _ := cmd.Flags().GetString("admin-addr")
			var out map[string]any
			if err := doJSON("GET", adminAddr, "/api/governance/"+args[0], nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
