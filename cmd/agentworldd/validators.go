package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/agentworld/runtime/internal/bridge"
	"github.com/agentworld/runtime/internal/registry"
	"github.com/agentworld/runtime/pkg/apperr"
)

// loadKeyFile reads a JSON file mapping an ID to a base64-encoded Ed25519
// public key, the wire format both the bridge's quorum validators and the
// registry's governance validators share. An empty path returns an empty
// map.
func loadKeyFile(path string) (map[string]ed25519.PublicKey, error) {
	out := make(map[string]ed25519.PublicKey)
	if path == "" {
		return out, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, "reading validators file")
	}
	var encoded map[string]string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, apperr.Wrap(err, "parsing validators file")
	}
	for id, b64 := range encoded {
		key, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, apperr.Newf(apperr.Validation, "agentworldd.bad_validator_key", "validator %s: %v", id, err)
		}
		out[id] = ed25519.PublicKey(key)
	}
	return out, nil
}

// loadVerifier builds a bridge.ThresholdVerifier from a JSON file mapping
// validator ID to a base64-encoded Ed25519 public key. An empty path runs
// an open gate (no known validators, threshold 0), useful for local
// development where no consensus quorum exists yet.
func loadVerifier(path string, threshold int) (bridge.QuorumVerifier, error) {
	keys, err := loadKeyFile(path)
	if err != nil {
		return nil, err
	}
	return bridge.ThresholdVerifier{Validators: bridge.ValidatorSet(keys), Threshold: threshold}, nil
}

// loadGovernanceValidators builds a registry.ValidatorSet from the same key
// file format. An empty path runs governance approval in open mode (no
// signature required).
func loadGovernanceValidators(path string) (registry.ValidatorSet, error) {
	keys, err := loadKeyFile(path)
	if err != nil {
		return nil, err
	}
	return registry.ValidatorSet(keys), nil
}
