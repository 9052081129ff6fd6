package bridge

import (
	"crypto/ed25519"

	"filippo.io/edwards25519"

	"github.com/agentworld/runtime/internal/codec"
	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/pkg/apperr"
)

// ValidatorSet maps a validator ID to its Ed25519 public key.
type ValidatorSet map[string]ed25519.PublicKey

// ThresholdVerifier implements QuorumVerifier by checking that at least
// Threshold distinct, known validators signed a CommittedBatch, following
// spec §6's requirement for an Ed25519/threshold-Ed25519 signature format.
// It verifies each signer's signature individually (crypto/ed25519) rather
// than a single aggregated signature — true FROST-style aggregation would
// need the signers to run an interactive key-generation round the bridge
// never participates in — and does not combine the signers' keys in any
// way. CommitmentPoint, which sums a set of public keys into one
// edwards25519 point, is a separate informational helper that Verify does
// not call.
type ThresholdVerifier struct {
	Validators ValidatorSet
	Threshold  int
}

// Verify reports whether batch carries signatures from at least Threshold
// distinct known validators, each valid over the canonical encoding of the
// batch's height and actions.
func (v ThresholdVerifier) Verify(batch domain.CommittedBatch) error {
	if len(batch.Signers) != len(batch.QuorumSig) {
		return apperr.New(apperr.Validation, "bridge.signer_sig_mismatch", nil)
	}
	message, err := codec.Encode(struct {
		Height  uint64          `cbor:"height"`
		Actions []domain.Action `cbor:"actions"`
	}{batch.Height, batch.Actions})
	if err != nil {
		return apperr.Wrap(err, "encoding batch for signature verification")
	}

	seen := make(map[string]struct{}, len(batch.Signers))
	valid := 0
	for i, signer := range batch.Signers {
		if _, dup := seen[signer]; dup {
			continue
		}
		pub, ok := v.Validators[signer]
		if !ok {
			continue
		}
		if ed25519.Verify(pub, message, batch.QuorumSig[i]) {
			seen[signer] = struct{}{}
			valid++
		}
	}
	if valid < v.Threshold {
		return apperr.Newf(apperr.Validation, "bridge.quorum_not_met", "%d of %d required signatures verified", valid, v.Threshold)
	}
	return nil
}

// CommitmentPoint returns the edwards25519 point formed by summing the
// public keys of every validator in signers, giving the quorum a single
// curve-point identity independent of signer ordering (since point
// addition is commutative). It is informational: Verify above is what
// actually gates acceptance.
func CommitmentPoint(validators ValidatorSet, signers []string) (*edwards25519.Point, error) {
	sum := edwards25519.NewIdentityPoint()
	for _, id := range signers {
		pub, ok := validators[id]
		if !ok {
			continue
		}
		p, err := new(edwards25519.Point).SetBytes(pub)
		if err != nil {
			return nil, apperr.Newf(apperr.Validation, "bridge.invalid_validator_key", "validator %s: %v", id, err)
		}
		sum = sum.Add(sum, p)
	}
	return sum, nil
}
