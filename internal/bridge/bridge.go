// Package bridge is the consensus bridge (spec component C6): it accepts
// CommittedBatch values an external quorum already agreed on, executes
// them through the action pipeline, and produces the WorldBlock/
// WorldHeadAnnounce pair that lets followers advance their own
// max_executable_height gate. The inbound-queue/adapter-interface shape is
// grounded on the teacher's core/consensus.go networkAdapter interface
// (Broadcast/Subscribe), generalized from gossip-topic pub/sub to a single
// typed inbound channel of already-committed batches, since the bridge
// never participates in the agreement protocol itself (spec §6 — consensus
// happens upstream of this package).
package bridge

import (
	"crypto/ed25519"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/internal/pipeline"
	"github.com/agentworld/runtime/pkg/apperr"
)

// Bridge applies CommittedBatches in height order and tracks the
// max_executable_height gate (spec §6): a batch whose height is not
// exactly ExecutedHeight+1 is held back rather than applied out of order.
type Bridge struct {
	mu             sync.Mutex
	Pipeline       *pipeline.Pipeline
	Log            *zap.SugaredLogger
	ExecutedHeight uint64
	MaxExecutable  uint64
	pending        map[uint64]domain.CommittedBatch
	verifier       QuorumVerifier

	// ProposerID is recorded on every WorldBlock this node produces.
	ProposerID string
	// SigningKey, if set, signs each WorldBlock's ExecutionBlockHash. A nil
	// key leaves Signature empty, the same "open gate" convention
	// ThresholdVerifier uses for an unconfigured validator set.
	SigningKey ed25519.PrivateKey

	prevBlockHash          domain.Hash
	lastExecutionBlockHash domain.Hash
}

// QuorumVerifier checks a CommittedBatch's signature set against the
// validator set the bridge trusts. Swappable so tests can stub it out.
type QuorumVerifier interface {
	Verify(batch domain.CommittedBatch) error
}

// New builds a Bridge starting at executedHeight with gate maxExecutable
// (spec §6: the gate never lets the bridge run ahead of what the node is
// configured to execute, even if further batches are available).
func New(p *pipeline.Pipeline, verifier QuorumVerifier, executedHeight, maxExecutable uint64, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.L()
	}
	return &Bridge{
		Pipeline:       p,
		Log:            logger.Sugar(),
		ExecutedHeight: executedHeight,
		MaxExecutable:  maxExecutable,
		pending:        make(map[uint64]domain.CommittedBatch),
		verifier:       verifier,
	}
}

// Ingest accepts a CommittedBatch, verifying its quorum signature and
// buffering it if it arrives ahead of ExecutedHeight+1. It applies as many
// contiguous pending batches as the MaxExecutable gate allows.
func (b *Bridge) Ingest(batch domain.CommittedBatch) ([]domain.WorldBlock, error) {
	if err := b.verifier.Verify(batch); err != nil {
		return nil, apperr.Wrap(err, "verifying committed batch quorum signature")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if batch.Height <= b.ExecutedHeight {
		return nil, apperr.Newf(apperr.Validation, "bridge.stale_batch", "height %d already executed (at %d)", batch.Height, b.ExecutedHeight)
	}
	b.pending[batch.Height] = batch

	var blocks []domain.WorldBlock
	for {
		next := b.ExecutedHeight + 1
		if next > b.MaxExecutable {
			break
		}
		pendingBatch, ok := b.pending[next]
		if !ok {
			break
		}
		block, err := b.apply(pendingBatch)
		if err != nil {
			return blocks, err
		}
		delete(b.pending, next)
		b.ExecutedHeight = next
		blocks = append(blocks, *block)
	}
	return blocks, nil
}

// compositeBlockHash is the spec §4.6 execution_block_hash: a content hash
// over the chain of roots rather than a bare state hash, so a follower that
// only sees this one value can still tell whether the action set, the
// event journal or the resulting state diverged from what it computed
// itself.
func compositeBlockHash(prev, actionRoot, eventRoot, stateRoot, receiptsRoot domain.Hash) (domain.Hash, error) {
	h, err := hashAny(struct {
		PrevBlockHash domain.Hash `cbor:"prev_block_hash"`
		ActionRoot    domain.Hash `cbor:"action_root"`
		EventRoot     domain.Hash `cbor:"event_root"`
		StateRoot     domain.Hash `cbor:"state_root"`
		ReceiptsRoot  domain.Hash `cbor:"receipts_root"`
	}{prev, actionRoot, eventRoot, stateRoot, receiptsRoot})
	if err != nil {
		return "", err
	}
	return domain.Hash(h), nil
}

func (b *Bridge) apply(batch domain.CommittedBatch) (*domain.WorldBlock, error) {
	var receipts []domain.Receipt
	var first, last domain.EraCounter
	for i, action := range batch.Actions {
		receipt, err := b.Pipeline.Submit(action)
		if err != nil {
			return nil, apperr.Newf(apperr.Integrity, "bridge.apply_failed", "height %d action %d: %v", batch.Height, i, err)
		}
		receipts = append(receipts, *receipt)
		if len(receipt.Events) > 0 {
			if i == 0 {
				first = receipt.Events[0]
			}
			last = receipt.Events[len(receipt.Events)-1]
		}
	}

	actionRoot := batch.ActionRoot
	if actionRoot == "" {
		raw, err := hashAny(batch.Actions)
		if err != nil {
			return nil, apperr.Wrap(err, "hashing batch actions")
		}
		actionRoot = domain.Hash(raw)
	}

	eventRoot := b.Pipeline.Journal.Tip()

	receiptsRaw, err := hashAny(receipts)
	if err != nil {
		return nil, apperr.Wrap(err, "hashing batch receipts")
	}
	receiptsRoot := domain.Hash(receiptsRaw)

	stateRaw, err := b.Pipeline.World.StateHash(hashAny)
	if err != nil {
		return nil, apperr.Wrap(err, "hashing execution block")
	}
	stateRoot := domain.Hash(stateRaw)

	if batch.ExpectedStateRoot != "" && batch.ExpectedStateRoot != stateRoot {
		b.Log.Errorw("execution state root diverged from the batch's expected root",
			"height", batch.Height, "expected", batch.ExpectedStateRoot, "got", stateRoot)
	}

	execHash, err := compositeBlockHash(b.prevBlockHash, actionRoot, eventRoot, stateRoot, receiptsRoot)
	if err != nil {
		return nil, apperr.Wrap(err, "computing execution block hash")
	}

	block := &domain.WorldBlock{
		Height:             batch.Height,
		PrevBlockHash:      b.prevBlockHash,
		ActionRoot:         actionRoot,
		EventRoot:          eventRoot,
		StateRoot:          stateRoot,
		ReceiptsRoot:       receiptsRoot,
		ExecutionBlockHash: execHash,
		ExecutionStateRoot: stateRoot,
		JournalRef:         b.Pipeline.Journal.Length(),
		ProposerID:         b.ProposerID,
		TimestampMS:        time.Now().UnixMilli(),
		FirstSequence:      first,
		LastSequence:       last,
		Receipts:           receipts,
	}
	if b.SigningKey != nil {
		block.Signature = ed25519.Sign(b.SigningKey, []byte(execHash))
	}

	blockHashRaw, err := hashAny(block)
	if err != nil {
		return nil, apperr.Wrap(err, "hashing world block")
	}
	b.prevBlockHash = domain.Hash(blockHashRaw)
	b.lastExecutionBlockHash = execHash

	b.Log.Infow("committed batch executed", "height", batch.Height, "execution_block_hash", block.ExecutionBlockHash, "block_hash", b.prevBlockHash, "actions", len(batch.Actions))
	return block, nil
}

// Announce builds a WorldHeadAnnounce for the current executed tip.
func (b *Bridge) Announce() domain.WorldHeadAnnounce {
	b.mu.Lock()
	defer b.mu.Unlock()
	stateRaw, _ := b.Pipeline.World.StateHash(hashAny)
	return domain.WorldHeadAnnounce{
		Height:             b.ExecutedHeight,
		BlockHash:          b.prevBlockHash,
		StateRoot:          domain.Hash(stateRaw),
		ExecutionBlockHash: b.lastExecutionBlockHash,
	}
}

// ExecutedHeightValue returns the highest height applied so far.
func (b *Bridge) ExecutedHeightValue() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ExecutedHeight
}

// PendingBatchCount returns the number of batches buffered awaiting a
// contiguous height.
func (b *Bridge) PendingBatchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// RaiseGate advances MaxExecutable, letting previously-buffered batches
// apply on the next Ingest call. It never lowers the gate.
func (b *Bridge) RaiseGate(height uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if height > b.MaxExecutable {
		b.MaxExecutable = height
	}
}
