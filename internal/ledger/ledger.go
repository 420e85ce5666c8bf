// Package ledger implements the append-only hash chain: proof-of-work block
// creation, full-chain validation by recomputation, and chain persistence
// through the key-value capability.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/KIWI0912/notar/internal/digest"
	"github.com/KIWI0912/notar/internal/kvstore"
)

// chainKey is the single persistence entry holding the serialized block
// sequence, in index order.
const chainKey = "chain"

// nonceStride is how often the mining loop checks for cancellation.
const nonceStride = 4096

// ErrMiningExhausted is returned when the nonce search exceeds its bound
// without matching the difficulty target. The chain is left unmodified.
var ErrMiningExhausted = errors.New("ledger: mining exhausted nonce space")

// IntegrityError reports the first block at which chain validation detected a
// hash or linkage mismatch. It is never auto-repaired.
type IntegrityError struct {
	Index  uint64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("chain integrity violated at block %d: %s", e.Index, e.Reason)
}

// Options tunes the proof-of-work search.
type Options struct {
	// Difficulty is the number of leading zero hex characters required of a
	// block hash.
	Difficulty uint8
	// MaxNonce bounds the linear nonce search.
	MaxNonce uint64
	// OnNonce, if set, is called periodically with the current nonce while
	// mining. Used for interactive progress reporting.
	OnNonce func(nonce uint64)
}

// ChainInfo is a summary of the chain tail.
type ChainInfo struct {
	BlockCount uint64        `json:"block_count"`
	LatestHash digest.Digest `json:"latest_hash"`
}

// Ledger owns the block sequence. All mutations go through CreateBlock; the
// chain is persisted as a single serialized sequence after every append.
type Ledger struct {
	mu    sync.Mutex
	kv    kvstore.Store
	opts  Options
	chain []Block
}

// New loads the persisted chain, or creates and persists the genesis block if
// no chain exists yet.
func New(ctx context.Context, kv kvstore.Store, opts Options) (*Ledger, error) {
	l := &Ledger{kv: kv, opts: opts}

	raw, err := kv.Get(ctx, chainKey)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &l.chain); err != nil {
			return nil, fmt.Errorf("failed to decode persisted chain: %w", err)
		}
		if len(l.chain) == 0 {
			return nil, fmt.Errorf("persisted chain is empty")
		}
		slog.Debug("Loaded chain", "blocks", len(l.chain))
	case errors.Is(err, kvstore.ErrKeyNotFound):
		genesis := Block{
			Index:        0,
			Timestamp:    time.Now().UTC(),
			PreviousHash: digest.Zero,
			Difficulty:   0,
			Transactions: []Transaction{},
		}
		genesis.Hash, err = genesis.ComputeHash()
		if err != nil {
			return nil, fmt.Errorf("failed to hash genesis block: %w", err)
		}
		l.chain = []Block{genesis}
		if err := l.persist(ctx); err != nil {
			return nil, err
		}
		slog.Info("Created genesis block", "hash", genesis.Hash)
	default:
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}

	return l, nil
}

// CreateBlock validates the transactions, mines a block extending the current
// tail, appends it, and persists the chain. On any failure (validation,
// exhausted search, cancellation, persistence) the chain is unchanged and no
// block is returned.
func (l *Ledger) CreateBlock(ctx context.Context, txs []Transaction) (Block, error) {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return Block{}, fmt.Errorf("invalid transaction: %w", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tail := l.chain[len(l.chain)-1]
	block := Block{
		Index:        tail.Index + 1,
		Timestamp:    time.Now().UTC(),
		PreviousHash: tail.Hash,
		Difficulty:   l.opts.Difficulty,
		Transactions: txs,
	}
	if block.Transactions == nil {
		block.Transactions = []Transaction{}
	}

	if err := l.mine(ctx, &block); err != nil {
		return Block{}, err
	}

	l.chain = append(l.chain, block)
	if err := l.persist(ctx); err != nil {
		l.chain = l.chain[:len(l.chain)-1]
		return Block{}, err
	}

	slog.Info("Appended block", "index", block.Index, "nonce", block.Nonce, "hash", block.Hash)
	return block, nil
}

// mine runs the linear nonce search: recompute the block hash after each nonce
// increment until the hex form starts with Difficulty zero characters. The
// search is bounded by MaxNonce and checks for cancellation every nonceStride
// nonces.
func (l *Ledger) mine(ctx context.Context, block *Block) error {
	target := strings.Repeat("0", int(block.Difficulty))

	for nonce := uint64(0); ; nonce++ {
		if nonce%nonceStride == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if l.opts.OnNonce != nil {
				l.opts.OnNonce(nonce)
			}
		}

		block.Nonce = nonce
		hash, err := block.ComputeHash()
		if err != nil {
			return fmt.Errorf("failed to hash block %d: %w", block.Index, err)
		}
		if strings.HasPrefix(hash.String(), target) {
			block.Hash = hash
			return nil
		}

		if nonce >= l.opts.MaxNonce {
			return ErrMiningExhausted
		}
	}
}

// Validate recomputes every block's hash and checks every linkage pointer. It
// returns nil for a valid chain, or an *IntegrityError naming the first
// invalid block.
func (l *Ledger) Validate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.chain {
		block := &l.chain[i]

		recomputed, err := block.ComputeHash()
		if err != nil {
			return &IntegrityError{Index: block.Index, Reason: fmt.Sprintf("hash recomputation failed: %v", err)}
		}
		if recomputed != block.Hash {
			return &IntegrityError{Index: block.Index, Reason: "stored hash does not match recomputation"}
		}

		if i == 0 {
			if !block.PreviousHash.IsZero() {
				return &IntegrityError{Index: block.Index, Reason: "genesis previous hash is not the zero sentinel"}
			}
			continue
		}
		if block.PreviousHash != l.chain[i-1].Hash {
			return &IntegrityError{Index: block.Index, Reason: "previous hash does not match prior block"}
		}
	}

	return nil
}

// Info returns the block count and the latest block hash.
func (l *Ledger) Info() ChainInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	return ChainInfo{
		BlockCount: uint64(len(l.chain)),
		LatestHash: l.chain[len(l.chain)-1].Hash,
	}
}

// Blocks returns a copy of the chain in index order.
func (l *Ledger) Blocks() []Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Block, len(l.chain))
	copy(out, l.chain)
	return out
}

func (l *Ledger) persist(ctx context.Context) error {
	raw, err := json.Marshal(l.chain)
	if err != nil {
		return fmt.Errorf("failed to encode chain: %w", err)
	}
	if err := l.kv.Set(ctx, chainKey, raw); err != nil {
		return fmt.Errorf("failed to persist chain: %w", err)
	}

	return nil
}
