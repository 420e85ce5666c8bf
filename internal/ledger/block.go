package ledger

import (
	"fmt"
	"time"

	"github.com/KIWI0912/notar/internal/digest"
)

// PayloadKind discriminates the closed set of transaction payload variants.
type PayloadKind string

const (
	// PayloadContractDeployment anchors a generated contract document.
	PayloadContractDeployment PayloadKind = "contract_deployment"
	// PayloadGeneric carries arbitrary structured fields.
	PayloadGeneric PayloadKind = "generic"
)

// ContractDeployment references a stored document by its content digest.
type ContractDeployment struct {
	TemplateID    string        `json:"template_id"`
	Version       string        `json:"version"`
	FileName      string        `json:"file_name"`
	ContentDigest digest.Digest `json:"content_digest"`
}

// Payload is a tagged variant; exactly the field matching Kind is set.
type Payload struct {
	Kind     PayloadKind         `json:"kind"`
	Contract *ContractDeployment `json:"contract,omitempty"`
	Fields   map[string]any      `json:"fields,omitempty"`
}

// Transaction is owned by the block that contains it and is immutable after
// block creation.
type Transaction struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    int64   `json:"amount"`
	Fee       int64   `json:"fee"`
	Data      Payload `json:"data"`
	Signature string  `json:"signature,omitempty"`
	Status    string  `json:"status"`
}

// Validate checks the transaction against the fixed payload contract.
func (tx Transaction) Validate() error {
	if tx.ID == "" {
		return fmt.Errorf("transaction is missing an id")
	}
	if tx.Amount < 0 {
		return fmt.Errorf("transaction %s has negative amount %d", tx.ID, tx.Amount)
	}
	if tx.Fee < 0 {
		return fmt.Errorf("transaction %s has negative fee %d", tx.ID, tx.Fee)
	}

	switch tx.Data.Kind {
	case PayloadContractDeployment:
		if tx.Data.Contract == nil {
			return fmt.Errorf("transaction %s: contract_deployment payload without contract", tx.ID)
		}
	case PayloadGeneric:
		if tx.Data.Contract != nil {
			return fmt.Errorf("transaction %s: generic payload carries a contract", tx.ID)
		}
	default:
		return fmt.Errorf("transaction %s: unknown payload kind %q", tx.ID, tx.Data.Kind)
	}

	return nil
}

// Block is one link of the hash chain.
type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    time.Time     `json:"timestamp"`
	PreviousHash digest.Digest `json:"previous_hash"`
	Hash         digest.Digest `json:"hash"`
	Nonce        uint64        `json:"nonce"`
	Difficulty   uint8         `json:"difficulty"`
	Transactions []Transaction `json:"transactions"`
}

// blockSeal is the canonical hashing payload. The timestamp is reduced to Unix
// nanoseconds so recomputation is bit-stable across serialization round-trips.
type blockSeal struct {
	Index        uint64        `json:"index"`
	Timestamp    int64         `json:"timestamp"`
	PreviousHash digest.Digest `json:"previous_hash"`
	Transactions []Transaction `json:"transactions"`
	Nonce        uint64        `json:"nonce"`
}

// ComputeHash recomputes the block's digest from its immutable fields.
func (b *Block) ComputeHash() (digest.Digest, error) {
	return digest.Canonical(blockSeal{
		Index:        b.Index,
		Timestamp:    b.Timestamp.UnixNano(),
		PreviousHash: b.PreviousHash,
		Transactions: b.Transactions,
		Nonce:        b.Nonce,
	})
}
