package tx

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"

	"github.com/Fantasim/solfan/internal/config"
)

// Transferer builds, signs and submits native SOL transfers.
type Transferer struct {
	rpc RPC
}

// NewTransferer creates a transfer submitter over the given ledger client.
func NewTransferer(rpc RPC) *Transferer {
	return &Transferer{rpc: rpc}
}

// SubmitTransfer sends lamports from signer to destination and returns the
// signature without waiting for confirmation. A non-zero priorityFeeLamports
// prepends compute budget instructions; a zero fee sends a bare transfer.
func (t *Transferer) SubmitTransfer(ctx context.Context, signer ed25519.PrivateKey, destination string, lamports, priorityFeeLamports uint64) (string, error) {
	if len(signer) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("signer key must be %d bytes, got %d", ed25519.PrivateKeySize, len(signer))
	}
	if lamports == 0 {
		return "", fmt.Errorf("transfer amount must be positive")
	}

	destPubKey, err := SolPublicKeyFromBase58(destination)
	if err != nil {
		return "", fmt.Errorf("parse destination address: %w", err)
	}

	var fromPubKey SolPublicKey
	copy(fromPubKey[:], signer.Public().(ed25519.PublicKey))

	blockhash, err := t.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	instructions := PriorityFeeInstructions(priorityFeeLamports, config.TransferComputeUnitLimit)
	instructions = append(instructions, BuildSystemTransferInstruction(fromPubKey, destPubKey, lamports))

	txBytes, txSig, err := BuildAndSerializeTransaction(fromPubKey, instructions, blockhash.Hash,
		map[SolPublicKey]ed25519.PrivateKey{fromPubKey: signer})
	if err != nil {
		return "", fmt.Errorf("build tx: %w", err)
	}

	slog.Info("broadcasting SOL transfer",
		"from", fromPubKey.ToBase58(),
		"to", destination,
		"lamports", lamports,
		"priorityFee", priorityFeeLamports,
		"txSize", len(txBytes),
	)

	signature, err := t.rpc.SendTransaction(ctx, txBytes, SendOptions{PreflightCommitment: config.CommitmentConfirmed})
	if err != nil {
		return "", err
	}

	// Trust the node's echo, fall back to the locally computed signature.
	if signature == "" {
		signature = txSig
	}
	return signature, nil
}
