package tx

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mr-tron/base58"

	"github.com/Fantasim/solfan/internal/config"
)

func TestCompactU16_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		val  int
		want []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"max_single_byte", 127, []byte{0x7f}},
		{"two_bytes_min", 128, []byte{0x80, 0x01}},
		{"max_two_bytes", 16383, []byte{0xff, 0x7f}},
		{"three_bytes_min", 16384, []byte{0x80, 0x80, 0x01}},
		{"max", 65535, []byte{0xff, 0xff, 0x03}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			if err := EncodeCompactU16(buf, tt.val); err != nil {
				t.Fatalf("EncodeCompactU16(%d) error = %v", tt.val, err)
			}
			if !bytes.Equal(buf.Bytes(), tt.want) {
				t.Errorf("EncodeCompactU16(%d) = %v, want %v", tt.val, buf.Bytes(), tt.want)
			}

			got, n, err := DecodeCompactU16(append(buf.Bytes(), 0xee))
			if err != nil {
				t.Fatalf("DecodeCompactU16 error = %v", err)
			}
			if got != tt.val || n != len(tt.want) {
				t.Errorf("DecodeCompactU16 = (%d, %d), want (%d, %d)", got, n, tt.val, len(tt.want))
			}
		})
	}
}

func TestCompactU16_Invalid(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := EncodeCompactU16(buf, 65536); err == nil {
		t.Error("expected error for value > 65535")
	}
	if _, _, err := DecodeCompactU16([]byte{0x80}); !errors.Is(err, config.ErrMalformedTx) {
		t.Errorf("truncated decode error = %v, want ErrMalformedTx", err)
	}
	if _, _, err := DecodeCompactU16([]byte{0xff, 0xff, 0xff}); !errors.Is(err, config.ErrMalformedTx) {
		t.Errorf("overlong decode error = %v, want ErrMalformedTx", err)
	}
}

func TestSolPublicKeyFromBase58(t *testing.T) {
	addr := "3Cy3YNTFywCmxoxt8n7UH6hg6dLo5uACowX3CFceaSnx"
	pk, err := SolPublicKeyFromBase58(addr)
	if err != nil {
		t.Fatalf("SolPublicKeyFromBase58() error = %v", err)
	}
	if pk.ToBase58() != addr {
		t.Errorf("round-trip: got %s, want %s", pk.ToBase58(), addr)
	}

	if _, err := SolPublicKeyFromBase58("invalid!@#$"); err == nil {
		t.Error("expected error for invalid base58")
	}
	if _, err := SolPublicKeyFromBase58("111111"); err == nil {
		t.Error("expected error for wrong length")
	}
}

func TestBuildSystemTransferInstruction(t *testing.T) {
	from := SolPublicKey{1}
	to := SolPublicKey{2}

	ix := BuildSystemTransferInstruction(from, to, 1_000_000_000)

	if len(ix.Data) != 12 {
		t.Fatalf("SystemTransfer data length = %d, want 12", len(ix.Data))
	}
	if v := binary.LittleEndian.Uint32(ix.Data[0:4]); v != 2 {
		t.Errorf("variant = %d, want 2", v)
	}
	if amount := binary.LittleEndian.Uint64(ix.Data[4:12]); amount != 1_000_000_000 {
		t.Errorf("lamports = %d", amount)
	}
	if !ix.Accounts[0].IsSigner || !ix.Accounts[0].IsWritable {
		t.Error("from account should be signer+writable")
	}
	if ix.Accounts[1].IsSigner || !ix.Accounts[1].IsWritable {
		t.Error("to account should be writable, not signer")
	}
	if ix.ProgramID != solSystemProgramID {
		t.Errorf("program ID = %s, want system program", ix.ProgramID.ToBase58())
	}
}

func TestPriorityFeeInstructions(t *testing.T) {
	if ixs := PriorityFeeInstructions(0, 1000); len(ixs) != 0 {
		t.Errorf("zero fee produced %d instructions", len(ixs))
	}

	// 0.0005 SOL over 1000 CU = 500_000_000 micro-lamports per CU.
	ixs := PriorityFeeInstructions(500_000, 1000)
	if len(ixs) != 2 {
		t.Fatalf("instructions = %d, want 2", len(ixs))
	}

	limit := ixs[0]
	if limit.ProgramID != solComputeBudgetProgramID || limit.Data[0] != 2 {
		t.Errorf("first instruction should be SetComputeUnitLimit, got %v", limit.Data)
	}
	if units := binary.LittleEndian.Uint32(limit.Data[1:5]); units != 1000 {
		t.Errorf("units = %d, want 1000", units)
	}

	price := ixs[1]
	if price.Data[0] != 3 {
		t.Errorf("second instruction should be SetComputeUnitPrice, got %v", price.Data)
	}
	if micro := binary.LittleEndian.Uint64(price.Data[1:9]); micro != 500_000_000 {
		t.Errorf("micro-lamports = %d, want 500000000", micro)
	}
}

func TestCompileMessage_AccountOrdering(t *testing.T) {
	feePayer := SolPublicKey{1}
	dest := SolPublicKey{2}

	ixs := append(PriorityFeeInstructions(5000, 1000), BuildSystemTransferInstruction(feePayer, dest, 100))
	msg, err := CompileMessage(feePayer, ixs, [32]byte{0xab})
	if err != nil {
		t.Fatalf("CompileMessage error = %v", err)
	}

	if msg.AccountKeys[0] != feePayer {
		t.Errorf("account[0] = %v, want fee payer", msg.AccountKeys[0])
	}
	if msg.AccountKeys[1] != dest {
		t.Errorf("account[1] = %v, want writable destination", msg.AccountKeys[1])
	}
	if msg.Header.NumRequiredSignatures != 1 {
		t.Errorf("numRequiredSignatures = %d, want 1", msg.Header.NumRequiredSignatures)
	}
	// system program + compute budget program
	if msg.Header.NumReadonlyUnsignedAccounts != 2 {
		t.Errorf("numReadonlyUnsigned = %d, want 2", msg.Header.NumReadonlyUnsignedAccounts)
	}
}

func TestCompileMessage_Deduplication(t *testing.T) {
	feePayer := SolPublicKey{1}
	dest := SolPublicKey{2}

	ix1 := BuildSystemTransferInstruction(feePayer, dest, 100)
	ix2 := BuildSystemTransferInstruction(feePayer, dest, 200)

	msg, err := CompileMessage(feePayer, []SolInstruction{ix1, ix2}, [32]byte{})
	if err != nil {
		t.Fatalf("CompileMessage error = %v", err)
	}
	if len(msg.AccountKeys) != 3 {
		t.Errorf("account count = %d, want 3 (feePayer, dest, system program)", len(msg.AccountKeys))
	}
	if len(msg.Instructions) != 2 {
		t.Errorf("instruction count = %d, want 2", len(msg.Instructions))
	}
}

func TestSerializeMessage_Size(t *testing.T) {
	feePayer := SolPublicKey{1}
	dest := SolPublicKey{2}

	msg, err := CompileMessage(feePayer, []SolInstruction{BuildSystemTransferInstruction(feePayer, dest, 100)}, [32]byte{})
	if err != nil {
		t.Fatalf("CompileMessage error = %v", err)
	}
	msgBytes, err := SerializeMessage(msg)
	if err != nil {
		t.Fatalf("SerializeMessage error = %v", err)
	}

	// Header 3 + keys (1 + 3*32) + blockhash 32 + instruction (1 + 1 + 1 + 2 + 1 + 12) = 150
	if len(msgBytes) != 150 {
		t.Errorf("serialized message size = %d, want 150", len(msgBytes))
	}
}

func TestSignTransaction_MissingSigner(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	var feePayer SolPublicKey
	copy(feePayer[:], pub)

	ix := SolInstruction{
		ProgramID: solSystemProgramID,
		Accounts: []SolAccountMeta{
			{PubKey: feePayer, IsSigner: true, IsWritable: true},
			{PubKey: SolPublicKey{42}, IsSigner: true, IsWritable: true},
		},
		Data: make([]byte, 12),
	}

	msg, err := CompileMessage(feePayer, []SolInstruction{ix}, [32]byte{})
	if err != nil {
		t.Fatal(err)
	}
	msgBytes, _ := SerializeMessage(msg)

	if _, err := SignTransaction(msg, msgBytes, map[SolPublicKey]ed25519.PrivateKey{feePayer: priv}); err == nil {
		t.Error("expected error for missing signer")
	}
}

func TestBuildAndSerializeTransaction_Verifies(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	var feePayer SolPublicKey
	copy(feePayer[:], pub)

	ix := BuildSystemTransferInstruction(feePayer, SolPublicKey{2}, 1_000_000)
	txBytes, txSig, err := BuildAndSerializeTransaction(feePayer, []SolInstruction{ix}, [32]byte{0xab},
		map[SolPublicKey]ed25519.PrivateKey{feePayer: priv})
	if err != nil {
		t.Fatalf("BuildAndSerializeTransaction error = %v", err)
	}

	// 1 (sig count) + 64 (sig) + message
	sig := txBytes[1:65]
	if !ed25519.Verify(pub, txBytes[65:], sig) {
		t.Error("signature does not verify against the message")
	}
	if base58.Encode(sig) != txSig {
		t.Errorf("txSig = %s, want first signature", txSig)
	}
}

// unsignedTx builds a wire transaction with an empty signature slot, as a swap API returns it.
func unsignedTx(t *testing.T, feePayer SolPublicKey, versioned bool) []byte {
	t.Helper()
	msg, err := CompileMessage(feePayer, []SolInstruction{BuildSystemTransferInstruction(feePayer, SolPublicKey{7}, 10)}, [32]byte{0x01})
	if err != nil {
		t.Fatal(err)
	}
	msgBytes, err := SerializeMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	if versioned {
		// v0 prefix and an empty address table lookup list.
		msgBytes = append(append([]byte{0x80}, msgBytes...), 0x00)
	}
	return append(append([]byte{0x01}, make([]byte, 64)...), msgBytes...)
}

func TestSignSerializedTransaction(t *testing.T) {
	for _, versioned := range []bool{false, true} {
		name := "legacy"
		if versioned {
			name = "v0"
		}
		t.Run(name, func(t *testing.T) {
			pub, priv, _ := ed25519.GenerateKey(nil)
			var feePayer SolPublicKey
			copy(feePayer[:], pub)

			raw := unsignedTx(t, feePayer, versioned)
			signed, txID, err := SignSerializedTransaction(raw, priv)
			if err != nil {
				t.Fatalf("SignSerializedTransaction error = %v", err)
			}

			if !ed25519.Verify(pub, signed[65:], signed[1:65]) {
				t.Error("signature does not verify")
			}
			if txID != base58.Encode(signed[1:65]) {
				t.Error("txID should be the first signature")
			}
			if !bytes.Equal(raw[1:65], make([]byte, 64)) {
				t.Error("input buffer was modified")
			}
		})
	}
}

func TestSignSerializedTransaction_WrongSigner(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	_, other, _ := ed25519.GenerateKey(nil)
	var feePayer SolPublicKey
	copy(feePayer[:], pub)

	_, _, err := SignSerializedTransaction(unsignedTx(t, feePayer, false), other)
	if !errors.Is(err, config.ErrMalformedTx) {
		t.Errorf("error = %v, want ErrMalformedTx", err)
	}
}

func TestSignSerializedTransaction_Garbage(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	for _, raw := range [][]byte{nil, {0x00}, {0x01, 0x02}} {
		if _, _, err := SignSerializedTransaction(raw, priv); err == nil {
			t.Errorf("SignSerializedTransaction(%v) expected error", raw)
		}
	}
}
