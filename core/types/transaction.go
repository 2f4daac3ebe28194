package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeTransfer TxType = 0x01 // Plain value transfer between accounts

	TxTypeCreateProgram      TxType = 0x10
	TxTypeEditProgram        TxType = 0x11
	TxTypeDeleteProgram      TxType = 0x12
	TxTypeVerifyProgram      TxType = 0x13 // Manager only
	TxTypeDeleteProgramAdmin TxType = 0x14 // Manager only

	TxTypeCreateReport      TxType = 0x20
	TxTypeCloseAndPayReport TxType = 0x21
	TxTypeDeleteReport      TxType = 0x22
	TxTypeDeleteReportAdmin TxType = 0x23 // Manager only

	TxTypeResignManager TxType = 0x30
	TxTypeSetCut        TxType = 0x31
	TxTypePayday        TxType = 0x32
)

var txTypeNames = map[TxType]string{
	TxTypeTransfer:           "transfer",
	TxTypeCreateProgram:      "create_program",
	TxTypeEditProgram:        "edit_program",
	TxTypeDeleteProgram:      "delete_program",
	TxTypeVerifyProgram:      "verify_program",
	TxTypeDeleteProgramAdmin: "delete_program_admin",
	TxTypeCreateReport:       "create_report",
	TxTypeCloseAndPayReport:  "close_and_pay_report",
	TxTypeDeleteReport:       "delete_report",
	TxTypeDeleteReportAdmin:  "delete_report_admin",
	TxTypeResignManager:      "resign_manager",
	TxTypeSetCut:             "set_cut",
	TxTypePayday:             "payday",
}

// String returns the snake_case operation name, used for metrics labels.
func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Valid reports whether the type is one the node knows how to apply.
func (t TxType) Valid() bool {
	_, ok := txTypeNames[t]
	return ok
}

// ParseTxType resolves an operation name back to its type.
func ParseTxType(name string) (TxType, bool) {
	for t, n := range txTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

var errUnsigned = errors.New("transaction: missing signature")

// Transaction is a signed request against the ledger. Operation arguments are
// carried as a JSON payload in Data; see the *Payload types below.
type Transaction struct {
	ChainID uint64 `json:"chainId"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	To      []byte `json:"to,omitempty"`
	Value   uint64 `json:"value,omitempty"`
	Data    []byte `json:"data,omitempty"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from []byte
}

// Hash returns the signing digest. Signatures are excluded.
func (tx *Transaction) Hash() ([]byte, error) {
	txData := struct {
		ChainID uint64
		Type    TxType
		Nonce   uint64
		To      []byte
		Value   uint64
		Data    []byte
	}{tx.ChainID, tx.Type, tx.Nonce, tx.To, tx.Value, tx.Data}

	b, err := json.Marshal(txData)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

// ID identifies a signed transaction. Unlike Hash it covers the signature,
// so identical requests from different signers never collide.
func (tx *Transaction) ID() ([]byte, error) {
	b, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(b), nil
}

// Sign signs the transaction with the supplied secp256k1 key.
func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer's 20-byte address.
func (tx *Transaction) From() ([]byte, error) {
	if tx.from != nil {
		return tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, errUnsigned
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	rBytes, sBytes := tx.R.Bytes(), tx.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 || tx.V.Uint64() < 27 {
		return nil, fmt.Errorf("transaction: malformed signature")
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return tx.from, nil
}

// SetPayload JSON-encodes payload into Data.
func (tx *Transaction) SetPayload(payload interface{}) error {
	if payload == nil {
		tx.Data = nil
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	tx.Data = data
	return nil
}

// DecodePayload unmarshals Data into out.
func (tx *Transaction) DecodePayload(out interface{}) error {
	if len(tx.Data) == 0 {
		return fmt.Errorf("transaction: %s requires a payload", tx.Type)
	}
	if err := json.Unmarshal(tx.Data, out); err != nil {
		return fmt.Errorf("transaction: decode %s payload: %w", tx.Type, err)
	}
	return nil
}

// ProgramPayload carries the mutable fields of a bounty program.
type ProgramPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// TargetPayload names another identity: the program to verify or delete, or
// the incoming manager.
type TargetPayload struct {
	Target []byte `json:"target"`
}

// CreateReportPayload files a finding against the program owned by To.
type CreateReportPayload struct {
	To          []byte `json:"to"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PaymentPayload is the payment leg attached to a settlement.
type PaymentPayload struct {
	Sender   []byte `json:"sender"`
	Receiver []byte `json:"receiver"`
	Amount   uint64 `json:"amount"`
}

// CloseAndPayPayload settles claim ClaimID with the attached payment.
type CloseAndPayPayload struct {
	ClaimID uint64         `json:"claimId"`
	Note    string         `json:"note"`
	Payment PaymentPayload `json:"payment"`
}

// ClaimPayload references an existing claim token.
type ClaimPayload struct {
	ClaimID uint64 `json:"claimId"`
}

// SetCutPayload replaces the platform cut rate.
type SetCutPayload struct {
	CutBps uint32 `json:"cutBps"`
}
