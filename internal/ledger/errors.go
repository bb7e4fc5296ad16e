package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode identifies why the runtime rejected a transaction.
type ErrorCode string

const (
	// CodeMissingRequiredSignature: a required signer did not sign.
	CodeMissingRequiredSignature ErrorCode = "MissingRequiredSignature"

	// CodeSignatureVerificationFailed: a signature does not verify.
	CodeSignatureVerificationFailed ErrorCode = "SignatureVerificationFailed"

	// CodeUnexpectedSigner: a signature was supplied by a key the message
	// does not require.
	CodeUnexpectedSigner ErrorCode = "UnexpectedSigner"

	// CodeInvalidTransaction: the transaction is structurally malformed.
	CodeInvalidTransaction ErrorCode = "InvalidTransaction"

	// CodeAlreadyProcessed: a transaction with the same signature exists.
	CodeAlreadyProcessed ErrorCode = "AlreadyProcessed"

	// CodeProgramNotFound: no program is deployed at the instruction's
	// program ID.
	CodeProgramNotFound ErrorCode = "ProgramNotFound"

	// CodeInstructionNotFound: the data discriminator names no instruction.
	CodeInstructionNotFound ErrorCode = "InstructionNotFound"

	// CodeInstructionDidNotDeserialize: the arguments failed to decode.
	CodeInstructionDidNotDeserialize ErrorCode = "InstructionDidNotDeserialize"

	// CodeNotEnoughAccountKeys: fewer accounts than the instruction needs.
	CodeNotEnoughAccountKeys ErrorCode = "NotEnoughAccountKeys"

	// CodeAccountNotSigner: an account that must sign is not marked signer.
	CodeAccountNotSigner ErrorCode = "AccountNotSigner"

	// CodeAccountNotWritable: an account that is written is not writable.
	CodeAccountNotWritable ErrorCode = "AccountNotWritable"

	// CodeInvalidAccountAddress: a fixed-address slot got another key.
	CodeInvalidAccountAddress ErrorCode = "InvalidAccountAddress"

	// CodeAccountAlreadyInitialized: an account to create already exists.
	CodeAccountAlreadyInitialized ErrorCode = "AccountAlreadyInitialized"

	// CodeAccountOwnedByWrongProgram: a program tried to write an account
	// it does not own.
	CodeAccountOwnedByWrongProgram ErrorCode = "AccountOwnedByWrongProgram"
)

// TxLevel is the Instruction value of errors not tied to one instruction.
const TxLevel = -1

// TxError is a transaction rejection reported by the runtime. Rejections
// are data, not transport failures: they travel inside receipts and RPC
// results.
type TxError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	// Instruction is the index of the failing instruction, or TxLevel.
	Instruction int `json:"instruction"`
}

// NewTxError builds a transaction-level error.
func NewTxError(code ErrorCode, format string, args ...any) *TxError {
	return &TxError{Code: code, Message: fmt.Sprintf(format, args...), Instruction: TxLevel}
}

// NewInstructionError builds an error attributed to instruction i.
func NewInstructionError(i int, code ErrorCode, format string, args ...any) *TxError {
	return &TxError{Code: code, Message: fmt.Sprintf(format, args...), Instruction: i}
}

func (e *TxError) Error() string {
	if e.Instruction >= 0 {
		return fmt.Sprintf("%s: %s (instruction=%d)", e.Code, e.Message, e.Instruction)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *TxError with the same code, so callers can write
// errors.Is(err, &ledger.TxError{Code: ledger.CodeAccountNotSigner}).
func (e *TxError) Is(target error) bool {
	t, ok := target.(*TxError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *TxError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var te *TxError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// ErrAccountNotFound is returned by Client.GetAccount for unknown keys.
var ErrAccountNotFound = errors.New("account not found")
