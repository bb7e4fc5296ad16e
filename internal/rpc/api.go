// Package rpc exposes a localnet runtime over JSON-RPC and provides the
// matching ledger client.
//
// The server registers the Ledger namespace on /rpc/v0. Rejections are
// part of the result payloads rather than JSON-RPC errors, so a client can
// tell a refused transaction from a broken connection.
package rpc

import (
	"github.com/roach88/tastefi/internal/ledger"
)

// Namespace is the JSON-RPC method prefix.
const Namespace = "Ledger"

// Path is where the JSON-RPC handler is mounted.
const Path = "/rpc/v0"

// SendResult is the reply to SendTransaction. Err is set when the
// transaction failed preflight and was never queued.
type SendResult struct {
	Signature ledger.Signature `json:"signature"`
	Err       *ledger.TxError  `json:"err,omitempty"`
}
