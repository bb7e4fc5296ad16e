package store

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
)

// marshalMessage converts a message to JSON TEXT for storage.
func marshalMessage(msg ledger.Message) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return string(data), nil
}

func unmarshalMessage(data string) (ledger.Message, error) {
	var msg ledger.Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return msg, fmt.Errorf("unmarshal message: %w", err)
	}
	return msg, nil
}

// slotParam converts a slot to the signed integer SQLite stores.
// go-sqlite3 rejects uint64 values with the high bit set.
func slotParam(slot uint64) (int64, error) {
	if slot > math.MaxInt64 {
		return 0, fmt.Errorf("slot %d out of range", slot)
	}
	return int64(slot), nil
}

func parseKeyColumn(col, value string) (identity.PublicKey, error) {
	pk, err := identity.ParsePublicKey(value)
	if err != nil {
		return pk, fmt.Errorf("column %s: %w", col, err)
	}
	return pk, nil
}
