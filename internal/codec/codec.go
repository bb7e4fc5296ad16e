// Package codec encodes instruction arguments and account data in Borsh
// layout, driven by the field lists of a compiled program definition.
//
// Layouts:
//
//	string  u32 little-endian length, then UTF-8 bytes
//	pubkey  32 raw bytes
//	u8      1 byte
//	u64     8 bytes little-endian
//	bool    1 byte, 0 or 1
//
// Values are exchanged as map[string]any keyed by field name. Decoding
// produces string, identity.PublicKey, uint8, uint64, and bool.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/idl"
)

// MaxStringLen bounds decoded string lengths so a corrupt length prefix
// cannot force a large allocation.
const MaxStringLen = 10 * 1024

var (
	// ErrShortBuffer means the input ended before all fields were read.
	ErrShortBuffer = errors.New("codec: short buffer")

	// ErrTrailingBytes means bytes remained after the last field.
	ErrTrailingBytes = errors.New("codec: trailing bytes")

	// ErrDiscriminator means the data prefix did not match.
	ErrDiscriminator = errors.New("codec: discriminator mismatch")

	// ErrInvalidValue covers malformed field contents such as invalid UTF-8
	// or a bool byte other than 0 or 1.
	ErrInvalidValue = errors.New("codec: invalid value")
)

// FieldError attributes an encoding or decoding failure to a field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// EncodeInstruction returns discriminator || args for ix.
func EncodeInstruction(ix *idl.Instruction, args map[string]any) ([]byte, error) {
	return encode(ix.Discriminator, ix.Args, args)
}

// DecodeInstruction checks the discriminator of data against ix and decodes
// its arguments.
func DecodeInstruction(ix *idl.Instruction, data []byte) (map[string]any, error) {
	return decode(ix.Discriminator, ix.Args, data)
}

// EncodeAccount returns discriminator || fields for an account of type at.
func EncodeAccount(at *idl.AccountType, fields map[string]any) ([]byte, error) {
	return encode(at.Discriminator, at.Fields, fields)
}

// DecodeAccount checks the discriminator of data against at and decodes
// its fields.
func DecodeAccount(at *idl.AccountType, data []byte) (map[string]any, error) {
	return decode(at.Discriminator, at.Fields, data)
}

// SplitDiscriminator returns the 8-byte prefix of data.
func SplitDiscriminator(data []byte) (idl.Discriminator, []byte, error) {
	var d idl.Discriminator
	if len(data) < idl.DiscriminatorSize {
		return d, nil, ErrShortBuffer
	}
	copy(d[:], data[:idl.DiscriminatorSize])
	return d, data[idl.DiscriminatorSize:], nil
}

func encode(d idl.Discriminator, fields []idl.Field, values map[string]any) ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, d[:]...)

	for _, f := range fields {
		v, ok := values[f.Name]
		if !ok {
			return nil, &FieldError{Field: f.Name, Err: errors.New("missing value")}
		}
		var err error
		buf, err = appendValue(buf, f.Type, v)
		if err != nil {
			return nil, &FieldError{Field: f.Name, Err: err}
		}
	}
	if len(values) > len(fields) {
		for name := range values {
			if !hasField(fields, name) {
				return nil, &FieldError{Field: name, Err: errors.New("unknown field")}
			}
		}
	}
	return buf, nil
}

func hasField(fields []idl.Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func appendValue(buf []byte, t idl.FieldType, v any) ([]byte, error) {
	switch t {
	case idl.TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		if !utf8.ValidString(s) {
			return nil, ErrInvalidValue
		}
		if len(s) > MaxStringLen {
			return nil, fmt.Errorf("%w: string length %d exceeds %d", ErrInvalidValue, len(s), MaxStringLen)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
		return append(buf, s...), nil

	case idl.TypePubkey:
		switch pk := v.(type) {
		case identity.PublicKey:
			return append(buf, pk[:]...), nil
		case string:
			parsed, err := identity.ParsePublicKey(pk)
			if err != nil {
				return nil, err
			}
			return append(buf, parsed[:]...), nil
		default:
			return nil, fmt.Errorf("want public key, got %T", v)
		}

	case idl.TypeU8:
		n, err := toUint(v, 0xff)
		if err != nil {
			return nil, err
		}
		return append(buf, byte(n)), nil

	case idl.TypeU64:
		n, err := toUint(v, ^uint64(0))
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint64(buf, n), nil

	case idl.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", v)
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	}
	return nil, fmt.Errorf("unsupported type %q", t)
}

func toUint(v any, limit uint64) (uint64, error) {
	var n uint64
	switch x := v.(type) {
	case uint8:
		n = uint64(x)
	case uint64:
		n = x
	case uint:
		n = uint64(x)
	case int:
		if x < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ErrInvalidValue, x)
		}
		n = uint64(x)
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("%w: negative value %d", ErrInvalidValue, x)
		}
		n = uint64(x)
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
	if n > limit {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidValue, n)
	}
	return n, nil
}

func decode(d idl.Discriminator, fields []idl.Field, data []byte) (map[string]any, error) {
	got, rest, err := SplitDiscriminator(data)
	if err != nil {
		return nil, err
	}
	if got != d {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrDiscriminator, got, d)
	}

	r := &reader{buf: rest}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := r.value(f.Type)
		if err != nil {
			return nil, &FieldError{Field: f.Name, Err: err}
		}
		out[f.Name] = v
	}
	if len(r.buf) != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingBytes, len(r.buf))
	}
	return out, nil
}

type reader struct {
	buf []byte
}

func (r *reader) take(n int) ([]byte, error) {
	if len(r.buf) < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b, nil
}

func (r *reader) value(t idl.FieldType) (any, error) {
	switch t {
	case idl.TypeString:
		lenBytes, err := r.take(4)
		if err != nil {
			return nil, err
		}
		n := binary.LittleEndian.Uint32(lenBytes)
		if n > MaxStringLen {
			return nil, fmt.Errorf("%w: string length %d exceeds %d", ErrInvalidValue, n, MaxStringLen)
		}
		b, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, fmt.Errorf("%w: invalid UTF-8", ErrInvalidValue)
		}
		return string(b), nil

	case idl.TypePubkey:
		b, err := r.take(identity.PublicKeySize)
		if err != nil {
			return nil, err
		}
		var pk identity.PublicKey
		copy(pk[:], b)
		return pk, nil

	case idl.TypeU8:
		b, err := r.take(1)
		if err != nil {
			return nil, err
		}
		return b[0], nil

	case idl.TypeU64:
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.Uint64(b), nil

	case idl.TypeBool:
		b, err := r.take(1)
		if err != nil {
			return nil, err
		}
		switch b[0] {
		case 0:
			return false, nil
		case 1:
			return true, nil
		default:
			return nil, fmt.Errorf("%w: bool byte %d", ErrInvalidValue, b[0])
		}
	}
	return nil, fmt.Errorf("unsupported type %q", t)
}
