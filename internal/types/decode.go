package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Indexer records are loosely typed: the same field can arrive as a string,
// a JSON number, or a big-integer-like value depending on the subgraph
// version that produced it. All decoding happens here, once, at the
// boundary; downstream code only ever sees canonical Go values.

// DecodeGameType normalizes a game type field into GameTypeBear or
// GameTypeBull. Accepted encodings: "Bull"/"Bear" (any case), numeric
// strings, JSON numbers, Go integer types, and *big.Int.
func DecodeGameType(v interface{}) (GameType, error) {
	switch t := v.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "bull":
			return GameTypeBull, nil
		case "bear":
			return GameTypeBear, nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unrecognized game type %q", t)
		}
		return gameTypeFromInt(n)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("unrecognized game type %q", t.String())
		}
		return gameTypeFromInt(n)
	case float64:
		return gameTypeFromInt(int64(t))
	case int:
		return gameTypeFromInt(int64(t))
	case int64:
		return gameTypeFromInt(t)
	case *big.Int:
		if t == nil {
			return 0, fmt.Errorf("nil big.Int game type")
		}
		return gameTypeFromInt(t.Int64())
	case nil:
		return 0, fmt.Errorf("missing game type")
	default:
		return 0, fmt.Errorf("unsupported game type encoding %T", v)
	}
}

func gameTypeFromInt(n int64) (GameType, error) {
	switch n {
	case 0:
		return GameTypeBear, nil
	case 1:
		return GameTypeBull, nil
	default:
		return 0, fmt.Errorf("game type out of range: %d", n)
	}
}

// DecodeInt64 normalizes a numeric field that may arrive as a string,
// JSON number, Go integer, or *big.Int.
func DecodeInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, fmt.Errorf("empty numeric string")
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return n, nil
	case json.Number:
		return t.Int64()
	case float64:
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case uint64:
		return int64(t), nil
	case *big.Int:
		if t == nil {
			return 0, fmt.Errorf("nil big.Int")
		}
		if !t.IsInt64() {
			return 0, fmt.Errorf("value out of int64 range: %s", t.String())
		}
		return t.Int64(), nil
	case nil:
		return 0, fmt.Errorf("missing numeric value")
	default:
		return 0, fmt.Errorf("unsupported numeric encoding %T", v)
	}
}

// DecodeUnixTimestamp normalizes a unix-seconds field (string or number)
// into epoch seconds. A zero value decodes to 0 without error.
func DecodeUnixTimestamp(v interface{}) (int64, error) {
	if v == nil {
		return 0, nil
	}
	ts, err := DecodeInt64(v)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp: %w", err)
	}
	if ts < 0 {
		return 0, fmt.Errorf("negative timestamp: %d", ts)
	}
	return ts, nil
}

// DecodeBigInt normalizes a big-integer field (wei-scale amounts) that may
// arrive as a decimal string, JSON number, or *big.Int.
func DecodeBigInt(v interface{}) (*big.Int, error) {
	switch t := v.(type) {
	case string:
		n, ok := new(big.Int).SetString(strings.TrimSpace(t), 10)
		if !ok {
			return nil, fmt.Errorf("not a big integer: %q", t)
		}
		return n, nil
	case json.Number:
		n, ok := new(big.Int).SetString(t.String(), 10)
		if !ok {
			return nil, fmt.Errorf("not a big integer: %q", t.String())
		}
		return n, nil
	case float64:
		return big.NewInt(int64(t)), nil
	case int64:
		return big.NewInt(t), nil
	case *big.Int:
		if t == nil {
			return nil, fmt.Errorf("nil big.Int")
		}
		return new(big.Int).Set(t), nil
	case nil:
		return nil, fmt.Errorf("missing big integer value")
	default:
		return nil, fmt.Errorf("unsupported big integer encoding %T", v)
	}
}

// NormalizeAddress lowercases an EVM address for storage. Checksum casing
// is a presentation concern, not a storage one.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// IsZeroAddress reports whether addr is empty or the EVM zero address.
func IsZeroAddress(addr string) bool {
	a := NormalizeAddress(addr)
	return a == "" || a == ZeroAddress
}
