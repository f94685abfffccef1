package types

import (
	"encoding/json"
	"math/big"
	"testing"
)

func TestDecodeGameType(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    GameType
		wantErr bool
	}{
		{name: "string Bull", input: "Bull", want: GameTypeBull},
		{name: "string bear lowercase", input: "bear", want: GameTypeBear},
		{name: "string BULL uppercase", input: "BULL", want: GameTypeBull},
		{name: "numeric string", input: "1", want: GameTypeBull},
		{name: "json number", input: json.Number("0"), want: GameTypeBear},
		{name: "float64 from JSON", input: float64(1), want: GameTypeBull},
		{name: "big int", input: big.NewInt(1), want: GameTypeBull},
		{name: "int", input: 0, want: GameTypeBear},
		{name: "out of range", input: 2, wantErr: true},
		{name: "garbage string", input: "sideways", wantErr: true},
		{name: "nil", input: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeGameType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeGameType(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// All supported encodings of the same value must normalize identically.
func TestDecodeGameTypeEncodingsAgree(t *testing.T) {
	encodings := []interface{}{"Bull", "bull", "1", json.Number("1"), float64(1), int64(1), big.NewInt(1)}
	for _, enc := range encodings {
		got, err := DecodeGameType(enc)
		if err != nil {
			t.Fatalf("DecodeGameType(%v): %v", enc, err)
		}
		if got != GameTypeBull {
			t.Errorf("DecodeGameType(%v) = %v, want %v", enc, got, GameTypeBull)
		}
	}
}

func TestDecodeInt64(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    int64
		wantErr bool
	}{
		{name: "decimal string", input: "42", want: 42},
		{name: "padded string", input: " 7 ", want: 7},
		{name: "float64", input: float64(1200), want: 1200},
		{name: "json number", input: json.Number("99"), want: 99},
		{name: "big int", input: big.NewInt(123456789), want: 123456789},
		{name: "not a number", input: "not-a-number", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "nil", input: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInt64(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeInt64(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeUnixTimestamp(t *testing.T) {
	if ts, err := DecodeUnixTimestamp("1700000000"); err != nil || ts != 1700000000 {
		t.Errorf("string timestamp: got %d, %v", ts, err)
	}
	if ts, err := DecodeUnixTimestamp(float64(1700000000)); err != nil || ts != 1700000000 {
		t.Errorf("numeric timestamp: got %d, %v", ts, err)
	}
	if ts, err := DecodeUnixTimestamp(nil); err != nil || ts != 0 {
		t.Errorf("nil timestamp should be zero, got %d, %v", ts, err)
	}
	if _, err := DecodeUnixTimestamp("-5"); err == nil {
		t.Error("negative timestamp should fail")
	}
}

func TestNormalizeAddress(t *testing.T) {
	if got := NormalizeAddress(" 0xABCdef0000000000000000000000000000000001 "); got != "0xabcdef0000000000000000000000000000000001" {
		t.Errorf("NormalizeAddress = %q", got)
	}
	if !IsZeroAddress(ZeroAddress) || !IsZeroAddress("") {
		t.Error("zero address detection failed")
	}
	if IsZeroAddress("0xabcdef0000000000000000000000000000000001") {
		t.Error("non-zero address detected as zero")
	}
}
