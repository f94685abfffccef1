package types

import (
	"encoding/json"
	"math/big"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: every encoding of the same non-negative integer decodes to the
// same canonical value, regardless of whether it arrives as a string, a
// JSON number, or a big integer.
func TestDecodeInt64EncodingInvariance(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("string, number and big-int encodings agree", prop.ForAll(
		func(n int64) bool {
			asString, errS := DecodeInt64(strconv.FormatInt(n, 10))
			asNumber, errN := DecodeInt64(json.Number(strconv.FormatInt(n, 10)))
			asBig, errB := DecodeInt64(big.NewInt(n))
			if errS != nil || errN != nil || errB != nil {
				return false
			}
			return asString == n && asNumber == n && asBig == n
		},
		gen.Int64Range(0, 1<<52),
	))

	properties.Property("game type 0/1 decodes identically from all encodings", prop.ForAll(
		func(bull bool) bool {
			n := int64(0)
			if bull {
				n = 1
			}
			fromString, errS := DecodeGameType(strconv.FormatInt(n, 10))
			fromFloat, errF := DecodeGameType(float64(n))
			fromBig, errB := DecodeGameType(big.NewInt(n))
			if errS != nil || errF != nil || errB != nil {
				return false
			}
			return fromString == fromFloat && fromFloat == fromBig
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}
