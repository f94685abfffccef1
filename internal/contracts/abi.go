// Package contracts holds the ABI descriptors for the game registry and
// per-game contracts, plus decoders for their call results.
package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// RegistryABIJSON describes the factory/registry contract that maps a
// chain-scoped integer game id to the deployed game contract address.
const RegistryABIJSON = `[
	{"name":"gameAddress","type":"function","stateMutability":"view",
	 "inputs":[{"name":"id","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

// GameABIJSON describes the per-game contract holding authoritative state:
// lifecycle flags, the player list, per-player coin selections, and
// per-coin price/score data.
const GameABIJSON = `[
	{"name":"gameInfo","type":"function","stateMutability":"view",
	 "inputs":[],
	 "outputs":[
		{"name":"started","type":"bool"},
		{"name":"finished","type":"bool"},
		{"name":"scoresDone","type":"bool"},
		{"name":"startTimestamp","type":"uint256"},
		{"name":"abortTimestamp","type":"uint256"},
		{"name":"totalAmountCollected","type":"uint256"}]},
	{"name":"players","type":"function","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"address[]"}]},
	{"name":"playerInfo","type":"function","stateMutability":"view",
	 "inputs":[{"name":"player","type":"address"}],
	 "outputs":[
		{"name":"captainCoin","type":"address"},
		{"name":"affiliate","type":"address"},
		{"name":"coinCount","type":"uint256"}]},
	{"name":"playerCoin","type":"function","stateMutability":"view",
	 "inputs":[{"name":"player","type":"address"},{"name":"index","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"name":"playerScore","type":"function","stateMutability":"view",
	 "inputs":[{"name":"player","type":"address"}],
	 "outputs":[{"name":"","type":"int256"}]},
	{"name":"coinData","type":"function","stateMutability":"view",
	 "inputs":[{"name":"token","type":"address"}],
	 "outputs":[
		{"name":"startPrice","type":"uint256"},
		{"name":"endPrice","type":"uint256"},
		{"name":"score","type":"int256"}]}
]`

var (
	// RegistryABI is the parsed registry contract ABI
	RegistryABI = mustParseABI(RegistryABIJSON)
	// GameABI is the parsed game contract ABI
	GameABI = mustParseABI(GameABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI descriptor: %v", err))
	}
	return parsed
}

// GameInfo is the decoded result of gameInfo().
type GameInfo struct {
	Started              bool
	Finished             bool
	ScoresDone           bool
	StartTimestamp       *big.Int
	AbortTimestamp       *big.Int
	TotalAmountCollected *big.Int
}

// PlayerInfo is the decoded result of playerInfo(address).
type PlayerInfo struct {
	CaptainCoin common.Address
	Affiliate   common.Address
	CoinCount   *big.Int
}

// CoinData is the decoded result of coinData(address).
type CoinData struct {
	StartPrice *big.Int
	EndPrice   *big.Int
	Score      *big.Int
}

// DecodeGameInfo decodes the unpacked output of a gameInfo() call.
func DecodeGameInfo(out []interface{}) (*GameInfo, error) {
	if len(out) != 6 {
		return nil, fmt.Errorf("gameInfo: expected 6 outputs, got %d", len(out))
	}
	started, ok0 := out[0].(bool)
	finished, ok1 := out[1].(bool)
	scoresDone, ok2 := out[2].(bool)
	startTS, ok3 := out[3].(*big.Int)
	abortTS, ok4 := out[4].(*big.Int)
	total, ok5 := out[5].(*big.Int)
	if !ok0 || !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return nil, fmt.Errorf("gameInfo: unexpected output types %T %T %T %T %T %T",
			out[0], out[1], out[2], out[3], out[4], out[5])
	}
	return &GameInfo{
		Started:              started,
		Finished:             finished,
		ScoresDone:           scoresDone,
		StartTimestamp:       startTS,
		AbortTimestamp:       abortTS,
		TotalAmountCollected: total,
	}, nil
}

// DecodePlayers decodes the unpacked output of a players() call.
func DecodePlayers(out []interface{}) ([]common.Address, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("players: expected 1 output, got %d", len(out))
	}
	players, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("players: unexpected output type %T", out[0])
	}
	return players, nil
}

// DecodePlayerInfo decodes the unpacked output of a playerInfo(address) call.
func DecodePlayerInfo(out []interface{}) (*PlayerInfo, error) {
	if len(out) != 3 {
		return nil, fmt.Errorf("playerInfo: expected 3 outputs, got %d", len(out))
	}
	captain, ok0 := out[0].(common.Address)
	affiliate, ok1 := out[1].(common.Address)
	count, ok2 := out[2].(*big.Int)
	if !ok0 || !ok1 || !ok2 {
		return nil, fmt.Errorf("playerInfo: unexpected output types %T %T %T", out[0], out[1], out[2])
	}
	return &PlayerInfo{CaptainCoin: captain, Affiliate: affiliate, CoinCount: count}, nil
}

// DecodeAddress decodes a single-address output (gameAddress, playerCoin).
func DecodeAddress(out []interface{}) (common.Address, error) {
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("expected 1 output, got %d", len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected output type %T", out[0])
	}
	return addr, nil
}

// DecodeBigInt decodes a single big-integer output (playerScore).
func DecodeBigInt(out []interface{}) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("expected 1 output, got %d", len(out))
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", out[0])
	}
	return n, nil
}

// DecodeCoinData decodes the unpacked output of a coinData(address) call.
func DecodeCoinData(out []interface{}) (*CoinData, error) {
	if len(out) != 3 {
		return nil, fmt.Errorf("coinData: expected 3 outputs, got %d", len(out))
	}
	start, ok0 := out[0].(*big.Int)
	end, ok1 := out[1].(*big.Int)
	score, ok2 := out[2].(*big.Int)
	if !ok0 || !ok1 || !ok2 {
		return nil, fmt.Errorf("coinData: unexpected output types %T %T %T", out[0], out[1], out[2])
	}
	return &CoinData{StartPrice: start, EndPrice: end, Score: score}, nil
}
