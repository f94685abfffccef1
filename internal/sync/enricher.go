package sync

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/game-sync-engine/internal/contracts"
	"github.com/game-sync-engine/internal/logging"
	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/types"
)

// Enricher pulls authoritative per-game state from the game contract and
// synchronizes it into the child records: participants, coin selections,
// coin price/score feeds, and the final result.
type Enricher struct {
	reader       ContractReader
	games        GameStore
	accounts     AccountStore
	participants ParticipantStore
	coinFeeds    CoinFeedStore
	tokens       TokenStore
	results      ResultStore

	// callDelay is the fixed pause between sequential per-player contract
	// reads. Deliberately sequential to stay under provider rate limits.
	callDelay time.Duration

	log *logging.Logger
}

// NewEnricher creates a detail enricher.
func NewEnricher(reader ContractReader, stores Stores, callDelay time.Duration) *Enricher {
	return &Enricher{
		reader:       reader,
		games:        stores.Games,
		accounts:     stores.Accounts,
		participants: stores.Participants,
		coinFeeds:    stores.CoinFeeds,
		tokens:       stores.Tokens,
		results:      stores.Results,
		callDelay:    callDelay,
		log:          logging.GetGlobalLogger().WithField("component", "enricher"),
	}
}

// Enrich reads the game contract and updates the game row plus all child
// records. Any contract-read failure surviving the reader's retries
// propagates to the caller, which records it without aborting the batch.
func (e *Enricher) Enrich(ctx context.Context, game *models.Game) error {
	if types.IsZeroAddress(game.Address) {
		return fmt.Errorf("game %d/%d has no contract address", game.IntID, game.ChainID)
	}

	out, err := e.reader.Call(ctx, game.ChainID, game.Address, contracts.GameABI, "gameInfo")
	if err != nil {
		return fmt.Errorf("gameInfo read failed: %w", err)
	}
	info, err := contracts.DecodeGameInfo(out)
	if err != nil {
		return err
	}

	e.applyGameInfo(game, info)
	if _, err := e.games.Upsert(ctx, game); err != nil {
		return err
	}

	out, err = e.reader.Call(ctx, game.ChainID, game.Address, contracts.GameABI, "players")
	if err != nil {
		return fmt.Errorf("players read failed: %w", err)
	}
	players, err := contracts.DecodePlayers(out)
	if err != nil {
		return err
	}
	if len(players) == 0 {
		return nil
	}

	addresses := make([]string, 0, len(players))
	for _, p := range players {
		addresses = append(addresses, types.NormalizeAddress(p.Hex()))
	}
	if err := e.accounts.EnsureAccounts(ctx, addresses); err != nil {
		return err
	}

	coins := make(map[string]bool)
	for i, player := range players {
		if err := e.enrichPlayer(ctx, game, player, i, coins); err != nil {
			return fmt.Errorf("player %s: %w", types.NormalizeAddress(player.Hex()), err)
		}
	}

	finished := info.Finished && info.ScoresDone
	for coin := range coins {
		if err := e.enrichCoin(ctx, game, coin, finished); err != nil {
			return fmt.Errorf("coin %s: %w", coin, err)
		}
	}

	if finished {
		return e.finalize(ctx, game, players, addresses, info)
	}
	return nil
}

// applyGameInfo folds the contract's lifecycle flags and amounts into the
// game row. Finished takes precedence over started.
func (e *Enricher) applyGameInfo(game *models.Game, info *contracts.GameInfo) {
	switch {
	case info.Finished:
		game.Status = types.StatusEnded
	case info.Started:
		game.Status = types.StatusStarted
	default:
		game.Status = types.StatusWaiting
	}

	if info.StartTimestamp != nil && info.StartTimestamp.IsInt64() && info.StartTimestamp.Int64() > 0 {
		game.StartTimestamp = info.StartTimestamp.Int64()
		if info.Started {
			started := time.Unix(game.StartTimestamp, 0).UTC()
			game.StartedAt = &started
		}
	}
	if info.AbortTimestamp != nil && info.AbortTimestamp.IsInt64() {
		game.AbortTimestamp = info.AbortTimestamp.Int64()
	}
	if info.Finished {
		ended := e.endedAt(game)
		game.EndedAt = &ended
	}
	if info.TotalAmountCollected != nil {
		total := info.TotalAmountCollected.String()
		game.TotalAmountCollected = &total
	}
}

// endedAt derives the end time from start + duration when both are known.
func (e *Enricher) endedAt(game *models.Game) time.Time {
	if game.StartTimestamp > 0 && game.Duration > 0 {
		return time.Unix(game.StartTimestamp+game.Duration, 0).UTC()
	}
	return time.Now().UTC()
}

// enrichPlayer upserts one participant and its coin selections. Contract
// reads are sequential with a fixed delay between calls.
func (e *Enricher) enrichPlayer(ctx context.Context, game *models.Game, player common.Address, index int, coins map[string]bool) error {
	if err := sleepCtx(ctx, e.callDelay); err != nil {
		return err
	}

	out, err := e.reader.Call(ctx, game.ChainID, game.Address, contracts.GameABI, "playerInfo", player)
	if err != nil {
		return fmt.Errorf("playerInfo read failed: %w", err)
	}
	info, err := contracts.DecodePlayerInfo(out)
	if err != nil {
		return err
	}

	captain := types.NormalizeAddress(info.CaptainCoin.Hex())
	participant := &models.GameParticipant{
		GameID:      game.ID,
		UserAddress: types.NormalizeAddress(player.Hex()),
		CaptainCoin: captain,
		Index:       index,
	}
	if affiliate := types.NormalizeAddress(info.Affiliate.Hex()); !types.IsZeroAddress(affiliate) {
		participant.Affiliate = &affiliate
	}

	participantID, err := e.participants.Upsert(ctx, participant)
	if err != nil {
		return err
	}
	if !types.IsZeroAddress(captain) {
		coins[captain] = true
	}

	coinCount := int64(0)
	if info.CoinCount != nil && info.CoinCount.IsInt64() {
		coinCount = info.CoinCount.Int64()
	}
	for i := int64(0); i < coinCount; i++ {
		if err := sleepCtx(ctx, e.callDelay); err != nil {
			return err
		}
		out, err := e.reader.Call(ctx, game.ChainID, game.Address, contracts.GameABI, "playerCoin", player, big.NewInt(i))
		if err != nil {
			return fmt.Errorf("playerCoin(%d) read failed: %w", i, err)
		}
		addr, err := contracts.DecodeAddress(out)
		if err != nil {
			return err
		}
		coin := types.NormalizeAddress(addr.Hex())
		if types.IsZeroAddress(coin) {
			continue
		}
		if err := e.participants.AppendCoinFeed(ctx, participantID, coin); err != nil {
			return err
		}
		coins[coin] = true
	}
	return nil
}

// enrichCoin reads on-chain price/score data once per distinct coin for
// the whole game and upserts the game-level feed row.
func (e *Enricher) enrichCoin(ctx context.Context, game *models.Game, coin string, finished bool) error {
	if err := sleepCtx(ctx, e.callDelay); err != nil {
		return err
	}

	out, err := e.reader.Call(ctx, game.ChainID, game.Address, contracts.GameABI, "coinData", common.HexToAddress(coin))
	if err != nil {
		return fmt.Errorf("coinData read failed: %w", err)
	}
	data, err := contracts.DecodeCoinData(out)
	if err != nil {
		return err
	}

	if err := e.tokens.Ensure(ctx, game.ChainID, coin); err != nil {
		return err
	}

	feed := &models.GameCoinFeed{
		GameID:       game.ID,
		TokenAddress: coin,
		StartPrice:   data.StartPrice.String(),
	}
	// End price and score only settle once the game finishes; before
	// that the contract reports zeros, which must not overwrite NULLs.
	if finished {
		endPrice := data.EndPrice.String()
		score := data.Score.String()
		feed.EndPrice = &endPrice
		feed.Score = &score
	}
	return e.coinFeeds.Upsert(ctx, feed)
}

// playerScore pairs a player with their final on-chain score.
type playerScore struct {
	address string
	score   *big.Int
}

// finalize ranks players by score and writes the winner's result row.
// Bear games rank ascending, bull games descending; the winner is index
// 0 after ranking. The result row is written exactly once per game.
func (e *Enricher) finalize(ctx context.Context, game *models.Game, players []common.Address, addresses []string, info *contracts.GameInfo) error {
	scores := make([]playerScore, 0, len(players))
	for i, player := range players {
		if err := sleepCtx(ctx, e.callDelay); err != nil {
			return err
		}
		out, err := e.reader.Call(ctx, game.ChainID, game.Address, contracts.GameABI, "playerScore", player)
		if err != nil {
			return fmt.Errorf("playerScore read failed: %w", err)
		}
		score, err := contracts.DecodeBigInt(out)
		if err != nil {
			return err
		}
		scores = append(scores, playerScore{address: addresses[i], score: score})
	}
	if len(scores) == 0 {
		return nil
	}

	sort.SliceStable(scores, func(i, j int) bool {
		cmp := scores[i].score.Cmp(scores[j].score)
		if game.Type == types.GameTypeBear {
			return cmp < 0
		}
		return cmp > 0
	})
	winner := scores[0]

	prize := winnerPrize(totalCollected(info), len(players))
	result := &models.GameResult{
		GameID:        game.ID,
		WinnerAddress: winner.address,
		Score:         winner.score.String(),
		Prize:         prize.String(),
	}
	inserted, err := e.results.Upsert(ctx, result)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	e.log.WithFields(map[string]interface{}{
		"chainId": game.ChainID,
		"intId":   game.IntID,
		"winner":  winner.address,
		"prize":   prize.String(),
	}).Info("game result recorded")

	if err := e.accounts.IncrementGamesWon(ctx, winner.address); err != nil {
		return err
	}
	return e.accounts.IncrementGamesPlayed(ctx, addresses)
}

func totalCollected(info *contracts.GameInfo) *big.Int {
	if info.TotalAmountCollected == nil {
		return new(big.Int)
	}
	return info.TotalAmountCollected
}

// winnerPrize computes the winner's payout share: 80% of the pot for
// games of up to three players, 80% of a 60% top-tier slot otherwise.
// Only the winner's share is ever persisted.
func winnerPrize(total *big.Int, playerCount int) *big.Int {
	prize := new(big.Int).Mul(total, big.NewInt(80))
	prize.Div(prize, big.NewInt(100))
	if playerCount > 3 {
		prize.Mul(prize, big.NewInt(60))
		prize.Div(prize, big.NewInt(100))
	}
	return prize
}
