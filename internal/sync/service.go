// Package sync implements the game reconciliation pipeline: it pages
// game records out of the per-chain indexer, reconciles them against the
// relational store with idempotent upserts, and enriches each game from
// authoritative contract state.
package sync

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/game-sync-engine/internal/contracts"
	apperrors "github.com/game-sync-engine/internal/errors"
	"github.com/game-sync-engine/internal/indexer"
	"github.com/game-sync-engine/internal/logging"
	"github.com/game-sync-engine/internal/models"
	"github.com/game-sync-engine/internal/retry"
	"github.com/game-sync-engine/internal/types"
)

// GameStore persists game rows.
type GameStore interface {
	Upsert(ctx context.Context, game *models.Game) (bool, error)
	ListByIntIDs(ctx context.Context, chainID types.ChainID, intIDs []int64) (map[int64]*models.Game, error)
}

// AccountStore persists user accounts.
type AccountStore interface {
	EnsureAccounts(ctx context.Context, addresses []string) error
	FilterExisting(ctx context.Context, addresses []string) (map[string]bool, error)
	IncrementGamesWon(ctx context.Context, address string) error
	IncrementGamesPlayed(ctx context.Context, addresses []string) error
}

// ParticipantStore persists game participants and their coin selections.
type ParticipantStore interface {
	Upsert(ctx context.Context, p *models.GameParticipant) (string, error)
	AppendCoinFeed(ctx context.Context, participantID, tokenAddress string) error
}

// CoinFeedStore persists per-game coin price/score feeds.
type CoinFeedStore interface {
	Upsert(ctx context.Context, feed *models.GameCoinFeed) error
}

// TokenStore registers tokens seen as coin feeds.
type TokenStore interface {
	Ensure(ctx context.Context, chainID types.ChainID, address string) error
}

// ResultStore persists final game results.
type ResultStore interface {
	Upsert(ctx context.Context, result *models.GameResult) (bool, error)
}

// Stores bundles the persistence interfaces the pipeline writes through.
type Stores struct {
	Games        GameStore
	Accounts     AccountStore
	Participants ParticipantStore
	CoinFeeds    CoinFeedStore
	Tokens       TokenStore
	Results      ResultStore
}

// GameFetcher pages game records out of a chain's indexer.
type GameFetcher interface {
	FetchGames(ctx context.Context, chainID types.ChainID, opts *indexer.FetchOptions) ([]indexer.GameRecord, error)
	HasChain(chainID types.ChainID) bool
}

// ContractReader executes read-only contract calls.
type ContractReader interface {
	Call(ctx context.Context, chainID types.ChainID, contractAddr string, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error)
	HasChain(chainID types.ChainID) bool
}

// AddressCache caches resolved game contract addresses. Optional.
type AddressCache interface {
	GetGameAddress(ctx context.Context, chainID types.ChainID, intID int64) string
	SetGameAddress(ctx context.Context, chainID types.ChainID, intID int64, address string) error
}

// GameEnricher pulls authoritative contract state for one game.
type GameEnricher interface {
	Enrich(ctx context.Context, game *models.Game) error
}

// Options controls one sync call.
type Options struct {
	// Status filters indexer records by status when set.
	Status *string
	// Limit is the page size. Defaults to the configured page size.
	Limit int
	// Skip is the starting page offset.
	Skip int
	// SyncAll keeps paging while pages come back full.
	SyncAll bool
	// UpdateExisting re-syncs games already on file instead of skipping
	// them.
	UpdateExisting bool
}

// Result aggregates the counters of one sync call.
type Result struct {
	Synced       int      `json:"synced"`
	Updated      int      `json:"updated"`
	Skipped      int      `json:"skipped"`
	Errors       int      `json:"errors"`
	ErrorDetails []string `json:"errorsDetails,omitempty"`
}

// ServiceConfig configures the reconciliation service.
type ServiceConfig struct {
	// Registries maps each chain to its game registry contract address.
	Registries map[types.ChainID]string
	// DefaultPageSize is the page size used when Options.Limit is unset.
	DefaultPageSize int
	// DetailCallDelay is the fixed pause between sequential per-player
	// contract reads during enrichment.
	DetailCallDelay time.Duration
}

// Service is the game reconciliation pipeline.
type Service struct {
	fetcher    GameFetcher
	reader     ContractReader
	stores     Stores
	cache      AddressCache
	enricher   GameEnricher
	registries map[types.ChainID]string
	pageSize   int
	fetchRetry *retry.RetryConfig

	sentinelOnce sync.Once
	log          *logging.Logger
}

// NewService creates a reconciliation service. cache may be nil.
func NewService(fetcher GameFetcher, reader ContractReader, stores Stores, cache AddressCache, cfg ServiceConfig) *Service {
	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Service{
		fetcher:    fetcher,
		reader:     reader,
		stores:     stores,
		cache:      cache,
		enricher:   NewEnricher(reader, stores, cfg.DetailCallDelay),
		registries: cfg.Registries,
		pageSize:   pageSize,
		fetchRetry: &retry.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			ShouldRetry: func(err error) bool {
				return !stderrors.Is(err, indexer.ErrEndpointRemoved)
			},
		},
		log: logging.GetGlobalLogger().WithField("component", "sync"),
	}
}

// SetEnricher overrides the detail enricher. Tests only.
func (s *Service) SetEnricher(e GameEnricher) {
	s.enricher = e
}

// Sync reconciles one chain's games against the indexer. Configuration
// gaps and a removed indexer endpoint fail the whole call; every other
// failure is absorbed into the per-game counters.
func (s *Service) Sync(ctx context.Context, chainID types.ChainID, opts Options) (*Result, error) {
	res := &Result{}

	if !s.fetcher.HasChain(chainID) {
		return res, apperrors.NewMissingChainConfigError(chainID, "indexer endpoint")
	}
	if !s.reader.HasChain(chainID) {
		return res, apperrors.NewMissingChainConfigError(chainID, "RPC endpoints")
	}
	if types.IsZeroAddress(s.registries[chainID]) {
		return res, apperrors.NewMissingChainConfigError(chainID, "registry address")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	skip := opts.Skip

	for {
		page, err := s.fetchPage(ctx, chainID, &indexer.FetchOptions{
			Status: opts.Status,
			Skip:   skip,
			First:  limit,
		})
		if err != nil {
			if stderrors.Is(err, indexer.ErrEndpointRemoved) {
				return res, apperrors.NewEndpointRemovedError(chainID, err)
			}
			return res, fmt.Errorf("indexer fetch failed for chain %d: %w", chainID, err)
		}
		if len(page) == 0 {
			break
		}

		s.syncPage(ctx, chainID, page, opts.UpdateExisting, res)
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if !opts.SyncAll || len(page) < limit {
			break
		}
		skip += limit
	}

	s.log.WithFields(map[string]interface{}{
		"chainId": chainID,
		"synced":  res.Synced,
		"updated": res.Updated,
		"skipped": res.Skipped,
		"errors":  res.Errors,
	}).Info("sync pass completed")
	return res, nil
}

// fetchPage fetches one page with backoff on transient indexer failures.
// A removed endpoint is terminal and never retried.
func (s *Service) fetchPage(ctx context.Context, chainID types.ChainID, opts *indexer.FetchOptions) ([]indexer.GameRecord, error) {
	var page []indexer.GameRecord
	result := retry.WithExponentialBackoff(ctx, s.fetchRetry, func(ctx context.Context, attempt int) error {
		var err error
		page, err = s.fetcher.FetchGames(ctx, chainID, opts)
		return err
	})
	if !result.Success {
		return nil, result.LastError
	}
	return page, nil
}

// parsedRecord is an indexer record whose intId already validated.
type parsedRecord struct {
	intID  int64
	record indexer.GameRecord
}

// syncPage reconciles one fetched page into the store.
func (s *Service) syncPage(ctx context.Context, chainID types.ChainID, page []indexer.GameRecord, updateExisting bool, res *Result) {
	// A record with a bad intId is excluded, not failed. Data-shape
	// problems are not sync failures.
	parsed := make([]parsedRecord, 0, len(page))
	intIDs := make([]int64, 0, len(page))
	for _, rec := range page {
		intID, err := types.DecodeInt64(rec.IntID)
		if err != nil || intID <= 0 {
			res.Skipped++
			continue
		}
		parsed = append(parsed, parsedRecord{intID: intID, record: rec})
		intIDs = append(intIDs, intID)
	}
	if len(parsed) == 0 {
		return
	}

	existing, err := s.stores.Games.ListByIntIDs(ctx, chainID, intIDs)
	if err != nil {
		res.Errors += len(parsed)
		res.ErrorDetails = append(res.ErrorDetails, fmt.Sprintf("page lookup failed: %v", err))
		return
	}

	if err := s.ensureCreators(ctx, parsed); err != nil {
		// Account creation is duplicate-safe; a failure here only delays
		// lazy creation, it does not block game rows.
		s.log.WithError(err).Warn("creator account creation failed")
	}

	for _, p := range parsed {
		prior := existing[p.intID]
		if prior != nil && !updateExisting {
			res.Skipped++
			continue
		}
		if err := s.syncGame(ctx, chainID, p, prior, res); err != nil {
			res.Errors++
			res.ErrorDetails = append(res.ErrorDetails, fmt.Sprintf("game %d: %v", p.intID, err))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// ensureCreators lazily creates accounts for every distinct non-zero
// creator on the page, plus the zero-address sentinel once per process.
func (s *Service) ensureCreators(ctx context.Context, parsed []parsedRecord) error {
	distinct := make(map[string]bool)
	for _, p := range parsed {
		creator := types.NormalizeAddress(p.record.Creator)
		if !types.IsZeroAddress(creator) {
			distinct[creator] = true
		}
	}

	addresses := make([]string, 0, len(distinct)+1)
	s.sentinelOnce.Do(func() {
		addresses = append(addresses, types.ZeroAddress)
	})
	if len(distinct) > 0 {
		existing, err := s.stores.Accounts.FilterExisting(ctx, keys(distinct))
		if err != nil {
			return err
		}
		for addr := range distinct {
			if !existing[addr] {
				addresses = append(addresses, addr)
			}
		}
	}
	if len(addresses) == 0 {
		return nil
	}
	return s.stores.Accounts.EnsureAccounts(ctx, addresses)
}

// syncGame reconciles a single record: decode, resolve the contract
// address, upsert, then best-effort enrich.
func (s *Service) syncGame(ctx context.Context, chainID types.ChainID, p parsedRecord, prior *models.Game, res *Result) error {
	game, err := s.buildGame(chainID, p)
	if err != nil {
		return err
	}
	if prior != nil {
		game.ID = prior.ID
		game.CreatedAt = prior.CreatedAt
	}

	address, err := s.resolveAddress(ctx, chainID, p, prior)
	if err != nil {
		return fmt.Errorf("address resolution failed: %w", err)
	}
	game.Address = address

	inserted, err := s.stores.Games.Upsert(ctx, game)
	if err != nil {
		return err
	}
	if inserted {
		res.Synced++
	} else {
		res.Updated++
	}

	// Enrichment is best effort: its failure counts against the run but
	// never undoes the base upsert or blocks the rest of the page.
	if !types.IsZeroAddress(game.Address) {
		if err := s.enricher.Enrich(ctx, game); err != nil {
			res.Errors++
			res.ErrorDetails = append(res.ErrorDetails, fmt.Sprintf("game %d: enrichment failed: %v", p.intID, err))
			s.log.WithError(err).WithFields(map[string]interface{}{
				"chainId": chainID,
				"intId":   p.intID,
			}).Warn("enrichment failed")
		}
	}
	return nil
}

// buildGame decodes one indexer record into a canonical game row. All
// loose encodings are normalized here, at the boundary.
func (s *Service) buildGame(chainID types.ChainID, p parsedRecord) (*models.Game, error) {
	rec := p.record

	gameType, err := types.DecodeGameType(rec.Type)
	if err != nil {
		return nil, err
	}
	duration, err := types.DecodeInt64(rec.Duration)
	if err != nil {
		return nil, fmt.Errorf("invalid duration: %w", err)
	}
	startTS, err := types.DecodeUnixTimestamp(rec.StartTimestamp)
	if err != nil {
		return nil, err
	}
	abortTS, err := types.DecodeUnixTimestamp(rec.AbortTimestamp)
	if err != nil {
		return nil, err
	}

	game := &models.Game{
		IntID:          p.intID,
		ChainID:        chainID,
		Type:           gameType,
		Status:         decodeStatus(rec.Status),
		Duration:       duration,
		NumCoins:       int(decodeOrZero(rec.NumCoins)),
		NumPlayers:     int(decodeOrZero(rec.NumPlayers)),
		CurrentPlayers: int(decodeOrZero(rec.CurrentPlayers)),
		StartTimestamp: startTS,
		AbortTimestamp: abortTS,
		CoinToPlay:     types.NormalizeAddress(rec.CoinToPlay),
		CreatorAddress: creatorOrSentinel(rec.Creator),
	}
	if entry, err := types.DecodeBigInt(rec.Entry); err == nil {
		game.Entry = entry.String()
		game.AmountToPlay = entry.String()
	}
	return game, nil
}

// resolveAddress finds the game's contract address: a known non-zero
// stored address wins, then the indexer record, then the cache, and only
// then a registry contract call. The registry read is the single
// synchronous contract call on the hot path.
func (s *Service) resolveAddress(ctx context.Context, chainID types.ChainID, p parsedRecord, prior *models.Game) (string, error) {
	if prior != nil && !types.IsZeroAddress(prior.Address) {
		return prior.Address, nil
	}
	if addr := types.NormalizeAddress(p.record.Address); !types.IsZeroAddress(addr) {
		return addr, nil
	}
	if s.cache != nil {
		if addr := s.cache.GetGameAddress(ctx, chainID, p.intID); !types.IsZeroAddress(addr) {
			return addr, nil
		}
	}

	out, err := s.reader.Call(ctx, chainID, s.registries[chainID], contracts.RegistryABI, "gameAddress", big.NewInt(p.intID))
	if err != nil {
		return "", err
	}
	decoded, err := contracts.DecodeAddress(out)
	if err != nil {
		return "", err
	}
	addr := types.NormalizeAddress(decoded.Hex())
	if s.cache != nil && !types.IsZeroAddress(addr) {
		if err := s.cache.SetGameAddress(ctx, chainID, p.intID, addr); err != nil {
			s.log.WithError(err).Debug("address cache write failed")
		}
	}
	return addr, nil
}

func decodeStatus(raw string) types.GameStatus {
	switch types.GameStatus(raw) {
	case types.StatusStarted:
		return types.StatusStarted
	case types.StatusEnded:
		return types.StatusEnded
	default:
		return types.StatusWaiting
	}
}

func decodeOrZero(v interface{}) int64 {
	n, err := types.DecodeInt64(v)
	if err != nil {
		return 0
	}
	return n
}

func creatorOrSentinel(raw string) string {
	addr := types.NormalizeAddress(raw)
	if types.IsZeroAddress(addr) {
		return types.ZeroAddress
	}
	return addr
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
