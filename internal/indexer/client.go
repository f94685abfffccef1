// Package indexer fetches game records from the per-chain GraphQL
// indexing endpoints (subgraphs).
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/game-sync-engine/internal/types"
)

// ErrEndpointRemoved is returned when the indexer reports that the
// queried endpoint no longer exists. Terminal: retrying cannot help.
var ErrEndpointRemoved = fmt.Errorf("indexer endpoint has been removed")

// GameRecord is one game row as returned by the indexer. Numeric fields
// are left loosely typed; the subgraph schema has shipped them as
// strings, numbers, and big integers at different points, and the
// canonical decode happens in the types package.
type GameRecord struct {
	ID             string      `json:"id"`
	IntID          interface{} `json:"intId"`
	Type           interface{} `json:"type"`
	Duration       interface{} `json:"duration"`
	Status         string      `json:"status"`
	NumCoins       interface{} `json:"numCoins"`
	NumPlayers     interface{} `json:"numPlayers"`
	CurrentPlayers interface{} `json:"currentPlayers"`
	Entry          interface{} `json:"entry"`
	StartTimestamp interface{} `json:"startTimestamp"`
	AbortTimestamp interface{} `json:"abortTimestamp"`
	CoinToPlay     string      `json:"coinToPlay"`
	Creator        string      `json:"creator"`
	Address        string      `json:"address"`
}

// gameFields is the fixed projection requested for every query.
const gameFields = `
			id
			intId
			type
			duration
			status
			numCoins
			numPlayers
			currentPlayers
			entry
			startTimestamp
			abortTimestamp
			coinToPlay
			creator
			address`

// FetchOptions controls one page fetch.
type FetchOptions struct {
	// Status filters by game status when set. Omitted from the query
	// entirely when nil; some indexers reject unknown variables.
	Status *string
	// Skip is the page offset.
	Skip int
	// First is the page size.
	First int
}

// Client queries per-chain indexer endpoints.
type Client struct {
	endpoints  map[types.ChainID]string
	httpClient *http.Client
}

// NewClient creates an indexer client. Each outbound query carries a
// fixed timeout.
func NewClient(endpoints map[types.ChainID]string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// HasChain reports whether an endpoint is configured for a chain.
func (c *Client) HasChain(chainID types.ChainID) bool {
	return c.endpoints[chainID] != ""
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type gamesResponse struct {
	Data struct {
		Games []GameRecord `json:"games"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// buildGamesQuery assembles the query and variables, including the filter
// clause only when a status is actually supplied.
func buildGamesQuery(opts *FetchOptions) (string, map[string]interface{}) {
	vars := map[string]interface{}{
		"skip":  opts.Skip,
		"first": opts.First,
	}

	params := "$skip: Int!, $first: Int!"
	where := ""
	if opts.Status != nil {
		params += ", $status: String!"
		where = ", where: { status: $status }"
		vars["status"] = *opts.Status
	}

	query := fmt.Sprintf(`query Games(%s) {
		games(skip: $skip, first: $first, orderBy: intId, orderDirection: desc%s) {%s
		}
	}`, params, where, gameFields)

	return query, vars
}

// FetchGames fetches one page of game records for a chain.
func (c *Client) FetchGames(ctx context.Context, chainID types.ChainID, opts *FetchOptions) ([]GameRecord, error) {
	endpoint := c.endpoints[chainID]
	if endpoint == "" {
		return nil, fmt.Errorf("no indexer endpoint configured for chain %d", chainID)
	}
	if opts == nil {
		opts = &FetchOptions{First: 100}
	}
	if opts.First <= 0 {
		opts.First = 100
	}

	query, vars := buildGamesQuery(opts)
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal indexer query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build indexer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer query failed for chain %d: %w", chainID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read indexer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if isEndpointRemovedMessage(string(raw)) || resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: chain %d (%s)", ErrEndpointRemoved, chainID, http.StatusText(resp.StatusCode))
		}
		return nil, fmt.Errorf("indexer returned status %d for chain %d", resp.StatusCode, chainID)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var parsed gamesResponse
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode indexer response: %w", err)
	}

	if len(parsed.Errors) > 0 {
		msg := parsed.Errors[0].Message
		if isEndpointRemovedMessage(msg) {
			return nil, fmt.Errorf("%w: chain %d (%s)", ErrEndpointRemoved, chainID, msg)
		}
		return nil, fmt.Errorf("indexer query error for chain %d: %s", chainID, msg)
	}

	return parsed.Data.Games, nil
}

// isEndpointRemovedMessage detects the "this subgraph is gone" family of
// responses, which must not be retried.
func isEndpointRemovedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "endpoint has been removed") ||
		strings.Contains(lower, "deployment not found") ||
		strings.Contains(lower, "subgraph not found") ||
		strings.Contains(lower, "removed from the network")
}
