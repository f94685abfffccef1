package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/game-sync-engine/internal/types"
)

func TestBuildGamesQueryOmitsUnsetFilters(t *testing.T) {
	query, vars := buildGamesQuery(&FetchOptions{Skip: 0, First: 50})

	assert.NotContains(t, query, "$status", "status variable must be omitted when unset")
	assert.NotContains(t, query, "where:")
	_, ok := vars["status"]
	assert.False(t, ok)
	assert.Equal(t, 50, vars["first"])
}

func TestBuildGamesQueryIncludesSuppliedFilter(t *testing.T) {
	status := "Ended"
	query, vars := buildGamesQuery(&FetchOptions{Status: &status, Skip: 10, First: 25})

	assert.Contains(t, query, "$status: String!")
	assert.Contains(t, query, "where: { status: $status }")
	assert.Equal(t, "Ended", vars["status"])
	assert.Equal(t, 10, vars["skip"])
}

func TestFetchGames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req graphQLRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Contains(t, req.Query, "intId")
		assert.Contains(t, req.Query, "coinToPlay")

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"data":{"games":[
			{"id":"0xgame-12","intId":"12","type":"Bull","duration":"3600","status":"Started",
			 "numCoins":2,"numPlayers":5,"currentPlayers":"3","entry":"1000000000000000000",
			 "startTimestamp":"1700000000","abortTimestamp":1700003600,
			 "coinToPlay":"0xToken","creator":"0xCreator","address":"0xGameAddr"}
		]}}`)
	}))
	defer server.Close()

	client := NewClient(map[types.ChainID]string{types.ChainPolygon: server.URL}, time.Second)
	games, err := client.FetchGames(context.Background(), types.ChainPolygon, &FetchOptions{First: 10})
	require.NoError(t, err)
	require.Len(t, games, 1)

	g := games[0]
	assert.Equal(t, "0xgame-12", g.ID)

	// dynamic fields decode through the boundary decoders
	intID, err := types.DecodeInt64(g.IntID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), intID)

	gameType, err := types.DecodeGameType(g.Type)
	require.NoError(t, err)
	assert.Equal(t, types.GameTypeBull, gameType)

	current, err := types.DecodeInt64(g.CurrentPlayers)
	require.NoError(t, err)
	assert.Equal(t, int64(3), current)
}

func TestFetchGamesEndpointRemoved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"errors":[{"message":"This endpoint has been removed. If this is your subgraph, redeploy it."}]}`)
	}))
	defer server.Close()

	client := NewClient(map[types.ChainID]string{types.ChainPolygon: server.URL}, time.Second)
	_, err := client.FetchGames(context.Background(), types.ChainPolygon, &FetchOptions{First: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEndpointRemoved), "removed endpoint must map to the terminal error")
}

func TestFetchGamesGenericQueryError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"errors":[{"message":"indexer overloaded, try again"}]}`)
	}))
	defer server.Close()

	client := NewClient(map[types.ChainID]string{types.ChainPolygon: server.URL}, time.Second)
	_, err := client.FetchGames(context.Background(), types.ChainPolygon, &FetchOptions{First: 10})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrEndpointRemoved), "generic query errors are not terminal")
	assert.True(t, strings.Contains(err.Error(), "indexer overloaded"))
}

func TestFetchGamesNoEndpoint(t *testing.T) {
	client := NewClient(map[types.ChainID]string{}, time.Second)
	_, err := client.FetchGames(context.Background(), types.ChainBase, &FetchOptions{First: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no indexer endpoint")
}
