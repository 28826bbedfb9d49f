package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/fireblocks-client/internal/testutil"
	"github.com/Sternrassler/fireblocks-client/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// setupMock starts a mock API and points the command's configuration at it.
func setupMock(t *testing.T) *testutil.MockFireblocks {
	t.Helper()
	t.Chdir(t.TempDir())

	key, pemBytes, err := testutil.GenerateKey()
	require.NoError(t, err)

	mock := testutil.NewMockFireblocks()
	t.Cleanup(mock.Close)
	mock.RequireAuth("cli-key", &key.PublicKey)

	t.Setenv("FIREBLOCKS_API_KEY", "cli-key")
	t.Setenv("FIREBLOCKS_PRIVATE_KEY", string(pemBytes))
	t.Setenv("FIREBLOCKS_BASE_URL", mock.URL())
	t.Setenv("FIREBLOCKS_MAX_RETRIES", "0")
	t.Setenv("FIREBLOCKS_LOG_LEVEL", "error")
	return mock
}

func run(t *testing.T, args ...string) ([]string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)

	var lines []string
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, err
}

func TestVaultsCommand(t *testing.T) {
	mock := setupMock(t)
	mock.SetVaults(
		testutil.Vault("0", "a"), testutil.Vault("1", "b"), testutil.Vault("2", "c"),
		testutil.Vault("3", "d"), testutil.Vault("4", "e"),
	)

	lines, err := run(t, "vaults", "--batch", "2")
	require.NoError(t, err)
	require.Len(t, lines, 5)

	var first types.VaultAccount
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "0", first.ID)
	require.Len(t, mock.Queries("/v1/vault/accounts_paged"), 3)
}

func TestVaultsCommand_MaxPages(t *testing.T) {
	mock := setupMock(t)
	mock.SetVaults(testutil.Vault("0", "a"), testutil.Vault("1", "b"), testutil.Vault("2", "c"))

	lines, err := run(t, "vaults", "--batch", "2", "--max-pages", "1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Len(t, mock.Queries("/v1/vault/accounts_paged"), 1, "no page is fetched past the limit")
}

func TestVaultsCommand_PurgeCacheWithoutRedis(t *testing.T) {
	mock := setupMock(t)
	mock.SetVaults(testutil.Vault("0", "a"))

	lines, err := run(t, "--purge-cache", "vaults")
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestTransactionsCommand(t *testing.T) {
	mock := setupMock(t)
	mock.SetTransactions(
		testutil.Transfer("t1", "1", "2", 1000),
		testutil.Transfer("t2", "3", "2", 2000),
		testutil.Transfer("t3", "2", "1", 3000),
		testutil.Transfer("t4", "1", "2", 4000),
	)

	lines, err := run(t, "transactions", "--vault-id", "2", "--role", "destination", "--after", "0", "--batch", "2")
	require.NoError(t, err)

	var ids []string
	for _, l := range lines {
		var tx types.Transaction
		require.NoError(t, json.Unmarshal([]byte(l), &tx))
		ids = append(ids, tx.ID)
	}
	require.Equal(t, []string{"t1", "t2", "t4"}, ids)

	queries := mock.Queries("/v1/transactions")
	require.Len(t, queries, 3, "two full pages and the empty page that ends the stream")
	require.Contains(t, queries[1], "after=2001")
}

func TestTransactionsCommand_Errors(t *testing.T) {
	setupMock(t)

	_, err := run(t, "transactions", "--vault-id", "1", "--role", "sideways")
	require.ErrorContains(t, err, "sideways")

	_, err = run(t, "transactions", "--vault-id", "1", "--after", "yesterday")
	require.ErrorContains(t, err, "--after")

	_, err = run(t, "transactions")
	require.ErrorContains(t, err, "vault-id")
}

func TestVaultCommand(t *testing.T) {
	mock := setupMock(t)
	mock.SetVaults(testutil.Vault("9", "Treasury"))

	lines, err := run(t, "vault", "9")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], `"Treasury"`)

	_, err = run(t, "vault", "10")
	require.ErrorContains(t, err, "404")
}

func TestMissingCredentials(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FIREBLOCKS_API_KEY", "")
	_, err := run(t, "vaults")
	require.ErrorContains(t, err, "APIKey")
}

func TestServeMetrics(t *testing.T) {
	a := &app{metricsAddr: "127.0.0.1:0", logger: zerolog.Nop()}
	require.NoError(t, a.serveMetrics())
	defer a.teardown()

	resp, err := http.Get("http://" + a.metricsListen.String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(string(body), "go_goroutines"), "default collectors are exported")
}

func TestFailedCommandReleasesResources(t *testing.T) {
	mock := setupMock(t)
	mock.SetVaults(testutil.Vault("9", "Treasury"))

	a := &app{}
	cmd := a.command()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--metrics-addr", "127.0.0.1:0", "vault", "10"})

	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "404")

	require.Nil(t, a.metrics, "metrics server is shut down")
	require.Nil(t, a.api, "client is closed")
	require.NotNil(t, a.metricsListen)
	_, err = net.DialTimeout("tcp", a.metricsListen.String(), time.Second)
	require.Error(t, err, "metrics listener is closed")
}

func TestFailedSetupReleasesResources(t *testing.T) {
	setupMock(t)

	a := &app{}
	cmd := a.command()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--metrics-addr", "127.0.0.1:-1", "vaults"})

	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "listen")
	require.Nil(t, a.api, "client created before the failure is closed")
}

func TestParseInstant(t *testing.T) {
	got, err := parseInstant("1649203261000")
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(2022, 4, 6, 0, 1, 1, 0, time.UTC)))

	got, err = parseInstant("2022-04-06T00:01:01Z")
	require.NoError(t, err)
	require.Equal(t, int64(1649203261000), got.UnixMilli())

	_, err = parseInstant("soon")
	require.Error(t, err)
}
