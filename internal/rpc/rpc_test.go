package rpc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tastefi/internal/dashboard"
	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/ledger"
	"github.com/roach88/tastefi/internal/localnet"
	"github.com/roach88/tastefi/internal/rpc"
	"github.com/roach88/tastefi/internal/testutil"
)

type fixture struct {
	node   *localnet.Node
	srv    *httptest.Server
	client *rpc.Client
	gen    *identity.DeterministicGenerator
	caller *identity.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	node := testutil.StartLocalnet(t)
	srv := httptest.NewServer(rpc.NewServer(node.Runtime(), rpc.WithServerLogger(testutil.QuietLogger())).Handler())
	t.Cleanup(srv.Close)

	client, err := rpc.Dial(context.Background(), srv.URL+rpc.Path,
		rpc.WithPollInterval(5*time.Millisecond),
		rpc.WithClientLogger(testutil.QuietLogger()))
	require.NoError(t, err)
	t.Cleanup(client.Close)

	gen := identity.NewDeterministicGenerator(t.Name())
	caller, err := gen.Generate()
	require.NoError(t, err)
	return &fixture{node: node, srv: srv, client: client, gen: gen, caller: caller}
}

func (f *fixture) newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := f.gen.Generate()
	require.NoError(t, err)
	return id
}

func (f *fixture) request(profile *identity.Identity, name string) dashboard.UpdateProfileRequest {
	return dashboard.UpdateProfileRequest{
		Profile:  profile.PublicKey(),
		Owner:    f.caller.PublicKey(),
		Name:     name,
		IPFSHash: "Qm...",
	}
}

func TestClient_CreateAndFetchOverRPC(t *testing.T) {
	f := newFixture(t)
	dc := dashboard.NewClient(f.client, testutil.DefaultProgram(t))
	profile := f.newIdentity(t)

	receipt, err := dc.UpdateRestaurantProfile(context.Background(), f.request(profile, "Joe's Bistro"), f.caller, profile)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Slot)
	assert.Equal(t, ledger.CommitmentFinalized, receipt.Commitment)

	got, err := dc.FetchRestaurantProfile(context.Background(), profile.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, "Joe's Bistro", got.Name)
	assert.Equal(t, "Qm...", got.IPFSHash)
	assert.Equal(t, f.caller.PublicKey(), got.Owner)

	slot, err := f.client.Slot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), slot)
}

func TestClient_MatchesLocalClient(t *testing.T) {
	f := newFixture(t)
	program := testutil.DefaultProgram(t)
	remote := dashboard.NewClient(f.client, program)
	local := dashboard.NewClient(f.node.Client(), program)

	for _, name := range []string{"One", "Two", "Three"} {
		profile := f.newIdentity(t)
		_, err := remote.UpdateRestaurantProfile(context.Background(), f.request(profile, name), f.caller, profile)
		require.NoError(t, err)

		viaRPC, err := remote.FetchRestaurantProfile(context.Background(), profile.PublicKey())
		require.NoError(t, err)
		viaLocal, err := local.FetchRestaurantProfile(context.Background(), profile.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, viaLocal, viaRPC)
	}

	listedRPC, err := remote.ListRestaurantProfiles(context.Background())
	require.NoError(t, err)
	listedLocal, err := local.ListRestaurantProfiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, listedLocal, listedRPC)
	assert.Len(t, listedRPC, 3)
}

func TestClient_PreflightRejection(t *testing.T) {
	f := newFixture(t)
	dc := dashboard.NewClient(f.client, testutil.DefaultProgram(t))
	profile := f.newIdentity(t)

	receipt, err := dc.UpdateRestaurantProfile(context.Background(), f.request(profile, "Joe's Bistro"), f.caller)
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.Equal(t, ledger.CodeMissingRequiredSignature, ledger.CodeOf(err))
}

func TestClient_ExecutionRejectionCarriesReceipt(t *testing.T) {
	f := newFixture(t)
	dc := dashboard.NewClient(f.client, testutil.DefaultProgram(t))
	profile := f.newIdentity(t)

	_, err := dc.UpdateRestaurantProfile(context.Background(), f.request(profile, "First"), f.caller, profile)
	require.NoError(t, err)

	receipt, err := dc.UpdateRestaurantProfile(context.Background(), f.request(profile, "Second"), f.caller, profile)
	require.Error(t, err)
	require.NotNil(t, receipt)
	require.NotNil(t, receipt.Err)
	assert.Equal(t, ledger.CodeAccountAlreadyInitialized, receipt.Err.Code)
	assert.Equal(t, 0, receipt.Err.Instruction)
	assert.Equal(t, ledger.CodeAccountAlreadyInitialized, ledger.CodeOf(err))
}

func TestClient_GetAccountNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.client.GetAccount(context.Background(), f.newIdentity(t).PublicKey())
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestClient_GetProgramAccountsEmpty(t *testing.T) {
	f := newFixture(t)

	accounts, err := f.client.GetProgramAccounts(context.Background(), testutil.DefaultProgram(t).ID)
	require.NoError(t, err)
	assert.NotNil(t, accounts)
	assert.Empty(t, accounts)
}

func TestClient_SubmitHonorsContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dc := dashboard.NewClient(f.client, testutil.DefaultProgram(t))
	profile := f.newIdentity(t)
	_, err := dc.UpdateRestaurantProfile(ctx, f.request(profile, "Cancelled"), f.caller, profile)
	assert.Error(t, err)
}

func TestServer_Healthz(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Slot   uint64 `json:"slot"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, uint64(0), body.Slot)
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	node := testutil.StartLocalnet(t)
	srv := rpc.NewServer(node.Runtime(), rpc.WithServerLogger(testutil.QuietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
