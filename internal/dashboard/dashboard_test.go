package dashboard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tastefi/internal/codec"
	"github.com/roach88/tastefi/internal/dashboard"
	"github.com/roach88/tastefi/internal/identity"
	"github.com/roach88/tastefi/internal/idl"
	"github.com/roach88/tastefi/internal/ledger"
	"github.com/roach88/tastefi/internal/testutil"
)

type fixture struct {
	client *dashboard.Client
	gen    *identity.DeterministicGenerator
	caller *identity.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	node := testutil.StartLocalnet(t)
	gen := identity.NewDeterministicGenerator(t.Name())
	caller, err := gen.Generate()
	require.NoError(t, err)
	return &fixture{
		client: dashboard.NewClient(node.Client(), testutil.DefaultProgram(t)),
		gen:    gen,
		caller: caller,
	}
}

func (f *fixture) newIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := f.gen.Generate()
	require.NoError(t, err)
	return id
}

func (f *fixture) create(t *testing.T, profile *identity.Identity, name, ref string) (*ledger.Receipt, error) {
	t.Helper()
	return f.client.UpdateRestaurantProfile(context.Background(), dashboard.UpdateProfileRequest{
		Profile:  profile.PublicKey(),
		Owner:    f.caller.PublicKey(),
		Name:     name,
		IPFSHash: ref,
	}, f.caller, profile)
}

func TestUpdateRestaurantProfile_JoesBistro(t *testing.T) {
	f := newFixture(t)
	profile := f.newIdentity(t)

	receipt, err := f.create(t, profile, "Joe's Bistro", "Qm...")
	require.NoError(t, err)
	assert.Nil(t, receipt.Err)

	got, err := f.client.FetchRestaurantProfile(context.Background(), profile.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, "Joe's Bistro", got.Name)
	assert.Equal(t, "Qm...", got.IPFSHash)
	assert.Equal(t, f.caller.PublicKey(), got.Owner)
	assert.Equal(t, profile.PublicKey(), got.Address)
	assert.Equal(t, receipt.Slot, got.Slot)
}

func TestUpdateRestaurantProfile_RoundTripsFakeProfiles(t *testing.T) {
	f := newFixture(t)
	faker := testutil.NewFaker(42)

	for i := 0; i < 10; i++ {
		profile := f.newIdentity(t)
		name := testutil.RestaurantName(faker)
		ref := testutil.ContentRef(faker)

		_, err := f.create(t, profile, name, ref)
		require.NoError(t, err)

		got, err := f.client.FetchRestaurantProfile(context.Background(), profile.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, name, got.Name)
		assert.Equal(t, ref, got.IPFSHash)
		assert.Equal(t, f.caller.PublicKey(), got.Owner)
	}
}

func TestUpdateRestaurantProfile_EmptyValues(t *testing.T) {
	f := newFixture(t)
	profile := f.newIdentity(t)

	_, err := f.create(t, profile, "", "")
	require.NoError(t, err)

	got, err := f.client.FetchRestaurantProfile(context.Background(), profile.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, "", got.Name)
	assert.Equal(t, "", got.IPFSHash)
}

func TestUpdateRestaurantProfile_OwnerIsSigningCaller(t *testing.T) {
	f := newFixture(t)
	other := f.newIdentity(t)
	profile := f.newIdentity(t)

	_, err := f.client.UpdateRestaurantProfile(context.Background(), dashboard.UpdateProfileRequest{
		Profile:  profile.PublicKey(),
		Owner:    other.PublicKey(),
		Name:     "Other's Diner",
		IPFSHash: "Qm...",
	}, other, profile)
	require.NoError(t, err)

	got, err := f.client.FetchRestaurantProfile(context.Background(), profile.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, other.PublicKey(), got.Owner)
	assert.NotEqual(t, f.caller.PublicKey(), got.Owner)
}

func TestUpdateRestaurantProfile_MissingCosignerFails(t *testing.T) {
	f := newFixture(t)
	profile := f.newIdentity(t)

	receipt, err := f.client.UpdateRestaurantProfile(context.Background(), dashboard.UpdateProfileRequest{
		Profile:  profile.PublicKey(),
		Owner:    f.caller.PublicKey(),
		Name:     "Joe's Bistro",
		IPFSHash: "Qm...",
	}, f.caller)
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.Equal(t, ledger.CodeMissingRequiredSignature, ledger.CodeOf(err))

	_, err = f.client.FetchRestaurantProfile(context.Background(), profile.PublicKey())
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestUpdateRestaurantProfile_SecondCreateRejected(t *testing.T) {
	f := newFixture(t)
	profile := f.newIdentity(t)

	_, err := f.create(t, profile, "First", "Qm1")
	require.NoError(t, err)

	receipt, err := f.create(t, profile, "Second", "Qm2")
	require.Error(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, ledger.CodeAccountAlreadyInitialized, ledger.CodeOf(err))

	got, err := f.client.FetchRestaurantProfile(context.Background(), profile.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, "First", got.Name)
}

func TestUpdateRestaurantProfile_UnexpectedSigner(t *testing.T) {
	f := newFixture(t)
	profile := f.newIdentity(t)
	stranger := f.newIdentity(t)

	_, err := f.client.UpdateRestaurantProfile(context.Background(), dashboard.UpdateProfileRequest{
		Profile: profile.PublicKey(),
		Owner:   f.caller.PublicKey(),
	}, f.caller, profile, stranger)
	require.Error(t, err)
	assert.Equal(t, ledger.CodeUnexpectedSigner, ledger.CodeOf(err))
}

func TestListRestaurantProfiles_DistinctAddresses(t *testing.T) {
	f := newFixture(t)

	seen := make(map[identity.PublicKey]bool)
	for i := 0; i < 5; i++ {
		profile := f.newIdentity(t)
		_, err := f.create(t, profile, "Same Name", "Qm...")
		require.NoError(t, err)
		seen[profile.PublicKey()] = true
	}

	profiles, err := f.client.ListRestaurantProfiles(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 5)
	for _, p := range profiles {
		assert.True(t, seen[p.Address], "unexpected profile %s", p.Address)
		delete(seen, p.Address)
	}
	assert.Empty(t, seen)
}

type submitOnly struct {
	ledger.Client
}

func TestListRestaurantProfiles_Unsupported(t *testing.T) {
	f := newFixture(t)
	client := dashboard.NewClient(submitOnly{}, f.client.Program())

	_, err := client.ListRestaurantProfiles(context.Background())
	assert.ErrorIs(t, err, dashboard.ErrListingUnsupported)
}

func TestBuildUpdateProfile_AccountLayout(t *testing.T) {
	f := newFixture(t)
	profile := f.newIdentity(t)

	tx, err := f.client.BuildUpdateProfile(dashboard.UpdateProfileRequest{
		Profile:  profile.PublicKey(),
		Owner:    f.caller.PublicKey(),
		Name:     "Joe's Bistro",
		IPFSHash: "Qm...",
	})
	require.NoError(t, err)

	assert.Equal(t, f.caller.PublicKey(), tx.Message.FeePayer)
	require.Len(t, tx.Message.Instructions, 1)
	ix := tx.Message.Instructions[0]
	assert.Equal(t, f.client.Program().ID, ix.ProgramID)
	assert.Equal(t, []ledger.AccountMeta{
		{PublicKey: profile.PublicKey(), IsSigner: true, IsWritable: true},
		{PublicKey: f.caller.PublicKey(), IsSigner: true, IsWritable: true},
		{PublicKey: identity.SystemProgramID},
	}, ix.Accounts)
	assert.Equal(t, []identity.PublicKey{f.caller.PublicKey(), profile.PublicKey()}, tx.Message.RequiredSigners())
}

func TestDecodeProfile_WrongOwner(t *testing.T) {
	p, err := idl.Default()
	require.NoError(t, err)

	_, err = dashboard.DecodeProfile(p, &ledger.Account{Owner: identity.SystemProgramID})
	assert.ErrorIs(t, err, dashboard.ErrNotProfile)
}

func TestDecodeProfile_BadData(t *testing.T) {
	p, err := idl.Default()
	require.NoError(t, err)

	_, err = dashboard.DecodeProfile(p, &ledger.Account{Owner: p.ID, Data: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, dashboard.ErrNotProfile)
	assert.ErrorIs(t, err, codec.ErrShortBuffer)
}

func TestNewProgram_RequiresProfileAccount(t *testing.T) {
	progs, err := idl.CompileSource("bare.cue", []byte(`
program: bare: {
	instruction: noop: {accounts: [], args: []}
}
`))
	require.NoError(t, err)

	_, err = dashboard.NewProgram(progs[0])
	assert.Error(t, err)
}
