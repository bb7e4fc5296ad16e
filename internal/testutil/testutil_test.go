package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tastefi/internal/identity"
)

func TestFixedGenerator_ReturnsSameIdentity(t *testing.T) {
	id, err := identity.NewDeterministicGenerator("fixed").Generate()
	require.NoError(t, err)
	gen := NewFixedGenerator(id)

	for i := 0; i < 3; i++ {
		got, err := gen.Generate()
		require.NoError(t, err)
		assert.Equal(t, id.PublicKey(), got.PublicKey())
	}
}

func TestFixedGenerator_ThreadSafe(t *testing.T) {
	id, err := identity.NewDeterministicGenerator("fixed").Generate()
	require.NoError(t, err)
	gen := NewFixedGenerator(id)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, _ := gen.Generate()
				assert.Equal(t, id.PublicKey(), got.PublicKey())
			}
		}()
	}
	wg.Wait()
}

func TestFixtures_StableForSeed(t *testing.T) {
	a, b := NewFaker(7), NewFaker(7)
	assert.Equal(t, RestaurantName(a), RestaurantName(b))
	assert.Equal(t, ContentRef(a), ContentRef(b))
}

func TestContentRef_IsCIDv0(t *testing.T) {
	ref := ContentRef(NewFaker(1))
	assert.True(t, strings.HasPrefix(ref, "Qm"), ref)
	assert.Len(t, ref, 46)
}

func TestStartLocalnet_DeploysDefaultProgram(t *testing.T) {
	node := StartLocalnet(t)
	p := DefaultProgram(t)

	got, ok := node.Program(p.Name)
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)

	accounts, err := node.Client().GetProgramAccounts(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
