package testutil

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// NewFaker returns a seeded faker so fixture values are stable across runs.
func NewFaker(seed int64) *gofakeit.Faker {
	return gofakeit.New(seed)
}

// RestaurantName returns a plausible restaurant name.
func RestaurantName(f *gofakeit.Faker) string {
	return fmt.Sprintf("%s's %s", f.FirstName(), f.RandomString([]string{
		"Bistro", "Kitchen", "Diner", "Trattoria", "Cantina", "Grill", "Noodle Bar",
	}))
}

// ContentRef returns a CIDv0 ("Qm...") over random bytes from f.
func ContentRef(f *gofakeit.Faker) string {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = f.Uint8()
	}
	mh, err := multihash.Sum(buf, multihash.SHA2_256, -1)
	if err != nil {
		panic(err)
	}
	return cid.NewCidV0(mh).String()
}
