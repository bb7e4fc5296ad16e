package dashboard

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ContentRefKind classifies the ipfs_hash value of a profile.
type ContentRefKind string

const (
	// RefCIDv0 is a base58 sha2-256 CID ("Qm...").
	RefCIDv0 ContentRefKind = "cid-v0"
	// RefCIDv1 is a multibase CID such as "bafy...".
	RefCIDv1 ContentRefKind = "cid-v1"
	// RefOpaque is any other string. The program stores it unchanged.
	RefOpaque ContentRefKind = "opaque"
)

// ClassifyContentRef reports what kind of reference s is. Profiles accept
// every kind; the classification is informational.
func ClassifyContentRef(s string) ContentRefKind {
	c, err := cid.Decode(s)
	if err != nil {
		return RefOpaque
	}
	if c.Version() == 0 {
		return RefCIDv0
	}
	return RefCIDv1
}

// ContentRefFor returns the CIDv1 (raw codec, sha2-256) of data, the
// reference an IPFS node assigns to a single-block file added with
// raw leaves.
func ContentRefFor(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}
