package dashboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyContentRef(t *testing.T) {
	tests := []struct {
		ref  string
		want ContentRefKind
	}{
		{"QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", RefCIDv0},
		{"bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku", RefCIDv1},
		{"Qm...", RefOpaque},
		{"", RefOpaque},
		{"https://example.com/menu.json", RefOpaque},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyContentRef(tt.ref))
		})
	}
}

func TestContentRefFor(t *testing.T) {
	ref, err := ContentRefFor([]byte("hello world"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "bafkrei"), ref)
	assert.Equal(t, RefCIDv1, ClassifyContentRef(ref))

	again, err := ContentRefFor([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, ref, again)

	other, err := ContentRefFor([]byte("hello world!"))
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)
}
