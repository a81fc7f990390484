package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKnownVectors(t *testing.T) {
	testcases := []struct {
		algo string
		want string
	}{
		{algo: "md5", want: "098f6bcd4621d373cade4e832627b4f6"},
		{algo: "sha1", want: "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3"},
		{algo: "sha256", want: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"},
		{algo: "crc32b", want: "d87f7e0c"},
		{algo: "SHA1", want: "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3"},
	}
	for _, tc := range testcases {
		t.Run(tc.algo, func(t *testing.T) {
			got, err := Sum(tc.algo, []byte(Probe))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestProbeLength(t *testing.T) {
	testcases := map[string]int{
		"sha1":        40,
		"md5":         32,
		"sha256":      64,
		"sha512":      128,
		"sha3-256":    64,
		"ripemd160":   40,
		"blake2b-512": 128,
		"blake2s-256": 64,
		"crc32b":      8,
		"adler32":     8,
		"fnv1a64":     16,
		"xxh64":       16,
	}
	for algo, want := range testcases {
		n, err := ProbeLength(algo)
		require.NoError(t, err, algo)
		require.Equal(t, want, n, algo)
	}
}

func TestEveryRegisteredAlgorithmWorks(t *testing.T) {
	for _, name := range Names() {
		require.True(t, Supported(name))
		h, err := New(name)
		require.NoError(t, err, name)
		require.NotNil(t, h, name)
		sum, err := SumReader(name, strings.NewReader(Probe))
		require.NoError(t, err, name)
		direct, err := Sum(name, []byte(Probe))
		require.NoError(t, err, name)
		require.Equal(t, direct, sum, name)
	}
}

func TestUnsupported(t *testing.T) {
	require.False(t, Supported("whirlpool-9000"))
	_, err := New("whirlpool-9000")
	require.Error(t, err)
	_, err = ProbeLength("")
	require.Error(t, err)
}
