// Package digest is the registry of hash algorithms a store may be configured with.
//
// Names follow PHP's hash_algos() spelling where one exists so settings carried
// over from older deployments keep producing the same file names.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/adler32"
	"hash/crc32"
	"hash/fnv"
	"io"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/md4"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// Probe is the fixed input used to measure the hex length of an algorithm.
const Probe = "test"

var algorithms = map[string]func() hash.Hash{
	"md4":        md4.New,
	"md5":        md5.New,
	"sha1":       sha1.New,
	"sha224":     sha256.New224,
	"sha256":     sha256.New,
	"sha384":     sha512.New384,
	"sha512/224": sha512.New512_224,
	"sha512/256": sha512.New512_256,
	"sha512":     sha512.New,
	"sha3-224":   func() hash.Hash { return sha3.New224() },
	"sha3-256":   func() hash.Hash { return sha3.New256() },
	"sha3-384":   func() hash.Hash { return sha3.New384() },
	"sha3-512":   func() hash.Hash { return sha3.New512() },
	"ripemd160":  ripemd160.New,
	"blake2b-256": func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
	"blake2b-512": func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	},
	"blake2s-256": func() hash.Hash {
		h, _ := blake2s.New256(nil)
		return h
	},
	"crc32b":  func() hash.Hash { return crc32.NewIEEE() },
	"adler32": func() hash.Hash { return adler32.New() },
	"fnv132":  func() hash.Hash { return fnv.New32() },
	"fnv1a32": func() hash.Hash { return fnv.New32a() },
	"fnv164":  func() hash.Hash { return fnv.New64() },
	"fnv1a64": func() hash.Hash { return fnv.New64a() },
	"xxh64":   func() hash.Hash { return xxhash.New() },
}

// Supported reports whether name is a registered algorithm.
func Supported(name string) bool {
	_, ok := algorithms[normalize(name)]
	return ok
}

// Names returns the registered algorithm names in sorted order.
func Names() []string {
	out := make([]string, 0, len(algorithms))
	for name := range algorithms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// New returns a fresh hash for name.
func New(name string) (hash.Hash, error) {
	ctor, ok := algorithms[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("digest: unsupported algorithm %q", name)
	}
	return ctor(), nil
}

// Sum returns the lowercase hex digest of data.
func Sum(name string, data []byte) (string, error) {
	h, err := New(name)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumReader streams r through the named algorithm and returns the hex digest.
func SumReader(name string, r io.Reader) (string, error) {
	h, err := New(name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ProbeLength is the number of hex characters name produces for Probe.
func ProbeLength(name string) (int, error) {
	sum, err := Sum(name, []byte(Probe))
	if err != nil {
		return 0, err
	}
	return len(sum), nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
