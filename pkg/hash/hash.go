package hash

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// Digest отпечаток содержимого файла в виде "<алгоритм>:<hex>".
type Digest string

func (d Digest) Algorithm() Algorithm {
	alg, _, _ := strings.Cut(string(d), ":")
	return Algorithm(alg)
}

func (d Digest) Hex() string {
	_, sum, _ := strings.Cut(string(d), ":")
	return sum
}

type Hasher struct {
	algorithm Algorithm
}

func NewHasher(algorithm Algorithm) (*Hasher, error) {
	if _, err := newHash(algorithm); err != nil {
		return nil, err
	}
	return &Hasher{algorithm: algorithm}, nil
}

func (h *Hasher) Sum(data []byte) Digest {
	hh, _ := newHash(h.algorithm)
	hh.Write(data)
	return h.digest(hh)
}

func (h *Hasher) SumReader(r io.Reader) (Digest, error) {
	hh, _ := newHash(h.algorithm)
	if _, err := io.Copy(hh, r); err != nil {
		return "", fmt.Errorf("failed to read data: %w", err)
	}
	return h.digest(hh), nil
}

// Verify сравнивает содержимое с отпечатком, посчитанным любым поддерживаемым алгоритмом.
func Verify(data []byte, expected Digest) (bool, error) {
	h, err := NewHasher(expected.Algorithm())
	if err != nil {
		return false, err
	}
	return h.Sum(data) == expected, nil
}

func (h *Hasher) digest(hh hash.Hash) Digest {
	return Digest(string(h.algorithm) + ":" + hex.EncodeToString(hh.Sum(nil)))
}

func newHash(algorithm Algorithm) (hash.Hash, error) {
	switch algorithm {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// SHA256Sum отпечаток по умолчанию для загружаемых работ.
func SHA256Sum(data []byte) Digest {
	sum := sha256.Sum256(data)
	return Digest(string(SHA256) + ":" + hex.EncodeToString(sum[:]))
}
