// Copyright 2024 The Vanadium Authors
// This file is part of Vanadium.
//
// Vanadium is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Vanadium is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Vanadium. If not, see <http://www.gnu.org/licenses/>.

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// ErrInvalidKey is returned when a 32-byte scalar or a 64/65-byte point
// encoding does not describe a valid secp256k1 key.
var ErrInvalidKey = errors.New("crypto: invalid secp256k1 key encoding")

// S256 returns the secp256k1 curve, shared by ECDSA, Schnorr, and the
// ecfp_add_point/scalar_mult ECALLs.
func S256() *btcec.KoblitzCurve {
	return btcec.S256()
}

// PrivateKeyFromBytes parses a 32-byte big-endian scalar as a secp256k1
// private key.
func PrivateKeyFromBytes(d []byte) (*btcec.PrivateKey, error) {
	if len(d) != 32 {
		return nil, ErrInvalidKey
	}
	priv, pub := btcec.PrivKeyFromBytes(S256(), d)
	if pub.X == nil {
		return nil, ErrInvalidKey
	}
	return priv, nil
}

// PublicKeyFromBytes parses a compressed (33-byte) or uncompressed
// (65-byte) SEC1 point encoding.
func PublicKeyFromBytes(b []byte) (*btcec.PublicKey, error) {
	pub, err := btcec.ParsePubKey(b, S256())
	if err != nil {
		return nil, ErrInvalidKey
	}
	return pub, nil
}

// ECDSASign produces an RFC6979-deterministic ECDSA signature over a
// 32-byte digest, DER-encoded.
func ECDSASign(priv *btcec.PrivateKey, digest [32]byte) ([]byte, error) {
	sig, err := priv.Sign(digest[:])
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

// ECDSAVerify checks a DER-encoded ECDSA signature against a 32-byte digest
// and a public key.
func ECDSAVerify(pub *btcec.PublicKey, digest [32]byte, der []byte) bool {
	sig, err := btcec.ParseDERSignature(der, S256())
	if err != nil {
		return false
	}
	return sig.Verify(digest[:], pub)
}

// ECFPAddPoint adds two secp256k1 points. The
// point at infinity is never produced by the valid inputs this ECALL
// accepts from a well-formed guest; callers that need to detect it should
// check the result against (0, 0) as secp256k1's affine big.Int
// representation does.
func ECFPAddPoint(x1, y1, x2, y2 *big.Int) (x3, y3 *big.Int) {
	return S256().Add(x1, y1, x2, y2)
}

// ECFPScalarMult multiplies a secp256k1 point by a scalar.
func ECFPScalarMult(x, y *big.Int, k []byte) (rx, ry *big.Int) {
	return S256().ScalarMult(x, y, k)
}

// GenerateKey draws a fresh secp256k1 private key from the CSPRNG.
func GenerateKey() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey(S256())
}

// RandomBytes fills and returns n bytes from the CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MasterFingerprint returns the first 4 bytes of
// RIPEMD160(SHA256(compressed_pubkey)), the BIP32 master key fingerprint
// exposed by `get_master_fingerprint`.
func MasterFingerprint(pub *btcec.PublicKey) [4]byte {
	sha := sha256.Sum256(pub.SerializeCompressed())
	ripe := ripemd160Sum(sha[:])
	var fp [4]byte
	copy(fp[:], ripe[:4])
	return fp
}
