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
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
)

// ErrInvalidSchnorrSig names a malformed or invalid 64-byte BIP340
// signature. SchnorrVerify does not return it; it reports failure as false.
var ErrInvalidSchnorrSig = errors.New("crypto: invalid schnorr signature")

// SchnorrSign produces a 64-byte BIP340 signature over a 32-byte message,
// implemented directly against the secp256k1 curve group since this
// module's pinned btcec release predates its schnorr subpackage (spec
// §4.5 `schnorr_sign`).
func SchnorrSign(priv *btcec.PrivateKey, msg [32]byte) ([64]byte, error) {
	curve := S256()
	n := curve.N

	d := new(big.Int).Set(priv.D)
	px, py := curve.ScalarBaseMult(d.Bytes())
	if py.Bit(0) == 1 {
		d.Sub(n, d)
	}

	aux := make([]byte, 32)
	if _, err := rand.Read(aux); err != nil {
		return [64]byte{}, err
	}
	t := xorBytes(bePad32(d), TaggedHashBytes("BIP0340/aux", aux))

	rand32 := TaggedHashBytes("BIP0340/nonce", t, bePad32(px), msg[:])
	k := new(big.Int).Mod(new(big.Int).SetBytes(rand32), n)
	if k.Sign() == 0 {
		return [64]byte{}, errors.New("crypto: schnorr nonce was zero")
	}
	rx, ry := curve.ScalarBaseMult(k.Bytes())
	if ry.Bit(0) == 1 {
		k.Sub(n, k)
	}

	e := schnorrChallenge(rx, px, msg)

	s := new(big.Int).Mul(e, d)
	s.Add(s, k)
	s.Mod(s, n)

	var sig [64]byte
	copy(sig[:32], bePad32(rx))
	copy(sig[32:], bePad32(s))
	return sig, nil
}

// SchnorrVerify checks a 64-byte BIP340 signature over a 32-byte message
// against an x-only public key (the 32-byte X coordinate of an
// even-Y point).
func SchnorrVerify(pubX *big.Int, msg [32]byte, sig [64]byte) bool {
	curve := S256()
	p := curve.P
	n := curve.N

	rx := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	if rx.Cmp(p) >= 0 || s.Cmp(n) >= 0 {
		return false
	}

	py, ok := liftXEvenY(pubX)
	if !ok {
		return false
	}

	e := schnorrChallenge(rx, pubX, msg)

	sx, sy := curve.ScalarBaseMult(s.Bytes())
	negE := new(big.Int).Sub(n, e)
	ex, ey := curve.ScalarMult(pubX, py, negE.Bytes())
	rxp, ryp := curve.Add(sx, sy, ex, ey)

	if rxp.Sign() == 0 && ryp.Sign() == 0 {
		return false
	}
	if ryp.Bit(0) != 0 {
		return false
	}
	return rxp.Cmp(rx) == 0
}

func schnorrChallenge(rx, px *big.Int, msg [32]byte) *big.Int {
	e := TaggedHashBytes("BIP0340/challenge", bePad32(rx), bePad32(px), msg[:])
	return new(big.Int).Mod(new(big.Int).SetBytes(e), S256().N)
}

// liftXEvenY recovers the even-Y point on the curve for a given X
// coordinate, as required by BIP340 x-only public keys.
func liftXEvenY(x *big.Int) (*big.Int, bool) {
	curve := S256()
	p := curve.P
	if x.Sign() < 0 || x.Cmp(p) >= 0 {
		return nil, false
	}
	// y^2 = x^3 + 7 mod p
	ySq := new(big.Int).Exp(x, big.NewInt(3), p)
	ySq.Add(ySq, big.NewInt(7))
	ySq.Mod(ySq, p)

	y := new(big.Int).ModSqrt(ySq, p)
	if y == nil {
		return nil, false
	}
	if y.Bit(0) != 0 {
		y.Sub(p, y)
	}
	return y, true
}

func bePad32(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// TaggedHashBytes is the slice-returning form of TaggedHash, convenient for
// BIP340's repeated tagged-hash construction.
func TaggedHashBytes(tag string, msg ...[]byte) []byte {
	h := TaggedHash(tag, msg...)
	return h[:]
}
