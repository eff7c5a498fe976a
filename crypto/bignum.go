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
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// MaxBigNumberSize bounds a single bignum ECALL operand, mirroring
// wire.MaxBigNumberSize (duplicated to avoid a dependency cycle).
const MaxBigNumberSize = 64

// ErrBigNumberTooLarge is returned when an operand exceeds MaxBigNumberSize
// bytes or does not fit in 256 bits (uint256's native width); the device
// bignum ECALLs operate on at most 32-byte values despite the nominal
// 64-byte cap, so a wider modulus falls back to the failure return the
// guest ECALL contract expects rather than escalating.
var ErrBigNumberTooLarge = errors.New("crypto: bignum operand exceeds 256 bits")

func toUint256(b []byte) (*uint256.Int, error) {
	if len(b) > 32 {
		return nil, ErrBigNumberTooLarge
	}
	return new(uint256.Int).SetBytes(b), nil
}

// BnModM computes a mod m.
func BnModM(a, m []byte) ([]byte, error) {
	ai, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	mi, err := toUint256(m)
	if err != nil {
		return nil, err
	}
	out := new(uint256.Int)
	out.Mod(ai, mi)
	return out.Bytes(), nil
}

// BnAddM computes (a + b) mod m.
func BnAddM(a, b, m []byte) ([]byte, error) {
	ai, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	bi, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	mi, err := toUint256(m)
	if err != nil {
		return nil, err
	}
	out := new(uint256.Int)
	out.AddMod(ai, bi, mi)
	return out.Bytes(), nil
}

// BnSubM computes (a - b) mod m.
func BnSubM(a, b, m []byte) ([]byte, error) {
	ai, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	bi, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	mi, err := toUint256(m)
	if err != nil {
		return nil, err
	}
	// uint256 has no SubMod; compute (a + (m - b mod m)) mod m.
	bmodm := new(uint256.Int).Mod(bi, mi)
	diff := new(uint256.Int).Sub(mi, bmodm)
	out := new(uint256.Int).AddMod(ai, diff, mi)
	return out.Bytes(), nil
}

// BnMultM computes (a * b) mod m.
func BnMultM(a, b, m []byte) ([]byte, error) {
	ai, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	bi, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	mi, err := toUint256(m)
	if err != nil {
		return nil, err
	}
	out := new(uint256.Int)
	out.MulMod(ai, bi, mi)
	return out.Bytes(), nil
}

// BnPowM computes (a ^ e) mod m. uint256 has no
// built-in modular exponentiation, so this falls back to math/big for the
// exponentiation step only, converting back to a 32-byte result.
func BnPowM(a, e, m []byte) ([]byte, error) {
	if len(a) > 32 || len(e) > 32 || len(m) > 32 {
		return nil, ErrBigNumberTooLarge
	}
	ai := new(big.Int).SetBytes(a)
	ei := new(big.Int).SetBytes(e)
	mi := new(big.Int).SetBytes(m)
	if mi.Sign() == 0 {
		return nil, errors.New("crypto: bn_powm modulus is zero")
	}
	out := new(big.Int).Exp(ai, ei, mi)
	return leftPad(out.Bytes(), 32), nil
}

// BnModInvPrime computes the modular inverse of a modulo a prime p via
// Fermat's little theorem: a^(p-2) mod p.
func BnModInvPrime(a, p []byte) ([]byte, error) {
	pMinus2 := new(big.Int).Sub(new(big.Int).SetBytes(p), big.NewInt(2))
	return BnPowM(a, pMinus2.Bytes(), p)
}

func leftPad(b []byte, n int) []byte {
	if len(b) >= n {
		return b[len(b)-n:]
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}
