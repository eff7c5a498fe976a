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

package sdk

import "encoding/binary"

// GetDeviceProperty returns the device-specific property word baked in at
// provisioning time (e.g. a product/feature bitmask); it never suspends
// and never fails.
func GetDeviceProperty() uint32 {
	return trap(codeGetDeviceProperty, 0, 0, 0, 0, 0, 0, 0)
}

// GetMasterFingerprint returns the first 4 bytes of
// RIPEMD160(SHA256(compressed master pubkey)) for the given curve. Only
// CurveSECP256K1 is supported.
func GetMasterFingerprint(curve uint32) (fingerprint uint32, ok bool) {
	if curve != CurveSECP256K1 {
		return 0, false
	}
	return trap(codeGetMasterFingerprint, curve, 0, 0, 0, 0, 0, 0), true
}

// HDNode is a derived BIP32 extended key (private key plus chain code);
// sdk never exposes the master key itself, only nodes derived from it.
type HDNode struct {
	PrivateKey [32]byte
	ChainCode  [32]byte
}

// DeriveHDNode derives the BIP32 node at path from the device's master key
// for curve. Only CurveSECP256K1 is supported.
func DeriveHDNode(curve uint32, path []uint32) (HDNode, bool) {
	raw := make([]byte, len(path)*4)
	for i, idx := range path {
		binary.LittleEndian.PutUint32(raw[i*4:], idx)
	}
	var node HDNode
	ok := trap(codeDeriveHDNode,
		curve, ptrOf(raw), uint32(len(path)),
		ptrOf(node.PrivateKey[:]), ptrOf(node.ChainCode[:]),
		0, 0) != 0
	return node, ok
}

// SLIP21Node is a derived SLIP-0021 symmetric node: a chain code and a key,
// each 32 bytes, used for application-specific secrets outside the BIP32
// hierarchy (password managers, encryption keys, etc).
type SLIP21Node struct {
	ChainCode [32]byte
	Key       [32]byte
}

// maxSLIP21LabelLen and maxSLIP21TotalLen mirror the device-side bounds on
// a derive_slip21_node label path.
const (
	maxSLIP21LabelLen = 252
	maxSLIP21TotalLen = 256
)

// DeriveSLIP21Node derives the SLIP-0021 node at the given label path. Each
// label must be non-empty, at most maxSLIP21LabelLen bytes, and must not
// contain '/'; ok is false if the encoded path would exceed
// maxSLIP21TotalLen or any label is invalid.
func DeriveSLIP21Node(labels ...string) (SLIP21Node, bool) {
	var raw []byte
	for _, l := range labels {
		if len(l) == 0 || len(l) > maxSLIP21LabelLen {
			return SLIP21Node{}, false
		}
		raw = append(raw, byte(len(l)))
		raw = append(raw, l...)
	}
	if len(raw) > maxSLIP21TotalLen {
		return SLIP21Node{}, false
	}
	var out [64]byte
	ok := trap(codeDeriveSLIP21Node, ptrOf(raw), uint32(len(raw)), ptrOf(out[:]), 0, 0, 0, 0) != 0
	var node SLIP21Node
	copy(node.ChainCode[:], out[:32])
	copy(node.Key[:], out[32:])
	return node, ok
}

// secp256k1Generator is the curve's public base point, needed to turn a
// derived private key into the public key an extended-public-key record
// carries. It is a curve constant, not key material.
var secp256k1Generator = Point{
	X: [32]byte{
		0x79, 0xbe, 0x66, 0x7e, 0xf9, 0xdc, 0xbb, 0xac,
		0x55, 0xa0, 0x62, 0x95, 0xce, 0x87, 0x0b, 0x07,
		0x02, 0x9b, 0xfc, 0xdb, 0x2d, 0xce, 0x28, 0xd9,
		0x59, 0xf2, 0x81, 0x5b, 0x16, 0xf8, 0x17, 0x98,
	},
	Y: [32]byte{
		0x48, 0x3a, 0xda, 0x77, 0x26, 0xa3, 0xc4, 0x65,
		0x5d, 0xa4, 0xfb, 0xfc, 0x0e, 0x11, 0x08, 0xa8,
		0xfd, 0x17, 0xb4, 0x48, 0xa6, 0x85, 0x54, 0x19,
		0x9c, 0x47, 0xd0, 0x8f, 0xfb, 0x10, 0xd4, 0xb8,
	},
}

// bip32XpubVersion is the BIP32 testnet extended-public-key version prefix;
// this SDK targets test/demo V-Apps, not the bundled Bitcoin production
// app, so it never needs the mainnet version bytes.
const bip32XpubVersion = 0x043587CF

// pubkeyFingerprint returns BIP32's "key identifier" prefix:
// RIPEMD160(SHA256(compressed pubkey))[:4], computed through the device's
// own streaming-hash ECALLs rather than a guest-side crypto package, same
// as every other digest this SDK produces.
func pubkeyFingerprint(pub Point) uint32 {
	e := pub.encode()
	var compressed [33]byte
	compressed[0] = 0x02 + pub.Y[31]%2
	copy(compressed[1:], e[1:33])

	var sha Hash
	sha.Init(HashSHA256)
	sha.Update(compressed[:])
	digest := sha.Final()

	var ripe Hash
	ripe.Init(HashRIPEMD160)
	ripe.Update(digest)
	fingerprint := ripe.Final()

	return binary.BigEndian.Uint32(fingerprint[:4])
}

// ExtendedPublicKey is a BIP32 extended public key record: enough to derive
// (without the private key) every non-hardened child of path.
type ExtendedPublicKey struct {
	Depth       uint8
	ParentFPR   uint32
	ChildNumber uint32
	ChainCode   [32]byte
	PublicKey   Point
}

// Bytes serializes k in the standard 78-byte extended-key layout (version,
// depth, parent fingerprint, child number, chain code, compressed pubkey),
// the same field order `handle_get_extended_pubkey` produces before
// Base58Check-encoding it for display.
func (k ExtendedPublicKey) Bytes() []byte {
	out := make([]byte, 0, 78)
	var version [4]byte
	binary.BigEndian.PutUint32(version[:], bip32XpubVersion)
	out = append(out, version[:]...)
	out = append(out, k.Depth)
	var parentFPR, childNumber [4]byte
	binary.BigEndian.PutUint32(parentFPR[:], k.ParentFPR)
	binary.BigEndian.PutUint32(childNumber[:], k.ChildNumber)
	out = append(out, parentFPR[:]...)
	out = append(out, childNumber[:]...)
	out = append(out, k.ChainCode[:]...)
	compressed := k.PublicKey.encode()
	out = append(out, 0x02+k.PublicKey.Y[31]%2)
	out = append(out, compressed[1:33]...)
	return out
}

// DeriveExtendedPublicKey derives the BIP32 extended public key at path,
// layering a public-key computation and BIP32 framing on top of the raw
// DeriveHDNode ECALL: the caller gets something directly serializable for
// an xpub display or an external wallet import, instead of a bare private
// scalar. Only CurveSECP256K1 is supported; ok is false on an unsupported
// curve or a failed derivation.
func DeriveExtendedPublicKey(curve uint32, path []uint32) (ExtendedPublicKey, bool) {
	node, ok := DeriveHDNode(curve, path)
	if !ok {
		return ExtendedPublicKey{}, false
	}
	pub := ECFPScalarMult(secp256k1Generator, node.PrivateKey[:])

	var parentFPR uint32
	if len(path) > 0 {
		parentNode, ok := DeriveHDNode(curve, path[:len(path)-1])
		if !ok {
			return ExtendedPublicKey{}, false
		}
		parentFPR = pubkeyFingerprint(ECFPScalarMult(secp256k1Generator, parentNode.PrivateKey[:]))
	}
	var childNumber uint32
	if len(path) > 0 {
		childNumber = path[len(path)-1]
	}

	return ExtendedPublicKey{
		Depth:       uint8(len(path)),
		ParentFPR:   parentFPR,
		ChildNumber: childNumber,
		ChainCode:   node.ChainCode,
		PublicKey:   pub,
	}, true
}

// MaxBigNumberSize bounds every bignum operand accepted by BnModM, BnAddM,
// BnSubM, BnMultM, BnPowM, and BnModInvPrime.
const MaxBigNumberSize = 64

// bn2 backs the two-operand bignum ECALLs: a0=aPtr, a1=aLen, a2=mPtr,
// a3=mLen, a4=outPtr.
func bn2(c code, a, m []byte) ([]byte, bool) {
	out := make([]byte, len(m))
	ok := trap(c, ptrOf(a), uint32(len(a)), ptrOf(m), uint32(len(m)), ptrOf(out), 0, 0) != 0
	return out, ok
}

// bn3 backs the three-operand bignum ECALLs: a0=aPtr, a1=aLen, a2=bPtr,
// a3=bLen, a4=mPtr, a5=mLen, a6=outPtr.
func bn3(c code, a, b, m []byte) ([]byte, bool) {
	out := make([]byte, len(m))
	ok := trap(c, ptrOf(a), uint32(len(a)), ptrOf(b), uint32(len(b)), ptrOf(m), uint32(len(m)), ptrOf(out)) != 0
	return out, ok
}

// BnModM computes a mod m, left-padded to len(m) bytes.
func BnModM(a, m []byte) ([]byte, bool) { return bn2(codeBnModM, a, m) }

// BnModInvPrime computes the modular inverse of a mod prime m.
func BnModInvPrime(a, m []byte) ([]byte, bool) { return bn2(codeBnModInvPrime, a, m) }

// BnAddM computes (a+b) mod m.
func BnAddM(a, b, m []byte) ([]byte, bool) { return bn3(codeBnAddM, a, b, m) }

// BnSubM computes (a-b) mod m.
func BnSubM(a, b, m []byte) ([]byte, bool) { return bn3(codeBnSubM, a, b, m) }

// BnMultM computes (a*b) mod m.
func BnMultM(a, b, m []byte) ([]byte, bool) { return bn3(codeBnMultM, a, b, m) }

// BnPowM computes (a^b) mod m.
func BnPowM(a, b, m []byte) ([]byte, bool) { return bn3(codeBnPowM, a, b, m) }

// Point is an uncompressed secp256k1 curve point.
type Point struct {
	X, Y [32]byte
}

func (p Point) encode() [65]byte {
	var out [65]byte
	out[0] = 0x04
	copy(out[1:33], p.X[:])
	copy(out[33:65], p.Y[:])
	return out
}

func decodePoint(b [65]byte) Point {
	var p Point
	copy(p.X[:], b[1:33])
	copy(p.Y[:], b[33:65])
	return p
}

// ECFPAddPoint adds two secp256k1 points.
func ECFPAddPoint(p1, p2 Point) Point {
	e1, e2 := p1.encode(), p2.encode()
	var out [65]byte
	trap(codeECFPAddPoint, ptrOf(e1[:]), ptrOf(e2[:]), ptrOf(out[:]), 0, 0, 0, 0)
	return decodePoint(out)
}

// ECFPScalarMult multiplies p by the big-endian scalar k.
func ECFPScalarMult(p Point, k []byte) Point {
	e := p.encode()
	var out [65]byte
	trap(codeECFPScalarMult, ptrOf(e[:]), ptrOf(k), uint32(len(k)), ptrOf(out[:]), 0, 0, 0)
	return decodePoint(out)
}

// GetRandomBytes fills buf with device-CSPRNG output.
func GetRandomBytes(buf []byte) {
	trap(codeGetRandomBytes, ptrOf(buf), uint32(len(buf)), 0, 0, 0, 0, 0)
}

// ECDSASign produces a DER-encoded secp256k1 signature over digest with
// privKey. ok is false on an invalid private key.
func ECDSASign(privKey, digest [32]byte) (der []byte, ok bool) {
	var out [72]byte
	n := trap(codeECDSASign, ptrOf(privKey[:]), ptrOf(digest[:]), ptrOf(out[:]), 0, 0, 0, 0)
	if n == 0 {
		return nil, false
	}
	return out[:n], true
}

// ECDSAVerify checks a DER-encoded secp256k1 signature over digest against
// an uncompressed public key.
func ECDSAVerify(pubKey Point, digest [32]byte, der []byte) bool {
	e := pubKey.encode()
	return trap(codeECDSAVerify, ptrOf(e[:]), ptrOf(digest[:]), ptrOf(der), uint32(len(der)), 0, 0, 0) != 0
}

// SchnorrSign produces a BIP340 signature over a 32-byte message digest.
func SchnorrSign(privKey, digest [32]byte) (sig [64]byte, ok bool) {
	r := trap(codeSchnorrSign, ptrOf(privKey[:]), ptrOf(digest[:]), ptrOf(sig[:]), 0, 0, 0, 0)
	return sig, r != 0
}

// SchnorrVerify checks a BIP340 signature against an x-only public key.
func SchnorrVerify(pubKeyX [32]byte, digest [32]byte, sig [64]byte) bool {
	return trap(codeSchnorrVerify, ptrOf(pubKeyX[:]), ptrOf(digest[:]), ptrOf(sig[:]), 0, 0, 0, 0) != 0
}
