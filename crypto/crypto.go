// Package crypto implements the hashing, secret-generation, and
// script-assembly primitives shared by every ledger adapter in this
// repository. Every ledger in the protocol (UTXO script, native rail,
// EVM contract) hashes preimages with SHA-256 so a single secret triple
// verifies identically on all three; this package is the one place that
// invariant is encoded.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// SecretSize is the fixed length, in bytes, of a preimage and of its
// SHA-256 hashlock.
const SecretSize = 32

// Secret is a 32-byte preimage. The zero value is not a valid secret.
type Secret [SecretSize]byte

// Hashlock is the SHA-256 image of a Secret.
type Hashlock [SecretSize]byte

// GenSecret draws a new secret from a CSPRNG and returns it alongside
// its hashlock.
func GenSecret() (Secret, Hashlock, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, Hashlock{}, fmt.Errorf("generate secret: %w", err)
	}
	return s, Sha256(s[:]), nil
}

// Verify reports whether sha256(secret) equals hashlock.
func Verify(secret Secret, hashlock Hashlock) bool {
	return Sha256(secret[:]) == hashlock
}

// Sha256 returns the single SHA-256 digest of data as a Hashlock-shaped
// array. Used both for hashlock derivation and as the witness-program
// hash underneath a P2WSH address.
func Sha256(data []byte) Hashlock {
	return sha256.Sum256(data)
}

// DoubleSha256 returns SHA-256(SHA-256(data)), the digest used for
// Bitcoin txids and the BIP-143 sighash preimage components.
func DoubleSha256(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// Bech32HRP returns the human-readable part for a witness-program
// address on the given network, mirroring the Python reference client's
// hardcoded {"mainnet": "bc", "testnet": "tb", "signet": "tb"} mapping.
func Bech32HRP(network string) string {
	switch network {
	case "mainnet":
		return "bc"
	default:
		return "tb"
	}
}

// EncodeWitnessAddress bech32-encodes a segwit v0 witness program (a
// 32-byte P2WSH witness program, in this repository's case) per
// BIP-173. witnessVersion is 0 for every address this repository
// produces.
func EncodeWitnessAddress(hrp string, witnessVersion byte, program []byte) (string, error) {
	converted, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert witness program bits: %w", err)
	}

	combined := make([]byte, 0, len(converted)+1)
	combined = append(combined, witnessVersion)
	combined = append(combined, converted...)

	return bech32.Encode(hrp, combined)
}

// DecodeWitnessAddress reverses EncodeWitnessAddress, returning the
// witness version and program. Used by R3 (bech32 round-trip) and by
// any caller that needs to recover the program embedded in a tracked
// HTLC's address.
func DecodeWitnessAddress(address string) (hrp string, version byte, program []byte, err error) {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return "", 0, nil, fmt.Errorf("decode bech32: %w", err)
	}
	if len(data) < 1 {
		return "", 0, nil, fmt.Errorf("empty bech32 payload")
	}

	version = data[0]
	program, err = bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return "", 0, nil, fmt.Errorf("convert witness program bits: %w", err)
	}

	return hrp, version, program, nil
}

// CompactSize encodes n as a Bitcoin compact-size (varint), matching the
// Python reference client's _encode_compact_size byte for byte.
func CompactSize(n uint64) []byte {
	switch {
	case n < 0xfd:
		return []byte{byte(n)}
	case n <= 0xffff:
		buf := make([]byte, 3)
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:], uint16(n))
		return buf
	case n <= 0xffffffff:
		buf := make([]byte, 5)
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:], uint32(n))
		return buf
	default:
		buf := make([]byte, 9)
		buf[0] = 0xff
		binary.LittleEndian.PutUint64(buf[1:], n)
		return buf
	}
}

// PushData returns the canonical script push opcode(s) for data,
// matching the Python reference client's push_data: direct length byte
// under 0x4c, OP_PUSHDATA1/2/4 beyond that.
func PushData(data []byte) []byte {
	length := len(data)
	switch {
	case length < 0x4c:
		out := make([]byte, 0, 1+length)
		out = append(out, byte(length))
		return append(out, data...)
	case length <= 0xff:
		out := make([]byte, 0, 2+length)
		out = append(out, 0x4c, byte(length))
		return append(out, data...)
	case length <= 0xffff:
		lenBuf := make([]byte, 2)
		binary.LittleEndian.PutUint16(lenBuf, uint16(length))
		out := append([]byte{0x4d}, lenBuf...)
		return append(out, data...)
	default:
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(length))
		out := append([]byte{0x4e}, lenBuf...)
		return append(out, data...)
	}
}

// PushInt encodes an integer for use as a script timelock push, matching
// the Python reference client's push_int (minimal CScriptNum encoding).
func PushInt(n int64) []byte {
	if n == 0 {
		return []byte{0x00}
	}
	if n >= 1 && n <= 16 {
		return []byte{0x50 + byte(n)}
	}

	negative := n < 0
	absN := n
	if negative {
		absN = -absN
	}

	var result []byte
	for absN != 0 {
		result = append(result, byte(absN&0xff))
		absN >>= 8
	}

	if result[len(result)-1]&0x80 != 0 {
		if negative {
			result = append(result, 0x80)
		} else {
			result = append(result, 0x00)
		}
	} else if negative {
		result[len(result)-1] |= 0x80
	}

	return PushData(result)
}
