/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// CanonicalAddressSize is the size of a raw node address.
const CanonicalAddressSize = common.AddressLength

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}

// CanonicalAddress derives the 20-byte address of the holder of verifyingKey.
func CanonicalAddress(verifyingKey PublicKey) common.Address {
	return common.BytesToAddress(Keccak256(verifyingKey.Bytes())[12:])
}

// ChecksumAddress derives the EIP-55 text address of the holder of verifyingKey.
func ChecksumAddress(verifyingKey PublicKey) string {
	return CanonicalAddress(verifyingKey).Hex()
}

// ToCanonicalAddress converts a hex address, checksummed or not, to its 20 raw bytes.
func ToCanonicalAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	return common.HexToAddress(address), nil
}

// ToChecksumAddress re-expands 20 raw address bytes into EIP-55 form.
func ToChecksumAddress(canonical []byte) (string, error) {
	if len(canonical) != CanonicalAddressSize {
		return "", fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, CanonicalAddressSize, len(canonical))
	}

	return common.BytesToAddress(canonical).Hex(), nil
}
