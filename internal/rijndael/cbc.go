package rijndael

import (
	"bytes"
	"crypto/cipher"
	"fmt"
)

// ZeroPad pads b with zero bytes up to a multiple of blockSize. Input that is
// already aligned is returned unchanged.
func ZeroPad(b []byte, blockSize int) []byte {
	rem := len(b) % blockSize
	if rem == 0 {
		return b
	}
	return append(b, make([]byte, blockSize-rem)...)
}

// EncryptCBC zero-pads plaintext and encrypts it in CBC mode. The block size
// is taken from the IV length.
func EncryptCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := NewCipher(key, len(iv))
	if err != nil {
		return nil, err
	}

	padded := ZeroPad(bytes.Clone(plaintext), block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// DecryptCBC reverses EncryptCBC. The zero padding is left in place.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := NewCipher(key, len(iv))
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("rijndael: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}
