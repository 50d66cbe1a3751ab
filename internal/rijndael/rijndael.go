// Package rijndael implements the Rijndael block cipher with 128, 192 or
// 256-bit blocks. AES is the 128-bit block subset; some SSO endpoints still
// expect payloads sealed with 256-bit blocks, which crypto/aes cannot produce.
package rijndael

import (
	"crypto/cipher"
	"fmt"
)

var (
	sbox    [256]byte
	invSbox [256]byte
)

func init() {
	p, q := byte(1), byte(1)
	for {
		hi := p & 0x80
		p ^= p << 1
		if hi != 0 {
			p ^= 0x1b
		}

		q ^= q << 1
		q ^= q << 2
		q ^= q << 4
		if q&0x80 != 0 {
			q ^= 0x09
		}

		x := q ^ rotl8(q, 1) ^ rotl8(q, 2) ^ rotl8(q, 3) ^ rotl8(q, 4)
		sbox[p] = x ^ 0x63

		if p == 1 {
			break
		}
	}
	sbox[0] = 0x63

	for i := range sbox {
		invSbox[sbox[i]] = byte(i)
	}
}

func rotl8(x byte, shift uint) byte {
	return x<<shift | x>>(8-shift)
}

func xtime(b byte) byte {
	if b&0x80 != 0 {
		return b<<1 ^ 0x1b
	}
	return b << 1
}

func gmul(a, b byte) byte {
	var p byte
	for b != 0 {
		if b&1 != 0 {
			p ^= a
		}
		a = xtime(a)
		b >>= 1
	}
	return p
}

type rijndaelCipher struct {
	nb     int // block size in 32-bit columns
	nr     int // rounds
	shifts [4]int
	w      []uint32
}

// NewCipher returns a Rijndael block for a 16, 24 or 32-byte key and a
// 16, 24 or 32-byte block size.
func NewCipher(key []byte, blockSize int) (cipher.Block, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("rijndael: invalid key size %d", len(key))
	}
	switch blockSize {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("rijndael: invalid block size %d", blockSize)
	}

	nk := len(key) / 4
	nb := blockSize / 4
	nr := max(nk, nb) + 6

	c := &rijndaelCipher{nb: nb, nr: nr, shifts: [4]int{0, 1, 2, 3}}
	if nb == 8 {
		c.shifts = [4]int{0, 1, 3, 4}
	}
	c.expandKey(key, nk)
	return c, nil
}

func (c *rijndaelCipher) expandKey(key []byte, nk int) {
	total := c.nb * (c.nr + 1)
	c.w = make([]uint32, total)
	for i := 0; i < nk; i++ {
		c.w[i] = uint32(key[4*i])<<24 | uint32(key[4*i+1])<<16 | uint32(key[4*i+2])<<8 | uint32(key[4*i+3])
	}

	rcon := byte(1)
	for i := nk; i < total; i++ {
		temp := c.w[i-1]
		switch {
		case i%nk == 0:
			temp = subWord(temp<<8|temp>>24) ^ uint32(rcon)<<24
			rcon = xtime(rcon)
		case nk > 6 && i%nk == 4:
			temp = subWord(temp)
		}
		c.w[i] = c.w[i-nk] ^ temp
	}
}

func subWord(w uint32) uint32 {
	return uint32(sbox[w>>24])<<24 |
		uint32(sbox[w>>16&0xff])<<16 |
		uint32(sbox[w>>8&0xff])<<8 |
		uint32(sbox[w&0xff])
}

func (c *rijndaelCipher) BlockSize() int { return 4 * c.nb }

func (c *rijndaelCipher) Encrypt(dst, src []byte) {
	n := c.BlockSize()
	if len(src) < n || len(dst) < n {
		panic("rijndael: input not full block")
	}
	state := make([]byte, n)
	copy(state, src[:n])

	c.addRoundKey(state, 0)
	for round := 1; round < c.nr; round++ {
		subBytes(state, &sbox)
		c.shiftRows(state)
		c.mixColumns(state)
		c.addRoundKey(state, round)
	}
	subBytes(state, &sbox)
	c.shiftRows(state)
	c.addRoundKey(state, c.nr)

	copy(dst, state)
}

func (c *rijndaelCipher) Decrypt(dst, src []byte) {
	n := c.BlockSize()
	if len(src) < n || len(dst) < n {
		panic("rijndael: input not full block")
	}
	state := make([]byte, n)
	copy(state, src[:n])

	c.addRoundKey(state, c.nr)
	for round := c.nr - 1; round > 0; round-- {
		c.invShiftRows(state)
		subBytes(state, &invSbox)
		c.addRoundKey(state, round)
		c.invMixColumns(state)
	}
	c.invShiftRows(state)
	subBytes(state, &invSbox)
	c.addRoundKey(state, 0)

	copy(dst, state)
}

// state is column-major: byte r of column col lives at state[4*col+r]

func (c *rijndaelCipher) addRoundKey(state []byte, round int) {
	for col := 0; col < c.nb; col++ {
		k := c.w[round*c.nb+col]
		state[4*col] ^= byte(k >> 24)
		state[4*col+1] ^= byte(k >> 16)
		state[4*col+2] ^= byte(k >> 8)
		state[4*col+3] ^= byte(k)
	}
}

func subBytes(state []byte, box *[256]byte) {
	for i, b := range state {
		state[i] = box[b]
	}
}

func (c *rijndaelCipher) shiftRows(state []byte) {
	row := make([]byte, c.nb)
	for r := 1; r < 4; r++ {
		for col := 0; col < c.nb; col++ {
			row[col] = state[4*((col+c.shifts[r])%c.nb)+r]
		}
		for col := 0; col < c.nb; col++ {
			state[4*col+r] = row[col]
		}
	}
}

func (c *rijndaelCipher) invShiftRows(state []byte) {
	row := make([]byte, c.nb)
	for r := 1; r < 4; r++ {
		for col := 0; col < c.nb; col++ {
			row[(col+c.shifts[r])%c.nb] = state[4*col+r]
		}
		for col := 0; col < c.nb; col++ {
			state[4*col+r] = row[col]
		}
	}
}

func (c *rijndaelCipher) mixColumns(state []byte) {
	for col := 0; col < c.nb; col++ {
		s := state[4*col : 4*col+4]
		a0, a1, a2, a3 := s[0], s[1], s[2], s[3]
		s[0] = xtime(a0) ^ (xtime(a1) ^ a1) ^ a2 ^ a3
		s[1] = a0 ^ xtime(a1) ^ (xtime(a2) ^ a2) ^ a3
		s[2] = a0 ^ a1 ^ xtime(a2) ^ (xtime(a3) ^ a3)
		s[3] = (xtime(a0) ^ a0) ^ a1 ^ a2 ^ xtime(a3)
	}
}

func (c *rijndaelCipher) invMixColumns(state []byte) {
	for col := 0; col < c.nb; col++ {
		s := state[4*col : 4*col+4]
		a0, a1, a2, a3 := s[0], s[1], s[2], s[3]
		s[0] = gmul(a0, 0x0e) ^ gmul(a1, 0x0b) ^ gmul(a2, 0x0d) ^ gmul(a3, 0x09)
		s[1] = gmul(a0, 0x09) ^ gmul(a1, 0x0e) ^ gmul(a2, 0x0b) ^ gmul(a3, 0x0d)
		s[2] = gmul(a0, 0x0d) ^ gmul(a1, 0x09) ^ gmul(a2, 0x0e) ^ gmul(a3, 0x0b)
		s[3] = gmul(a0, 0x0b) ^ gmul(a1, 0x0d) ^ gmul(a2, 0x09) ^ gmul(a3, 0x0e)
	}
}
