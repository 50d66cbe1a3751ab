package hydroottawa

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/jgoulah/bidgely/internal/rijndael"
)

// Fixed Rijndael-256 key and IV the SSO endpoint decrypts with
const (
	cipherKey = "tG@$=gQGyu_Lcqvt/4Vb6y4sWV6j-VmC"
	cipherIV  = "%rAn_BLzP+JwAAGGXe5PQ(ZrBgtpfUzq"
	padByte   = 0x1b
)

// federationPayload field order is the wire order
type federationPayload struct {
	AccountID    string `json:"accountId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Language     string `json:"language"`
	RequestType  string `json:"requestType"`
	IdentityType string `json:"identityType"`
	Impersonator string `json:"impersonator"`
}

func newPayload(accountID, accessToken, refreshToken string) federationPayload {
	return federationPayload{
		AccountID:    accountID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Language:     "en",
		RequestType:  "",
		IdentityType: "cognito",
		Impersonator: "",
	}
}

// marshalPayload renders compact JSON without HTML escaping or a trailing
// newline. The SSO endpoint expects non-ASCII characters as \uXXXX escapes.
func marshalPayload(p federationPayload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return escapeNonASCII(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// escapeNonASCII rewrites every non-ASCII rune of encoded JSON as \uXXXX,
// using surrogate pairs above the BMP. Non-ASCII bytes only occur inside
// string literals, so the result is equivalent JSON.
func escapeNonASCII(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for len(b) > 0 {
		if b[0] < utf8.RuneSelf {
			out = append(out, b[0])
			b = b[1:]
			continue
		}
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r1, r2 := utf16.EncodeRune(r); r1 != utf8.RuneError {
			out = fmt.Appendf(out, `\u%04x\u%04x`, r1, r2)
			continue
		}
		out = fmt.Appendf(out, `\u%04x`, r)
	}
	return out
}

// sealPayload pads short payloads to one block with padByte, encrypts them
// and returns the base64 session token
func sealPayload(plaintext []byte) (string, error) {
	blockSize := len(cipherIV)
	if len(plaintext) < blockSize {
		plaintext = append(bytes.Clone(plaintext), bytes.Repeat([]byte{padByte}, blockSize-len(plaintext))...)
	}

	sealed, err := rijndael.EncryptCBC([]byte(cipherKey), []byte(cipherIV), plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
