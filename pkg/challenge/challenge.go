// Package challenge implements the challenge-response handshake that gates
// the orders read API.
//
// The server hands out a random challenge, the client answers with
// Hash(challenge + secret) and the server recomputes it. Nothing is stored
// server side, challenges never expire and a captured pair can be replayed:
// this keeps scrapers out, it does not authenticate anyone.
package challenge

import (
	"math/rand/v2"
	"strconv"
	"unicode/utf16"
)

const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	length   = 13
)

// NewChallenge returns a fresh random challenge.
func NewChallenge() string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

// Hash is the rolling 32-bit string hash shared with the clients:
// h = (h<<5) - h + c over the UTF-16 code units of s, rendered as |h| in hex.
func Hash(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 16)
}

// Response computes the answer a client sends for a challenge.
func Response(challenge, secret string) string {
	return Hash(challenge + secret)
}

// Verify reports whether response answers challenge under secret.
func Verify(challenge, response, secret string) bool {
	if challenge == "" || response == "" {
		return false
	}
	return Response(challenge, secret) == response
}

// Authenticator binds the handshake to a shared secret.
type Authenticator struct {
	secret string
}

// NewAuthenticator creates an Authenticator for secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: secret}
}

// Issue returns a new challenge.
func (a *Authenticator) Issue() string {
	return NewChallenge()
}

// Verify checks a challenge/response pair against the shared secret.
func (a *Authenticator) Verify(challenge, response string) bool {
	return Verify(challenge, response, a.secret)
}
