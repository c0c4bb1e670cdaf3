package server

import "crypto/rand"

// newGameCode builds a five character join code from an alphabet without
// look-alike characters.
func newGameCode() string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "AAAAA"
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return string(buf)
}
