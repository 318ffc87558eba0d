package model

import (
	"crypto/rand"
	"fmt"
	"time"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewEventID generates a client-side event id of the form
// event_<unix-millis>_<9 alnum chars>.
func NewEventID() string {
	return fmt.Sprintf("event_%d_%s", time.Now().UnixMilli(), randAlnum(9))
}

func randAlnum(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = idAlphabet[int(b[i])%len(idAlphabet)]
	}
	return string(b)
}
