package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	idAlphabet     = "0123456789abcdefghijklmnopqrstuvwxyz"
	idSuffixLength = 9
)

// NewSessionID returns session-<unix millis>-<random suffix>. The suffix keeps
// ids distinct when several sessions are created within one millisecond.
func NewSessionID() string {
	return newSessionIDAt(time.Now())
}

func newSessionIDAt(now time.Time) string {
	suffix, err := gonanoid.Generate(idAlphabet, idSuffixLength)
	if err != nil {
		suffix = strings.ReplaceAll(uuid.NewString(), "-", "")[:idSuffixLength]
	}
	return fmt.Sprintf("session-%d-%s", now.UnixMilli(), suffix)
}
