package helper

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/google/uuid"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// NormalizeText collapses whitespace so that formatting-only edits do not
// change a chunk's content hash.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ContentHash returns the hex sha256 of the normalized text, used as the
// embedding cache key.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// TokenCount is a whitespace approximation of the chunk's token count.
func TokenCount(text string) int {
	return len(strings.Fields(text))
}

// TruncateWords cuts text to at most n whitespace-separated words.
func TruncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[:n], " ")
}

// CreateFolder creates the folder if it does not exist
func CreateFolder(path string) error {
	return os.MkdirAll(path, 0o755)
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
	}
	fmt.Println(string(b))
}
