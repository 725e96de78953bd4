package codes

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidLength = errors.New("invalid code length")
	ErrEmptyCharset  = errors.New("charset cannot be empty")
)

const (
	// DefaultCaptchaLength is the length of generated captcha challenges
	DefaultCaptchaLength = 6

	// Mixed case alphanumeric excluding ambiguous characters (0/O, 1/l/I, i/L)
	CharsetMixedAlphanumeric = "ABCDEFGHJKMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
)

// Generator produces human-typed codes from a fixed charset.
type Generator struct {
	cfg Config
}

func New(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Generate returns a new code with the configured length and charset.
func (g *Generator) Generate() (string, error) {
	return GenerateCode(g.cfg.GetLength(), g.cfg.GetCharset())
}

// GenerateCode creates a code of specified length from a given character set.
func GenerateCode(length int, charset string) (string, error) {
	if length < 1 {
		return "", ErrInvalidLength
	}
	if len(charset) == 0 {
		return "", ErrEmptyCharset
	}

	return generateFromCharset(length, charset)
}

func generateFromCharset(length int, charset string) (string, error) {
	result := make([]byte, length)
	max := big.NewInt(int64(len(charset)))

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random character: %w", err)
		}
		result[i] = charset[n.Int64()]
	}

	return string(result), nil
}
