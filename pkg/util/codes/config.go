package codes

import "github.com/Alijeyrad/wellness_intake/config"

// Config holds settings for captcha code generation
type Config struct {

	// Length is the number of characters in a generated code
	Length int

	// Charset is the character set codes are drawn from
	// If empty, defaults to mixed case alphanumeric without ambiguous chars
	Charset string
}

// DefaultConfig returns sensible defaults for code generation
func DefaultConfig() Config {
	return Config{
		Length:  DefaultCaptchaLength,
		Charset: CharsetMixedAlphanumeric,
	}
}

// GetCharset returns the configured charset or the default if empty
func (c Config) GetCharset() string {
	if c.Charset == "" {
		return CharsetMixedAlphanumeric
	}
	return c.Charset
}

// GetLength returns the configured length or the default if unset
func (c Config) GetLength() int {
	if c.Length <= 0 {
		return DefaultCaptchaLength
	}
	return c.Length
}

// FromCentralConfig converts central config.IntakeConfig to package Config
func FromCentralConfig(c config.IntakeConfig) Config {
	return Config{
		Length:  c.CaptchaLength,
		Charset: CharsetMixedAlphanumeric,
	}
}
