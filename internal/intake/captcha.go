package intake

import "crypto/subtle"

// CodeGenerator produces captcha challenges.
type CodeGenerator interface {
	Generate() (string, error)
}

// CaptchaGate issues and checks the human-typed code required before submit.
type CaptchaGate struct {
	codes CodeGenerator
}

func NewCaptchaGate(codes CodeGenerator) *CaptchaGate {
	return &CaptchaGate{codes: codes}
}

func (g *CaptchaGate) Generate() (string, error) {
	return g.codes.Generate()
}

// Verify is an exact, case-sensitive match against the last challenge.
// An empty challenge never verifies.
func (g *CaptchaGate) Verify(challenge, input string) bool {
	if challenge == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(challenge), []byte(input)) == 1
}
