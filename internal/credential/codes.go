package credential

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	dErrors "bastion/pkg/domain-errors"
)

// TOTPEnrollment is returned once at enrolment; the secret is never stored
// by this package.
type TOTPEnrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
}

// CodeGenerator issues one-time codes.
type CodeGenerator struct {
	issuer string
	digits int
}

func NewCodeGenerator(issuer string) *CodeGenerator {
	return &CodeGenerator{issuer: issuer, digits: 6}
}

// EnrollTOTP creates a new TOTP secret for account.
func (g *CodeGenerator) EnrollTOTP(account string) (*TOTPEnrollment, error) {
	if account == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account is required")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      g.issuer,
		AccountName: account,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}
	return &TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ValidateTOTP checks code against secret allowing one step of clock skew.
func (g *CodeGenerator) ValidateTOTP(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// NumericCode returns a uniformly random zero-padded decimal code.
func (g *CodeGenerator) NumericCode() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(g.digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", g.digits, n), nil
}
