package domain

// TokenPurpose limits which operations a token may authorize.
type TokenPurpose string

const (
	PurposeRegister TokenPurpose = "register"
	PurposeLogin    TokenPurpose = "login"
)

// Valid reports whether p is a known purpose.
func (p TokenPurpose) Valid() bool {
	return p == PurposeRegister || p == PurposeLogin
}
