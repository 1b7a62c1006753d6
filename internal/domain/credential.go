package domain

// Persisted credential keys.
const (
	KeyToken    = "token"
	KeyFullName = "fullName"
)

// Credential is the bearer token and display name kept across restarts.
// It is opaque beyond existence checks and header attachment.
type Credential struct {
	Token    string `json:"token"`
	FullName string `json:"fullName"`
}

// Present reports whether a token exists.
func (c Credential) Present() bool {
	return c.Token != ""
}

// Registration is the sign-up payload.
type Registration struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login is the sign-in payload.
type Login struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
