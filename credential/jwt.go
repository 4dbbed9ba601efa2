// Package credential implements the credential-verification collaborator:
// it turns a bearer token (typically from a racontext.Credential
// extension; no adapter in this module populates that extension, the
// caller deposits it) into the authenticated racontext.UserId and
// racontext.UsernameLabels extensions the rest of the kernel consumes.
package credential

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/plabayo/rama-go/extensions"
	"github.com/plabayo/rama-go/racontext"
	"github.com/plabayo/rama-go/rerror"
)

// Claims is the minimal set of JWT claims the kernel understands; Verify
// always parses tokens into this type.
type Claims struct {
	jwt.RegisteredClaims
	Username string            `json:"username"`
	Labels   map[string]string `json:"labels"`
}

// Verifier verifies a bearer token's signature and standard claims,
// producing the UserId/UsernameLabels extensions on success.
type Verifier struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewVerifier builds a Verifier that validates tokens signed with key,
// restricted to the given signing method names (e.g. "HS256", "RS256").
func NewVerifier(key any, methods ...string) *Verifier {
	return &Verifier{
		keyFunc: func(*jwt.Token) (any, error) { return key, nil },
		parser:  jwt.NewParser(jwt.WithValidMethods(methods)),
	}
}

// Verify parses and validates raw, returning the resolved UserId and
// UsernameLabels on success.
func (v *Verifier) Verify(raw string) (racontext.UserId, racontext.UsernameLabels, error) {
	var claims Claims
	token, err := v.parser.ParseWithClaims(raw, &claims, v.keyFunc)
	if err != nil {
		return "", nil, rerror.Wrap(rerror.KindPolicy, err, "verify bearer token")
	}
	if !token.Valid {
		return "", nil, rerror.New(rerror.KindPolicy, "bearer token failed validation")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", nil, rerror.New(rerror.KindPolicy, "bearer token missing subject claim")
	}

	labels := racontext.UsernameLabels(claims.Labels)
	if labels == nil {
		labels = racontext.UsernameLabels{}
	}
	if claims.Username != "" {
		labels["username"] = claims.Username
	}
	return racontext.UserId(subject), labels, nil
}

// VerifyIntoContext verifies the racontext.Credential.Bearer extension
// present on ctx (if any), depositing UserId and UsernameLabels back into
// ctx.Extensions on success. It is a no-op (not an error) if no Credential
// extension is present, since not every route requires authentication.
func (v *Verifier) VerifyIntoContext(ctx interface {
	Extensions() *extensions.Extensions
}) error {
	cred, ok := extensions.Get[racontext.Credential](ctx.Extensions())
	if !ok || cred.Bearer == "" {
		return nil
	}
	userID, labels, err := v.Verify(cred.Bearer)
	if err != nil {
		return err
	}
	extensions.Set(ctx.Extensions(), userID)
	extensions.Set(ctx.Extensions(), labels)
	return nil
}
