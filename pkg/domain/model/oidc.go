package model

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// OIDCClaims holds the payload of the load balancer's claims token
type OIDCClaims map[string]any

// DecodeOIDCClaims decodes the payload segment of a JWT-shaped token without
// verifying its signature. Empty or segment-less tokens yield empty claims; a
// payload that is not a JSON object yields empty claims as well.
func DecodeOIDCClaims(token string) (OIDCClaims, error) {
	if token == "" {
		return OIDCClaims{}, nil
	}
	parts := strings.SplitN(token, ".", 3)
	if len(parts) < 2 {
		return OIDCClaims{}, nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return OIDCClaims{}, goerr.Wrap(err, "failed to decode claims payload")
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return OIDCClaims{}, goerr.Wrap(err, "failed to parse claims payload")
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return OIDCClaims{}, nil
	}
	return OIDCClaims(obj), nil
}

// String returns a non-empty string claim or ""
func (c OIDCClaims) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// MapUserInfo derives the application identity. Email-like claims win over the
// opaque subject; nil means no usable identity was presented.
func MapUserInfo(identity string, claims OIDCClaims) *UserInfo {
	email := claims.String("email")
	preferred := claims.String("preferred_username")
	upn := claims.String("upn")

	username := firstNonEmpty(email, preferred, upn, identity)
	if username == "" {
		return nil
	}

	emailOut := firstNonEmpty(email, preferred, upn)
	if !strings.Contains(emailOut, "@") {
		emailOut = ""
	}

	info := &UserInfo{
		Username: username,
		Email:    emailOut,
	}

	name := strings.Fields(claims.String("name"))
	given := claims.String("given_name")
	family := claims.String("family_name")

	switch {
	case len(name) > 0:
		info.FirstName = name[0]
		info.LastName = strings.Join(name[1:], " ")
	case given != "" || family != "":
		info.FirstName = given
		info.LastName = family
	default:
		info.FirstName = firstNonEmpty(LocalPart(username), username)
		info.LastName = "OIDC"
	}

	return info
}

// LocalPart returns the part of s before the first "@"
func LocalPart(s string) string {
	local, _, _ := strings.Cut(s, "@")
	return local
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
