package sprest

import (
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// claims of interest from a bearer token, extracted without verification.
// verification belongs to the issuing authority, not this client
type BearerToken struct {
	UserName   string
	Audience   string
	ExpireTime time.Time
}

func ParseBearerTokenUnverified(token string) (*BearerToken, error) {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims := parsed.Claims.(gojwt.MapClaims)

	bearerToken := &BearerToken{}

	if userName, ok := claims["upn"]; ok {
		if userNameStr, ok := userName.(string); ok {
			bearerToken.UserName = userNameStr
		}
	}
	if audience, ok := claims["aud"]; ok {
		if audienceStr, ok := audience.(string); ok {
			bearerToken.Audience = audienceStr
		}
	}
	if expireTime, err := claims.GetExpirationTime(); err == nil && expireTime != nil {
		bearerToken.ExpireTime = expireTime.Time
	}

	return bearerToken, nil
}

func (self *BearerToken) Expired() bool {
	if self.ExpireTime.IsZero() {
		return false
	}
	return self.ExpireTime.Before(time.Now())
}
