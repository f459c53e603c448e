package admin

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSigningMethod mirrors httpfx/middlewares.AuthMiddleware's
// check: only HMAC-signed actor tokens are accepted.
var ErrInvalidSigningMethod = errors.New("invalid signing method")

// ErrActorTokenRequired is returned when a privileged operation
// (force-delete, purge) is attempted without a configured actor-token
// secret or without a token in the request.
var ErrActorTokenRequired = errors.New("actor token required for privileged operation")

// ErrActorTokenInvalid wraps any parse/validation failure of the
// supplied actor token.
var ErrActorTokenInvalid = errors.New("actor token invalid")

// verifyActor parses tokenString as an HMAC-signed JWT and returns the
// "sub" claim as the acting operator's name, the same shape the
// teacher's AuthMiddleware validates bearer tokens against (spec.md
// §4.7's force-delete/purge are privileged operations; the actor name
// is what activity_log.triggered_by records for them).
func (s *Surface) verifyActor(tokenString string) (string, error) {
	if len(s.cfg.ActorTokenSecret) == 0 {
		return "", ErrActorTokenRequired
	}

	if tokenString == "" {
		return "", ErrActorTokenRequired
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w (method=%s)", ErrInvalidSigningMethod, token.Method.Alg())
		}

		return s.cfg.ActorTokenSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrActorTokenInvalid, err)
	}

	if !token.Valid {
		return "", ErrActorTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrActorTokenInvalid
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrActorTokenInvalid)
	}

	return sub, nil
}
