package model

import "github.com/golang-jwt/jwt/v4"

type AuthTier int

const (
	// no token was presented
	AuthTierNone AuthTier = iota
	// a token was presented, but it does not carry full profile claims
	AuthTierPartial
	// a token with full profile claims was presented
	AuthTierFull
)

/**
* AuthInfo is the claims object describing the caller of an operation. It is
* produced once per request by the auth middleware and passed explicitly,
* never read from global state.
 */
type AuthInfo struct {
	Tier    AuthTier `json:"tier"`
	Profile string   `json:"profile,omitempty"`
}

// ProfileToken is the bearer token issued by the identity collaborator.
type ProfileToken struct {
	Did   string `json:"did"`
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}
