package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/fiware/consent-flow/config"
	"github.com/fiware/consent-flow/logging"
	"github.com/fiware/consent-flow/model"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

var logger = logging.Log()

const infoKey = "consentflow-auth-info"

// tokens carrying this scope only grant partial authentication
const limitedScope = "limited"

/**
* GinHandlerFunc classifies every request into one of the three auth tiers
* and stores the resulting claims object in the gin context. It never aborts
* a request itself, the controllers decide which tier an operation needs.
 */
func GinHandlerFunc(envConfig config.Config) gin.HandlerFunc {
	tokenParser := NewTokenParser(envConfig.JwksUrl())

	return func(c *gin.Context) {
		authorizationHeader := c.GetHeader("Authorization")
		if authorizationHeader == "" {
			c.Set(infoKey, model.AuthInfo{Tier: model.AuthTierNone})
			c.Next()
			return
		}

		profileToken, httpErr := tokenParser.Parse(c.Request.Context(), getTokenFromBearer(authorizationHeader))
		if httpErr != (model.HttpError{}) {
			logger.Debugf("Was not able to parse the token. Err: %v", httpErr.Message)
			c.Set(infoKey, model.AuthInfo{Tier: model.AuthTierNone})
			c.Next()
			return
		}

		tier := model.AuthTierFull
		if profileToken.Did == "" || profileToken.Scope == limitedScope {
			tier = model.AuthTierPartial
		}
		c.Set(infoKey, model.AuthInfo{Tier: tier, Profile: profileToken.Did})
		c.Next()
	}
}

// Info returns the claims object of the current request.
func Info(c *gin.Context) model.AuthInfo {
	value, ok := c.Get(infoKey)
	if !ok {
		return model.AuthInfo{Tier: model.AuthTierNone}
	}
	authInfo, ok := value.(model.AuthInfo)
	if !ok {
		return model.AuthInfo{Tier: model.AuthTierNone}
	}
	return authInfo
}

// SetInfo puts a claims object into the context, to be used by tests and by
// handlers invoked from server context.
func SetInfo(c *gin.Context, authInfo model.AuthInfo) {
	c.Set(infoKey, authInfo)
}

type TokenParser struct {
	jwksUrl string
}

func NewTokenParser(jwksUrl string) *TokenParser {
	if jwksUrl == "" {
		logger.Warn("No jwks url configured. Tokens will be parsed without signature verification, do NEVER use this for anything but development or testing!")
	}
	return &TokenParser{jwksUrl: jwksUrl}
}

func (tokenParser *TokenParser) Parse(ctx context.Context, tokenString string) (profileToken *model.ProfileToken, httpErr model.HttpError) {
	if tokenParser.jwksUrl == "" {
		unverifiedToken, _, err := jwt.NewParser().ParseUnverified(tokenString, &model.ProfileToken{})
		if err != nil {
			return profileToken, model.HttpError{Status: http.StatusUnauthorized, Message: fmt.Sprintf("Was not able to parse token. Error: %v", err), RootError: err}
		}
		return unverifiedToken.Claims.(*model.ProfileToken), httpErr
	}

	token, err := jwt.ParseWithClaims(tokenString, &model.ProfileToken{}, func(token *jwt.Token) (interface{}, error) {
		keySet, err := jwk.Fetch(ctx, tokenParser.jwksUrl)
		if err != nil {
			logger.Warnf("Was not able to fetch the jwks from %s. Err: %v", tokenParser.jwksUrl, err)
			return nil, err
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("token_without_kid")
		}
		key, ok := keySet.LookupKeyID(kid)
		if !ok {
			return nil, fmt.Errorf("no_such_key")
		}
		var rawKey interface{}
		if err := key.Raw(&rawKey); err != nil {
			return nil, err
		}
		return rawKey, nil
	})
	if err != nil {
		return profileToken, model.HttpError{Status: http.StatusUnauthorized, Message: fmt.Sprintf("Was not able to parse token. Error: %v", err), RootError: err}
	}
	if !token.Valid {
		return profileToken, model.HttpError{Status: http.StatusUnauthorized, Message: "Did not receive a valid token.", RootError: nil}
	}
	return token.Claims.(*model.ProfileToken), httpErr
}

/**
* Removes the bearer prefix and returns the token
 */
func getTokenFromBearer(bearer string) (token string) {
	token = strings.ReplaceAll(bearer, "Bearer ", "")
	token = strings.ReplaceAll(token, "bearer ", "")
	return
}
