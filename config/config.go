package config

import (
	"os"
	"strconv"

	"github.com/fiware/consent-flow/logging"
)

var logger = logging.Log()

const defaultPageLimit = 25
const maxPageLimit = 100

type Config interface {
	// url of the jwks endpoint used to verify bearer tokens. If empty,
	// tokens are parsed without signature verification.
	JwksUrl() string
	// address of a redis instance to cache resolved documents at. If empty,
	// no cache is used.
	RedisHost() string
	// number of records returned by listings when no limit was requested
	DefaultPageLimit() int
	// upper bound for the limit a caller may request
	MaxPageLimit() int
}

type EnvConfig struct{}

func (EnvConfig) JwksUrl() string {
	return os.Getenv("JWKS_URL")
}

func (EnvConfig) RedisHost() string {
	return os.Getenv("REDIS_HOST")
}

func (EnvConfig) DefaultPageLimit() int {
	return intFromEnv("DEFAULT_PAGE_LIMIT", defaultPageLimit)
}

func (EnvConfig) MaxPageLimit() int {
	return intFromEnv("MAX_PAGE_LIMIT", maxPageLimit)
}

func intFromEnv(envVar string, defaultValue int) int {
	envValue := os.Getenv(envVar)
	if envValue == "" {
		return defaultValue
	}
	parsedValue, err := strconv.Atoi(envValue)
	if err != nil || parsedValue <= 0 {
		logger.Warnf("Invalid %s configured, will use the default %d.", envVar, defaultValue)
		return defaultValue
	}
	return parsedValue
}
