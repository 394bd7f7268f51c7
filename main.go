package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fiware/consent-flow/auth"
	"github.com/fiware/consent-flow/config"
	"github.com/fiware/consent-flow/consent"
	"github.com/fiware/consent-flow/contract"
	"github.com/fiware/consent-flow/http"
	"github.com/fiware/consent-flow/identity"
	"github.com/fiware/consent-flow/logging"
	"github.com/fiware/consent-flow/sql"
	"github.com/fiware/consent-flow/storage"
	"github.com/gin-gonic/gin"
	"github.com/penglongli/gin-metrics/ginmetrics"
	"github.com/redis/go-redis/v9"
)

var logger = logging.Log()

/**
* Port to run the consent-flow engine at. Default is 8080.
 */
var serverPort int = 8080

/**
* Startup method to run the gin-server.
 */
func main() {

	envConfig := config.EnvConfig{}

	documentStore := buildDocumentStore(envConfig)
	contractRepo, consentRepo := buildRepositories(documentStore)

	identityResolver := identity.NewInMemoryResolver()
	verifier := consent.NewVerifier(contractRepo, consentRepo, identityResolver, consent.RealClock{})

	contractController := contract.NewController(contractRepo, envConfig)
	consentController := consent.NewController(contractRepo, consentRepo, verifier, envConfig, consent.RealClock{})

	router := gin.New()
	router.Use(logging.GinHandlerFunc(), gin.Recovery(), auth.GinHandlerFunc(envConfig))

	metrics := ginmetrics.GetMonitor()
	metrics.SetMetricPath("/metrics")
	metrics.Use(router)

	router.GET("/health", http.HealthReq)

	// contract surface for data owners
	router.POST("/consentflow/contract", contractController.CreateContract)
	router.GET("/consentflow/contracts", contractController.GetContracts)
	router.GET("/consentflow/contract/:id", contractController.GetContract)
	router.DELETE("/consentflow/contract/:id", contractController.DeleteContract)
	router.GET("/consentflow/contract/:id/data", consentController.GetConsentedData)

	// consent surface for consenting profiles
	router.POST("/consentflow/contract/:id/consent", consentController.ConsentToContract)
	router.GET("/consentflow/consents", consentController.GetConsentedContracts)
	router.PUT("/consentflow/terms/:id", consentController.UpdateTerms)
	router.DELETE("/consentflow/terms/:id", consentController.WithdrawConsent)
	router.GET("/consentflow/terms/:id/history", consentController.GetTermsTransactionHistory)

	// verification, open to anyone
	router.GET("/consentflow/verify/:id/:profileId", consentController.VerifyConsent)

	router.Run(fmt.Sprintf("0.0.0.0:%v", serverPort))
	logger.Infof("Started router at %v", serverPort)
}

/**
* Builds the store for contract policy bodies. When a redis host is
* configured the content-addressed store is fronted by a read-through
* cache, resolution failures of the cache fall back to the plain store.
 */
func buildDocumentStore(envConfig config.Config) storage.Store {
	inMemoryStore := storage.NewInMemoryStore()
	if envConfig.RedisHost() == "" {
		return inMemoryStore
	}
	client := redis.NewClient(&redis.Options{Addr: envConfig.RedisHost()})
	logger.Infof("Caching policy bodies at %s.", envConfig.RedisHost())
	return storage.NewCachedStore(client, inMemoryStore)
}

/**
* The consent repo doubles as the cascade for contract deletion, so it
* has to be built first.
 */
func buildRepositories(documentStore storage.Store) (contract.Repository, consent.Repository) {
	if os.Getenv("MYSQL_HOST") != "" {
		relRepository := sql.GetMySqlRepository()
		consentRepo := consent.NewSqlRepository(relRepository, consent.RealClock{})
		return contract.NewSqlRepository(relRepository, documentStore, consentRepo), consentRepo
	}
	logger.Warn("Repositories are kept in-memory. No persistence will be applied, do NEVER use this for anything but development or testing!")
	consentRepo := consent.NewInMemoryRepo(consent.RealClock{})
	return contract.NewInMemoryRepo(documentStore, consentRepo), consentRepo
}

func init() {
	serverPortEnvVar := os.Getenv("SERVER_PORT")
	if serverPortEnvVar == "" {
		return
	}
	parsedPort, err := strconv.Atoi(serverPortEnvVar)
	if err != nil {
		logger.Fatalf("No valid server port was provided: %s.", serverPortEnvVar)
	}
	serverPort = parsedPort
}
