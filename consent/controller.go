package consent

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fiware/consent-flow/auth"
	"github.com/fiware/consent-flow/config"
	"github.com/fiware/consent-flow/contract"
	"github.com/fiware/consent-flow/logging"
	"github.com/fiware/consent-flow/model"
	"github.com/fiware/consent-flow/scope"
	"github.com/gin-gonic/gin"
)

type Controller struct {
	contractRepo contract.Repository
	repo         Repository
	verifier     *Verifier
	envConfig    config.Config
	clock        Clock
}

func NewController(contractRepo contract.Repository, repo Repository, verifier *Verifier, envConfig config.Config, clock Clock) *Controller {
	return &Controller{contractRepo: contractRepo, repo: repo, verifier: verifier, envConfig: envConfig, clock: clock}
}

type consentRequest struct {
	Terms     model.TermsDoc `json:"terms"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
}

type updateRequest struct {
	Terms model.TermsDoc `json:"terms"`
}

func (ctrl *Controller) ConsentToContract(c *gin.Context) {
	authInfo, ok := fullAuth(c)
	if !ok {
		return
	}
	contractUri, ok := uriParam(c, "id")
	if !ok {
		return
	}

	var request consentRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&request); err != nil {
		logger.Debugf("Was not able to unmarshal the request body. Err: %v", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ProblemDetails{Type: "BadRequest", Status: http.StatusBadRequest, Title: "Unable to unmarshal body.", Detail: err.Error()})
		return
	}

	consentedContract, httpErr := ctrl.contractRepo.GetContract(c.Request.Context(), contractUri)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "NotFound", Status: httpErr.Status, Title: "Contract not found.", Detail: httpErr.Message})
		return
	}

	decision, httpErr := scope.Validate(consentedContract.Contract, request.Terms)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "ValidationError", Status: httpErr.Status, Title: "Was not able to validate the terms.", Detail: httpErr.Message})
		return
	}
	if !decision.Decision {
		logger.Debugf("Terms %s rejected: %s", logging.PrettyPrintObject(request.Terms), decision.Reason)
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ProblemDetails{Type: "BadRequest", Status: http.StatusBadRequest, Title: "The terms are not within the bounds of the contract.", Detail: decision.Reason})
		return
	}

	terms := model.Terms{ContractUri: contractUri, Profile: authInfo.Profile, Terms: request.Terms, ExpiresAt: request.ExpiresAt}
	created, httpErr := ctrl.repo.CreateTerms(c.Request.Context(), terms)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "RepositoryError", Status: httpErr.Status, Title: "Failed to create the terms.", Detail: httpErr.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusCreated, model.UriResponse{Uri: created.Uri})
}

func (ctrl *Controller) UpdateTerms(c *gin.Context) {
	authInfo, ok := fullAuth(c)
	if !ok {
		return
	}
	termsUri, ok := uriParam(c, "id")
	if !ok {
		return
	}

	terms, httpErr := ctrl.repo.GetTerms(c.Request.Context(), termsUri)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "NotFound", Status: httpErr.Status, Title: "Terms not found.", Detail: httpErr.Message})
		return
	}
	if terms.Profile != authInfo.Profile {
		c.AbortWithStatusJSON(http.StatusUnauthorized, model.ProblemDetails{Type: "Unauthorized", Status: http.StatusUnauthorized, Title: "Only the consenting profile may update its terms."})
		return
	}

	var request updateRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&request); err != nil {
		logger.Debugf("Was not able to unmarshal the request body. Err: %v", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ProblemDetails{Type: "BadRequest", Status: http.StatusBadRequest, Title: "Unable to unmarshal body.", Detail: err.Error()})
		return
	}

	// the new terms have to pass against the current contract policy
	consentedContract, httpErr := ctrl.contractRepo.GetContract(c.Request.Context(), terms.ContractUri)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "NotFound", Status: httpErr.Status, Title: "Contract not found.", Detail: httpErr.Message})
		return
	}
	decision, _ := scope.Validate(consentedContract.Contract, request.Terms)
	if !decision.Decision {
		logger.Debugf("Terms update %s rejected: %s", logging.PrettyPrintObject(request.Terms), decision.Reason)
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ProblemDetails{Type: "BadRequest", Status: http.StatusBadRequest, Title: "The terms are not within the bounds of the contract.", Detail: decision.Reason})
		return
	}

	if _, httpErr = ctrl.repo.UpdateTerms(c.Request.Context(), termsUri, request.Terms); httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "RepositoryError", Status: httpErr.Status, Title: "Failed to update the terms.", Detail: httpErr.Message})
		return
	}
	c.AbortWithStatus(http.StatusNoContent)
}

func (ctrl *Controller) WithdrawConsent(c *gin.Context) {
	authInfo, ok := fullAuth(c)
	if !ok {
		return
	}
	termsUri, ok := uriParam(c, "id")
	if !ok {
		return
	}

	terms, httpErr := ctrl.repo.GetTerms(c.Request.Context(), termsUri)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "NotFound", Status: httpErr.Status, Title: "Terms not found.", Detail: httpErr.Message})
		return
	}
	if terms.Profile != authInfo.Profile {
		c.AbortWithStatusJSON(http.StatusUnauthorized, model.ProblemDetails{Type: "Unauthorized", Status: http.StatusUnauthorized, Title: "Only the consenting profile may withdraw its consent."})
		return
	}

	if _, httpErr = ctrl.repo.WithdrawTerms(c.Request.Context(), termsUri); httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "RepositoryError", Status: httpErr.Status, Title: "Failed to withdraw the consent.", Detail: httpErr.Message})
		return
	}
	c.AbortWithStatus(http.StatusNoContent)
}

func (ctrl *Controller) GetConsentedContracts(c *gin.Context) {
	authInfo, ok := fullAuth(c)
	if !ok {
		return
	}
	query, cursor, limit, ok := listParams(c, ctrl.envConfig)
	if !ok {
		return
	}

	termsRecords, nextCursor, hasMore, httpErr := ctrl.repo.GetConsentedTerms(c.Request.Context(), authInfo.Profile, query, cursor, limit)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "RepositoryError", Status: httpErr.Status, Title: "Unable to get terms from repo.", Detail: httpErr.Message})
		return
	}

	page := model.TermsPage{Records: []model.TermsWithContract{}, Cursor: nextCursor, HasMore: hasMore}
	for _, terms := range termsRecords {
		consentedContract, httpErr := ctrl.contractRepo.GetContract(c.Request.Context(), terms.ContractUri)
		if httpErr != (model.HttpError{}) {
			logger.Warnf("Terms %s reference the unresolvable contract %s.", terms.Uri, terms.ContractUri)
			continue
		}
		page.Records = append(page.Records, model.TermsWithContract{Terms: terms, Contract: consentedContract})
	}
	c.AbortWithStatusJSON(http.StatusOK, page)
}

func (ctrl *Controller) GetConsentedData(c *gin.Context) {
	authInfo, ok := fullAuth(c)
	if !ok {
		return
	}
	contractUri, ok := uriParam(c, "id")
	if !ok {
		return
	}

	consentedContract, httpErr := ctrl.contractRepo.GetContract(c.Request.Context(), contractUri)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "NotFound", Status: httpErr.Status, Title: "Contract not found.", Detail: httpErr.Message})
		return
	}
	if consentedContract.Owner != authInfo.Profile {
		c.AbortWithStatusJSON(http.StatusUnauthorized, model.ProblemDetails{Type: "Unauthorized", Status: http.StatusUnauthorized, Title: "Only the owner may read the consented data."})
		return
	}

	termsRecords, httpErr := ctrl.repo.GetTermsByContract(c.Request.Context(), contractUri)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "RepositoryError", Status: httpErr.Status, Title: "Unable to get terms from repo.", Detail: httpErr.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusOK, BuildConsentedData(contractUri, termsRecords, ctrl.clock.Now()))
}

func (ctrl *Controller) GetTermsTransactionHistory(c *gin.Context) {
	authInfo, ok := fullAuth(c)
	if !ok {
		return
	}
	termsUri, ok := uriParam(c, "id")
	if !ok {
		return
	}
	query, cursor, limit, ok := listParams(c, ctrl.envConfig)
	if !ok {
		return
	}

	terms, httpErr := ctrl.repo.GetTerms(c.Request.Context(), termsUri)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "NotFound", Status: httpErr.Status, Title: "Terms not found.", Detail: httpErr.Message})
		return
	}
	if terms.Profile != authInfo.Profile {
		c.AbortWithStatusJSON(http.StatusUnauthorized, model.ProblemDetails{Type: "Unauthorized", Status: http.StatusUnauthorized, Title: "Only the consenting profile may read its history."})
		return
	}

	action := ""
	if queryAction, ok := query["action"].(string); ok {
		action = queryAction
	}

	page, httpErr := ctrl.repo.GetTransactions(c.Request.Context(), termsUri, action, cursor, limit)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "RepositoryError", Status: httpErr.Status, Title: "Unable to get transactions from repo.", Detail: httpErr.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusOK, page)
}

/**
* VerifyConsent is callable at any auth tier, including none. It always
* answers with a plain boolean, auth or domain problems collapse to false.
 */
func (ctrl *Controller) VerifyConsent(c *gin.Context) {
	contractUri, err := base64.RawURLEncoding.DecodeString(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusOK, false)
		return
	}
	profileId := c.Param("profileId")

	verified := ctrl.verifier.Verify(c.Request.Context(), string(contractUri), profileId)
	c.AbortWithStatusJSON(http.StatusOK, verified)
}

func fullAuth(c *gin.Context) (model.AuthInfo, bool) {
	authInfo := auth.Info(c)
	if authInfo.Tier != model.AuthTierFull {
		c.AbortWithStatusJSON(http.StatusUnauthorized, model.ProblemDetails{Type: "Unauthorized", Status: http.StatusUnauthorized, Title: "Full authentication is required."})
		return authInfo, false
	}
	return authInfo, true
}

func uriParam(c *gin.Context, name string) (string, bool) {
	decoded, err := base64.RawURLEncoding.DecodeString(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ProblemDetails{Type: "InvalidParameter", Status: http.StatusBadRequest, Title: "Invalid uri parameter.", Detail: err.Error()})
		return "", false
	}
	return string(decoded), true
}

func listParams(c *gin.Context, envConfig config.Config) (query map[string]interface{}, cursor string, limit int, ok bool) {
	limit = envConfig.DefaultPageLimit()
	limitParam := c.Query("limit")
	if limitParam != "" {
		parsedLimit, err := strconv.Atoi(limitParam)
		if err != nil || parsedLimit < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, model.ProblemDetails{Type: "InvalidParameter", Status: http.StatusBadRequest, Title: "Invalid query parameter.", Detail: "Limit is not a valid number: " + limitParam})
			return query, cursor, limit, false
		}
		limit = parsedLimit
	}
	if maxLimit := envConfig.MaxPageLimit(); limit > maxLimit {
		limit = maxLimit
	}

	cursor = c.Query("cursor")

	queryParam := c.Query("query")
	if queryParam != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(queryParam)
		if err == nil {
			err = json.Unmarshal(decoded, &query)
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, model.ProblemDetails{Type: "InvalidParameter", Status: http.StatusBadRequest, Title: "Invalid query parameter.", Detail: err.Error()})
			return query, cursor, limit, false
		}
	}
	return query, cursor, limit, true
}
