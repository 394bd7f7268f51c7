package contract

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fiware/consent-flow/auth"
	"github.com/fiware/consent-flow/config"
	"github.com/fiware/consent-flow/logging"
	"github.com/fiware/consent-flow/model"
	"github.com/gin-gonic/gin"
)

type Controller struct {
	repo      Repository
	envConfig config.Config
}

func NewController(repo Repository, envConfig config.Config) *Controller {
	return &Controller{repo: repo, envConfig: envConfig}
}

func (ctrl *Controller) CreateContract(c *gin.Context) {
	authInfo, ok := fullAuth(c)
	if !ok {
		return
	}

	var contract model.Contract
	if err := json.NewDecoder(c.Request.Body).Decode(&contract); err != nil {
		logger.Debugf("Was not able to unmarshal the request body. Err: %v", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ProblemDetails{Type: "BadRequest", Status: http.StatusBadRequest, Title: "Unable to unmarshal body.", Detail: err.Error()})
		return
	}
	if contract.Name == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ProblemDetails{Type: "BadRequest", Status: http.StatusBadRequest, Title: "Contracts need a name."})
		return
	}

	contract.Owner = authInfo.Profile
	created, httpErr := ctrl.repo.CreateContract(c.Request.Context(), contract)
	if httpErr != (model.HttpError{}) {
		logger.Debugf("Was not able to create contract %s.", logging.PrettyPrintObject(contract))
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "RepositoryError", Status: httpErr.Status, Title: "Failed to create contract.", Detail: httpErr.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusCreated, model.UriResponse{Uri: created.Uri})
}

func (ctrl *Controller) GetContract(c *gin.Context) {
	if _, ok := fullAuth(c); !ok {
		return
	}
	uri, ok := uriParam(c, "id")
	if !ok {
		return
	}

	contract, httpErr := ctrl.repo.GetContract(c.Request.Context(), uri)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "NotFound", Status: httpErr.Status, Title: "Contract not found.", Detail: httpErr.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusOK, contract)
}

func (ctrl *Controller) GetContracts(c *gin.Context) {
	authInfo, ok := fullAuth(c)
	if !ok {
		return
	}
	query, cursor, limit, ok := listParams(c, ctrl.envConfig)
	if !ok {
		return
	}

	page, httpErr := ctrl.repo.GetContracts(c.Request.Context(), authInfo.Profile, query, cursor, limit)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "RepositoryError", Status: httpErr.Status, Title: "Unable to get contracts from repo.", Detail: httpErr.Message})
		return
	}
	c.AbortWithStatusJSON(http.StatusOK, page)
}

func (ctrl *Controller) DeleteContract(c *gin.Context) {
	authInfo, ok := fullAuth(c)
	if !ok {
		return
	}
	uri, ok := uriParam(c, "id")
	if !ok {
		return
	}

	contract, httpErr := ctrl.repo.GetContract(c.Request.Context(), uri)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "NotFound", Status: httpErr.Status, Title: "Contract not found.", Detail: httpErr.Message})
		return
	}
	if contract.Owner != authInfo.Profile {
		c.AbortWithStatusJSON(http.StatusUnauthorized, model.ProblemDetails{Type: "Unauthorized", Status: http.StatusUnauthorized, Title: "Only the owner may delete a contract."})
		return
	}

	httpErr = ctrl.repo.DeleteContract(c.Request.Context(), uri)
	if httpErr != (model.HttpError{}) {
		c.AbortWithStatusJSON(httpErr.Status, model.ProblemDetails{Type: "RepositoryError", Status: httpErr.Status, Title: "Failed to delete contract.", Detail: httpErr.Message})
		return
	}
	c.AbortWithStatus(http.StatusNoContent)
}

func fullAuth(c *gin.Context) (model.AuthInfo, bool) {
	authInfo := auth.Info(c)
	if authInfo.Tier != model.AuthTierFull {
		c.AbortWithStatusJSON(http.StatusUnauthorized, model.ProblemDetails{Type: "Unauthorized", Status: http.StatusUnauthorized, Title: "Full authentication is required."})
		return authInfo, false
	}
	return authInfo, true
}

/**
* Uris travel base64url-encoded inside path segments.
 */
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
