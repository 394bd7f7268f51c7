package contract

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fiware/consent-flow/logging"
	"github.com/fiware/consent-flow/model"
	dbModel "github.com/fiware/consent-flow/sql"
	"github.com/fiware/consent-flow/storage"
	"github.com/fiware/consent-flow/subset"
	"github.com/go-rel/rel"
	"github.com/go-rel/rel/where"
	"github.com/google/uuid"
)

type SqlRepo struct {
	repo    *rel.Repository
	store   storage.Store
	cascade TermsCascade
}

func NewSqlRepository(repository rel.Repository, store storage.Store, cascade TermsCascade) *SqlRepo {
	sqlRepo := new(SqlRepo)
	sqlRepo.repo = &repository
	sqlRepo.store = store
	sqlRepo.cascade = cascade
	return sqlRepo
}

func (sqlRepo SqlRepo) CreateContract(ctx context.Context, contract model.Contract) (created model.Contract, httpErr model.HttpError) {
	bodyUri, httpErr := storePolicy(sqlRepo.store, contract.Contract)
	if httpErr != (model.HttpError{}) {
		return created, httpErr
	}

	contract.Uri = fmt.Sprintf("urn:consent:contract:%s", uuid.NewString())
	sqlContract := toSqlContract(contract, bodyUri)
	logger.Debugf("Persisting contract %s.", logging.PrettyPrintObject(sqlContract))

	err := (*sqlRepo.repo).Insert(ctx, &sqlContract)
	if err != nil {
		return created, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to store the contract.", RootError: err}
	}
	return contract, httpErr
}

func (sqlRepo SqlRepo) GetContract(ctx context.Context, uri string) (contract model.Contract, httpErr model.HttpError) {
	sqlContract, httpErr := sqlRepo.getSqlContract(ctx, uri)
	if httpErr != (model.HttpError{}) {
		return contract, httpErr
	}
	return sqlRepo.mergeBody(sqlContract)
}

func (sqlRepo SqlRepo) getSqlContract(ctx context.Context, uri string) (sqlContract dbModel.Contract, httpErr model.HttpError) {
	err := (*sqlRepo.repo).Find(ctx, &sqlContract, where.Eq("uri", uri))
	if err != nil {
		return sqlContract, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("Contract %s not found.", uri), RootError: nil}
	}
	return sqlContract, httpErr
}

func (sqlRepo SqlRepo) GetContracts(ctx context.Context, owner string, query map[string]interface{}, cursor string, limit int) (page model.ContractPage, httpErr model.HttpError) {
	afterSeq, err := model.DecodeCursor(cursor)
	if err != nil {
		return page, model.HttpError{Status: http.StatusBadRequest, Message: "The cursor is not valid.", RootError: err}
	}

	var sqlContracts []dbModel.Contract
	err = (*sqlRepo.repo).FindAll(ctx, &sqlContracts, where.Eq("owner", owner), where.Gt("id", afterSeq), rel.NewSortAsc("id"))
	if err != nil {
		return page, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to query for contracts.", RootError: err}
	}

	page.Records = []model.Contract{}
	for _, sqlContract := range sqlContracts {
		contract, httpErr := sqlRepo.mergeBody(sqlContract)
		if httpErr != (model.HttpError{}) {
			return model.ContractPage{}, httpErr
		}
		if !subset.Matches(contract.Contract, query) {
			continue
		}
		if len(page.Records) == limit {
			page.HasMore = true
			return page, model.HttpError{}
		}
		page.Records = append(page.Records, contract)
		page.Cursor = model.EncodeCursor(sqlContract.ID)
	}
	return page, model.HttpError{}
}

func (sqlRepo SqlRepo) DeleteContract(ctx context.Context, uri string) (httpErr model.HttpError) {
	sqlContract, httpErr := sqlRepo.getSqlContract(ctx, uri)
	if httpErr != (model.HttpError{}) {
		logger.Debugf("Contract %s to delete not found.", uri)
		return httpErr
	}

	err := (*sqlRepo.repo).Transaction(ctx, func(ctx context.Context) error {
		// dependents go first, inside the same transaction
		if cascadeErr := sqlRepo.cascade.DeleteTermsByContract(ctx, uri); cascadeErr != (model.HttpError{}) {
			return &cascadeErr
		}
		return (*sqlRepo.repo).Delete(ctx, &sqlContract)
	})
	if err != nil {
		return model.HttpError{Status: http.StatusInternalServerError, Message: fmt.Sprintf("Was not able to delete contract %s.", uri), RootError: err}
	}
	return httpErr
}

func (sqlRepo SqlRepo) mergeBody(sqlContract dbModel.Contract) (contract model.Contract, httpErr model.HttpError) {
	policy, httpErr := resolvePolicy(sqlRepo.store, sqlContract.BodyUri)
	if httpErr != (model.HttpError{}) {
		logger.Warnf("Was not able to resolve the policy body %s. Err: %v", sqlContract.BodyUri, httpErr.Message)
		return contract, httpErr
	}
	contract = fromSqlContract(sqlContract)
	contract.Contract = policy
	return contract, httpErr
}

func toSqlContract(contract model.Contract, bodyUri string) dbModel.Contract {
	return dbModel.Contract{
		Uri:                contract.Uri,
		Owner:              contract.Owner,
		Name:               contract.Name,
		Subtitle:           contract.Subtitle,
		Description:        contract.Description,
		ReasonForAccessing: contract.ReasonForAccessing,
		Image:              contract.Image,
		BodyUri:            bodyUri,
		ExpiresAt:          contract.ExpiresAt,
	}
}

func fromSqlContract(sqlContract dbModel.Contract) model.Contract {
	return model.Contract{
		Uri:                sqlContract.Uri,
		Owner:              sqlContract.Owner,
		Name:               sqlContract.Name,
		Subtitle:           sqlContract.Subtitle,
		Description:        sqlContract.Description,
		ReasonForAccessing: sqlContract.ReasonForAccessing,
		Image:              sqlContract.Image,
		ExpiresAt:          sqlContract.ExpiresAt,
	}
}
