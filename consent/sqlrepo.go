package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/fiware/consent-flow/model"
	dbModel "github.com/fiware/consent-flow/sql"
	"github.com/fiware/consent-flow/subset"
	"github.com/go-rel/rel"
	"github.com/go-rel/rel/where"
	"github.com/google/uuid"
)

type SqlRepo struct {
	repo  *rel.Repository
	clock Clock
}

func NewSqlRepository(repository rel.Repository, clock Clock) *SqlRepo {
	sqlRepo := new(SqlRepo)
	sqlRepo.repo = &repository
	sqlRepo.clock = clock
	return sqlRepo
}

func (sqlRepo SqlRepo) CreateTerms(ctx context.Context, terms model.Terms) (created model.Terms, httpErr model.HttpError) {
	terms.Uri = fmt.Sprintf("urn:consent:terms:%s", uuid.NewString())
	terms.Status = model.TermsStatusActive

	sqlTerms, err := toSqlTerms(terms)
	if err != nil {
		return created, model.HttpError{Status: http.StatusBadRequest, Message: "Was not able to serialize the terms.", RootError: err}
	}

	err = (*sqlRepo.repo).Transaction(ctx, func(ctx context.Context) error {
		if insertErr := (*sqlRepo.repo).Insert(ctx, &sqlTerms); insertErr != nil {
			return insertErr
		}
		return sqlRepo.appendTransaction(ctx, terms.Uri, model.TransactionConsent, terms.Terms)
	})
	if err != nil {
		// the unique index on (contract_uri, profile) backs the uniqueness
		// invariant, exactly one of two concurrent inserts wins
		var constraintErr rel.ConstraintError
		if errors.As(err, &constraintErr) && constraintErr.Type == rel.UniqueConstraint {
			logger.Debugf("Terms for %s on %s already exist.", terms.Profile, terms.ContractUri)
			return created, model.HttpError{Status: http.StatusConflict, Message: "Terms for this contract and profile already exist.", RootError: err}
		}
		return created, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to store the terms.", RootError: err}
	}
	return terms, httpErr
}

func (sqlRepo SqlRepo) GetTerms(ctx context.Context, uri string) (terms model.Terms, httpErr model.HttpError) {
	sqlTerms, httpErr := sqlRepo.getSqlTerms(ctx, uri)
	if httpErr != (model.HttpError{}) {
		return terms, httpErr
	}
	return fromSqlTerms(sqlTerms)
}

func (sqlRepo SqlRepo) getSqlTerms(ctx context.Context, uri string) (sqlTerms dbModel.Terms, httpErr model.HttpError) {
	err := (*sqlRepo.repo).Find(ctx, &sqlTerms, where.Eq("uri", uri))
	if err != nil {
		return sqlTerms, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("Terms %s not found.", uri), RootError: nil}
	}
	return sqlTerms, httpErr
}

func (sqlRepo SqlRepo) UpdateTerms(ctx context.Context, uri string, termsDoc model.TermsDoc) (updated model.Terms, httpErr model.HttpError) {
	sqlTerms, httpErr := sqlRepo.getSqlTerms(ctx, uri)
	if httpErr != (model.HttpError{}) {
		return updated, httpErr
	}
	termsJson, err := json.Marshal(termsDoc)
	if err != nil {
		return updated, model.HttpError{Status: http.StatusBadRequest, Message: "Was not able to serialize the terms.", RootError: err}
	}
	sqlTerms.Terms = string(termsJson)

	err = (*sqlRepo.repo).Transaction(ctx, func(ctx context.Context) error {
		if updateErr := (*sqlRepo.repo).Update(ctx, &sqlTerms); updateErr != nil {
			return updateErr
		}
		return sqlRepo.appendTransaction(ctx, uri, model.TransactionUpdate, termsDoc)
	})
	if err != nil {
		return updated, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to update the terms.", RootError: err}
	}
	return fromSqlTerms(sqlTerms)
}

func (sqlRepo SqlRepo) WithdrawTerms(ctx context.Context, uri string) (withdrawn model.Terms, httpErr model.HttpError) {
	sqlTerms, httpErr := sqlRepo.getSqlTerms(ctx, uri)
	if httpErr != (model.HttpError{}) {
		return withdrawn, httpErr
	}
	withdrawn, httpErr = fromSqlTerms(sqlTerms)
	if httpErr != (model.HttpError{}) {
		return withdrawn, httpErr
	}
	sqlTerms.Status = model.TermsStatusWithdrawn
	withdrawn.Status = model.TermsStatusWithdrawn

	err := (*sqlRepo.repo).Transaction(ctx, func(ctx context.Context) error {
		if updateErr := (*sqlRepo.repo).Update(ctx, &sqlTerms); updateErr != nil {
			return updateErr
		}
		return sqlRepo.appendTransaction(ctx, uri, model.TransactionWithdraw, withdrawn.Terms)
	})
	if err != nil {
		return model.Terms{}, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to withdraw the terms.", RootError: err}
	}
	return withdrawn, httpErr
}

func (sqlRepo SqlRepo) GetTermsForProfile(ctx context.Context, contractUri string, profile string) (terms model.Terms, httpErr model.HttpError) {
	var sqlTerms dbModel.Terms
	err := (*sqlRepo.repo).Find(ctx, &sqlTerms, where.Eq("contract_uri", contractUri), where.Eq("profile", profile))
	if err != nil {
		return terms, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("No terms for %s on %s.", profile, contractUri), RootError: nil}
	}
	return fromSqlTerms(sqlTerms)
}

func (sqlRepo SqlRepo) GetTermsByContract(ctx context.Context, contractUri string) (termsRecords []model.Terms, httpErr model.HttpError) {
	var sqlTermsRecords []dbModel.Terms
	err := (*sqlRepo.repo).FindAll(ctx, &sqlTermsRecords, where.Eq("contract_uri", contractUri), rel.NewSortAsc("id"))
	if err != nil {
		return termsRecords, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to query for terms.", RootError: err}
	}
	termsRecords = []model.Terms{}
	for _, sqlTerms := range sqlTermsRecords {
		terms, httpErr := fromSqlTerms(sqlTerms)
		if httpErr != (model.HttpError{}) {
			return []model.Terms{}, httpErr
		}
		termsRecords = append(termsRecords, terms)
	}
	return termsRecords, httpErr
}

func (sqlRepo SqlRepo) GetConsentedTerms(ctx context.Context, profile string, query map[string]interface{}, cursor string, limit int) (termsRecords []model.Terms, nextCursor string, hasMore bool, httpErr model.HttpError) {
	afterSeq, err := model.DecodeCursor(cursor)
	if err != nil {
		return termsRecords, nextCursor, hasMore, model.HttpError{Status: http.StatusBadRequest, Message: "The cursor is not valid.", RootError: err}
	}

	var sqlTermsRecords []dbModel.Terms
	err = (*sqlRepo.repo).FindAll(ctx, &sqlTermsRecords, where.Eq("profile", profile), where.Gt("id", afterSeq), rel.NewSortAsc("id"))
	if err != nil {
		return termsRecords, nextCursor, hasMore, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to query for terms.", RootError: err}
	}

	termsRecords = []model.Terms{}
	for _, sqlTerms := range sqlTermsRecords {
		terms, httpErr := fromSqlTerms(sqlTerms)
		if httpErr != (model.HttpError{}) {
			return []model.Terms{}, "", false, httpErr
		}
		if !subset.Matches(terms.Terms, query) {
			continue
		}
		if len(termsRecords) == limit {
			hasMore = true
			return termsRecords, nextCursor, hasMore, httpErr
		}
		termsRecords = append(termsRecords, terms)
		nextCursor = model.EncodeCursor(sqlTerms.ID)
	}
	return termsRecords, nextCursor, hasMore, httpErr
}

func (sqlRepo SqlRepo) DeleteTermsByContract(ctx context.Context, contractUri string) (httpErr model.HttpError) {
	err := (*sqlRepo.repo).Transaction(ctx, func(ctx context.Context) error {
		var sqlTermsRecords []dbModel.Terms
		if findErr := (*sqlRepo.repo).FindAll(ctx, &sqlTermsRecords, where.Eq("contract_uri", contractUri)); findErr != nil {
			return findErr
		}
		for _, sqlTerms := range sqlTermsRecords {
			if _, deleteErr := (*sqlRepo.repo).DeleteAny(ctx, rel.From("transactions").Where(where.Eq("terms_uri", sqlTerms.Uri))); deleteErr != nil {
				logger.Infof("Was not able to delete the transactions of %s.", sqlTerms.Uri)
				return deleteErr
			}
		}
		if _, deleteErr := (*sqlRepo.repo).DeleteAny(ctx, rel.From("terms").Where(where.Eq("contract_uri", contractUri))); deleteErr != nil {
			logger.Infof("Was not able to delete the terms of %s.", contractUri)
			return deleteErr
		}
		return nil
	})
	if err != nil {
		return model.HttpError{Status: http.StatusInternalServerError, Message: fmt.Sprintf("Was not able to delete the terms of %s.", contractUri), RootError: err}
	}
	return httpErr
}

func (sqlRepo SqlRepo) GetTransactions(ctx context.Context, termsUri string, action string, cursor string, limit int) (page model.TransactionPage, httpErr model.HttpError) {
	beforeSeq := math.MaxInt
	if cursor != "" {
		decodedSeq, err := model.DecodeCursor(cursor)
		if err != nil {
			return page, model.HttpError{Status: http.StatusBadRequest, Message: "The cursor is not valid.", RootError: err}
		}
		beforeSeq = decodedSeq
	}

	conditions := []rel.Querier{where.Eq("terms_uri", termsUri), where.Lt("id", beforeSeq), rel.NewSortDesc("id"), rel.Limit(limit + 1)}
	if action != "" {
		conditions = append(conditions, where.Eq("action", action))
	}

	var sqlTransactions []dbModel.Transaction
	err := (*sqlRepo.repo).FindAll(ctx, &sqlTransactions, conditions...)
	if err != nil {
		return page, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to query for transactions.", RootError: err}
	}

	page.Records = []model.Transaction{}
	for _, sqlTransaction := range sqlTransactions {
		if len(page.Records) == limit {
			page.HasMore = true
			break
		}
		transaction, httpErr := fromSqlTransaction(sqlTransaction)
		if httpErr != (model.HttpError{}) {
			return model.TransactionPage{}, httpErr
		}
		page.Records = append(page.Records, transaction)
		page.Cursor = model.EncodeCursor(sqlTransaction.ID)
	}
	return page, httpErr
}

func (sqlRepo SqlRepo) appendTransaction(ctx context.Context, termsUri string, action string, termsDoc model.TermsDoc) error {
	termsJson, err := json.Marshal(termsDoc)
	if err != nil {
		return err
	}
	sqlTransaction := dbModel.Transaction{TermsUri: termsUri, Action: action, Terms: string(termsJson), CreatedAt: sqlRepo.clock.Now()}
	return (*sqlRepo.repo).Insert(ctx, &sqlTransaction)
}

func toSqlTerms(terms model.Terms) (dbModel.Terms, error) {
	termsJson, err := json.Marshal(terms.Terms)
	if err != nil {
		return dbModel.Terms{}, err
	}
	return dbModel.Terms{
		Uri:         terms.Uri,
		ContractUri: terms.ContractUri,
		Profile:     terms.Profile,
		Terms:       string(termsJson),
		Status:      terms.Status,
		ExpiresAt:   terms.ExpiresAt,
	}, nil
}

func fromSqlTerms(sqlTerms dbModel.Terms) (terms model.Terms, httpErr model.HttpError) {
	var termsDoc model.TermsDoc
	if err := json.Unmarshal([]byte(sqlTerms.Terms), &termsDoc); err != nil {
		logger.Warnf("Terms %s could not be deserialized. Err: %v", sqlTerms.Uri, err)
		return terms, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to deserialize the terms.", RootError: err}
	}
	return model.Terms{
		Uri:         sqlTerms.Uri,
		ContractUri: sqlTerms.ContractUri,
		Profile:     sqlTerms.Profile,
		Terms:       termsDoc,
		Status:      sqlTerms.Status,
		ExpiresAt:   sqlTerms.ExpiresAt,
	}, httpErr
}

func fromSqlTransaction(sqlTransaction dbModel.Transaction) (transaction model.Transaction, httpErr model.HttpError) {
	var termsDoc model.TermsDoc
	if err := json.Unmarshal([]byte(sqlTransaction.Terms), &termsDoc); err != nil {
		logger.Warnf("Transaction %d could not be deserialized. Err: %v", sqlTransaction.ID, err)
		return transaction, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to deserialize the transaction.", RootError: err}
	}
	return model.Transaction{
		TermsUri:  sqlTransaction.TermsUri,
		Action:    sqlTransaction.Action,
		Terms:     termsDoc,
		CreatedAt: sqlTransaction.CreatedAt,
	}, httpErr
}
