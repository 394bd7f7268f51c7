package consent

import (
	"context"
	"time"

	"github.com/fiware/consent-flow/logging"
	"github.com/fiware/consent-flow/model"
)

var logger = logging.Log()

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

/**
* Store for terms records and their transaction ledger. Every mutation
* appends its ledger entry inside the same unit of work, a terms value
* without its matching transaction is never observable.
 */
type Repository interface {
	// CreateTerms persists a new terms record with an active status and a
	// consent transaction. The check against an existing record for the
	// same (contract, profile) pair and the insert are atomic, exactly one
	// of two concurrent calls wins.
	CreateTerms(ctx context.Context, terms model.Terms) (created model.Terms, httpErr model.HttpError)
	GetTerms(ctx context.Context, uri string) (terms model.Terms, httpErr model.HttpError)
	// UpdateTerms replaces the terms document in place and appends an
	// update transaction. Status and expiration are untouched.
	UpdateTerms(ctx context.Context, uri string, termsDoc model.TermsDoc) (updated model.Terms, httpErr model.HttpError)
	// WithdrawTerms flips the status to withdrawn and appends a withdraw
	// transaction with the terms value at the time of withdrawal. The
	// record is retained.
	WithdrawTerms(ctx context.Context, uri string) (withdrawn model.Terms, httpErr model.HttpError)
	GetTermsForProfile(ctx context.Context, contractUri string, profile string) (terms model.Terms, httpErr model.HttpError)
	GetTermsByContract(ctx context.Context, contractUri string) (termsRecords []model.Terms, httpErr model.HttpError)
	GetConsentedTerms(ctx context.Context, profile string, query map[string]interface{}, cursor string, limit int) (termsRecords []model.Terms, nextCursor string, hasMore bool, httpErr model.HttpError)
	// DeleteTermsByContract removes all terms records of a contract
	// outright, together with their transactions. Only used as the cascade
	// of a contract deletion.
	DeleteTermsByContract(ctx context.Context, contractUri string) (httpErr model.HttpError)
	// GetTransactions lists the ledger of a terms record newest-first,
	// optionally filtered by an exact action match.
	GetTransactions(ctx context.Context, termsUri string, action string, cursor string, limit int) (page model.TransactionPage, httpErr model.HttpError)
}
