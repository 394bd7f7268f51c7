package consent

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"

	"github.com/fiware/consent-flow/model"
	"github.com/fiware/consent-flow/subset"
	"github.com/google/uuid"
)

/**
* Quick in-memory implementation of the terms repository. Should only be
* used for dev and testing, does not have any persistence.
 */
type InMemoryRepo struct {
	clock Clock

	mutex        sync.RWMutex
	terms        map[string]*storedTerms
	order        []string
	byPair       map[string]string
	transactions map[string][]storedTransaction
	seq          int
	txSeq        int
}

type storedTerms struct {
	seq   int
	terms model.Terms
}

type storedTransaction struct {
	seq         int
	transaction model.Transaction
}

func NewInMemoryRepo(clock Clock) *InMemoryRepo {
	return &InMemoryRepo{
		clock:        clock,
		terms:        map[string]*storedTerms{},
		byPair:       map[string]string{},
		transactions: map[string][]storedTransaction{},
	}
}

func (inMemoryRepo *InMemoryRepo) CreateTerms(ctx context.Context, terms model.Terms) (created model.Terms, httpErr model.HttpError) {
	inMemoryRepo.mutex.Lock()
	defer inMemoryRepo.mutex.Unlock()

	pair := pairKey(terms.ContractUri, terms.Profile)
	if _, exists := inMemoryRepo.byPair[pair]; exists {
		logger.Debugf("Terms for %s already exist.", pair)
		return created, model.HttpError{Status: http.StatusConflict, Message: "Terms for this contract and profile already exist.", RootError: nil}
	}

	terms.Uri = fmt.Sprintf("urn:consent:terms:%s", uuid.NewString())
	terms.Status = model.TermsStatusActive
	inMemoryRepo.seq++
	inMemoryRepo.terms[terms.Uri] = &storedTerms{seq: inMemoryRepo.seq, terms: terms}
	inMemoryRepo.order = append(inMemoryRepo.order, terms.Uri)
	inMemoryRepo.byPair[pair] = terms.Uri
	inMemoryRepo.appendTransaction(terms.Uri, model.TransactionConsent, terms.Terms)
	return terms, httpErr
}

func (inMemoryRepo *InMemoryRepo) GetTerms(ctx context.Context, uri string) (terms model.Terms, httpErr model.HttpError) {
	inMemoryRepo.mutex.RLock()
	defer inMemoryRepo.mutex.RUnlock()

	stored, ok := inMemoryRepo.terms[uri]
	if !ok {
		return terms, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("Terms %s not found.", uri), RootError: nil}
	}
	return stored.terms, httpErr
}

func (inMemoryRepo *InMemoryRepo) UpdateTerms(ctx context.Context, uri string, termsDoc model.TermsDoc) (updated model.Terms, httpErr model.HttpError) {
	inMemoryRepo.mutex.Lock()
	defer inMemoryRepo.mutex.Unlock()

	stored, ok := inMemoryRepo.terms[uri]
	if !ok {
		return updated, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("Terms %s not found.", uri), RootError: nil}
	}
	stored.terms.Terms = termsDoc
	inMemoryRepo.appendTransaction(uri, model.TransactionUpdate, termsDoc)
	return stored.terms, httpErr
}

func (inMemoryRepo *InMemoryRepo) WithdrawTerms(ctx context.Context, uri string) (withdrawn model.Terms, httpErr model.HttpError) {
	inMemoryRepo.mutex.Lock()
	defer inMemoryRepo.mutex.Unlock()

	stored, ok := inMemoryRepo.terms[uri]
	if !ok {
		return withdrawn, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("Terms %s not found.", uri), RootError: nil}
	}
	stored.terms.Status = model.TermsStatusWithdrawn
	inMemoryRepo.appendTransaction(uri, model.TransactionWithdraw, stored.terms.Terms)
	return stored.terms, httpErr
}

func (inMemoryRepo *InMemoryRepo) GetTermsForProfile(ctx context.Context, contractUri string, profile string) (terms model.Terms, httpErr model.HttpError) {
	inMemoryRepo.mutex.RLock()
	defer inMemoryRepo.mutex.RUnlock()

	uri, ok := inMemoryRepo.byPair[pairKey(contractUri, profile)]
	if !ok {
		return terms, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("No terms for %s on %s.", profile, contractUri), RootError: nil}
	}
	return inMemoryRepo.terms[uri].terms, httpErr
}

func (inMemoryRepo *InMemoryRepo) GetTermsByContract(ctx context.Context, contractUri string) (termsRecords []model.Terms, httpErr model.HttpError) {
	inMemoryRepo.mutex.RLock()
	defer inMemoryRepo.mutex.RUnlock()

	termsRecords = []model.Terms{}
	for _, uri := range inMemoryRepo.order {
		stored := inMemoryRepo.terms[uri]
		if stored.terms.ContractUri == contractUri {
			termsRecords = append(termsRecords, stored.terms)
		}
	}
	return termsRecords, httpErr
}

func (inMemoryRepo *InMemoryRepo) GetConsentedTerms(ctx context.Context, profile string, query map[string]interface{}, cursor string, limit int) (termsRecords []model.Terms, nextCursor string, hasMore bool, httpErr model.HttpError) {
	afterSeq, err := model.DecodeCursor(cursor)
	if err != nil {
		return termsRecords, nextCursor, hasMore, model.HttpError{Status: http.StatusBadRequest, Message: "The cursor is not valid.", RootError: err}
	}

	inMemoryRepo.mutex.RLock()
	defer inMemoryRepo.mutex.RUnlock()

	termsRecords = []model.Terms{}
	for _, uri := range inMemoryRepo.order {
		stored := inMemoryRepo.terms[uri]
		if stored.terms.Profile != profile || stored.seq <= afterSeq {
			continue
		}
		if !subset.Matches(stored.terms.Terms, query) {
			continue
		}
		if len(termsRecords) == limit {
			hasMore = true
			return termsRecords, nextCursor, hasMore, httpErr
		}
		termsRecords = append(termsRecords, stored.terms)
		nextCursor = model.EncodeCursor(stored.seq)
	}
	return termsRecords, nextCursor, hasMore, httpErr
}

func (inMemoryRepo *InMemoryRepo) DeleteTermsByContract(ctx context.Context, contractUri string) (httpErr model.HttpError) {
	inMemoryRepo.mutex.Lock()
	defer inMemoryRepo.mutex.Unlock()

	remainingOrder := []string{}
	for _, uri := range inMemoryRepo.order {
		stored := inMemoryRepo.terms[uri]
		if stored.terms.ContractUri != contractUri {
			remainingOrder = append(remainingOrder, uri)
			continue
		}
		delete(inMemoryRepo.terms, uri)
		delete(inMemoryRepo.byPair, pairKey(contractUri, stored.terms.Profile))
		delete(inMemoryRepo.transactions, uri)
	}
	inMemoryRepo.order = remainingOrder
	return httpErr
}

func (inMemoryRepo *InMemoryRepo) GetTransactions(ctx context.Context, termsUri string, action string, cursor string, limit int) (page model.TransactionPage, httpErr model.HttpError) {
	beforeSeq := math.MaxInt
	if cursor != "" {
		decodedSeq, err := model.DecodeCursor(cursor)
		if err != nil {
			return page, model.HttpError{Status: http.StatusBadRequest, Message: "The cursor is not valid.", RootError: err}
		}
		beforeSeq = decodedSeq
	}

	inMemoryRepo.mutex.RLock()
	defer inMemoryRepo.mutex.RUnlock()

	stored := inMemoryRepo.transactions[termsUri]
	page.Records = []model.Transaction{}
	// the ledger is listed newest-first
	for i := len(stored) - 1; i >= 0; i-- {
		entry := stored[i]
		if entry.seq >= beforeSeq {
			continue
		}
		if action != "" && entry.transaction.Action != action {
			continue
		}
		if len(page.Records) == limit {
			page.HasMore = true
			return page, httpErr
		}
		page.Records = append(page.Records, entry.transaction)
		page.Cursor = model.EncodeCursor(entry.seq)
	}
	return page, httpErr
}

// callers hold the write lock
func (inMemoryRepo *InMemoryRepo) appendTransaction(termsUri string, action string, termsDoc model.TermsDoc) {
	inMemoryRepo.txSeq++
	transaction := model.Transaction{TermsUri: termsUri, Action: action, Terms: termsDoc, CreatedAt: inMemoryRepo.clock.Now()}
	inMemoryRepo.transactions[termsUri] = append(inMemoryRepo.transactions[termsUri], storedTransaction{seq: inMemoryRepo.txSeq, transaction: transaction})
}

func pairKey(contractUri string, profile string) string {
	return contractUri + "|" + profile
}
