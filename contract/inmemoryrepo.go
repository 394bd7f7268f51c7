package contract

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/fiware/consent-flow/model"
	"github.com/fiware/consent-flow/storage"
	"github.com/fiware/consent-flow/subset"
	"github.com/google/uuid"
)

/**
* Quick in-memory implementation of the contract repository. Should only be
* used for dev and testing, does not have any persistence.
 */
type InMemoryRepo struct {
	store   storage.Store
	cascade TermsCascade

	mutex     sync.RWMutex
	contracts map[string]*storedContract
	order     []string
	seq       int
}

type storedContract struct {
	seq      int
	metadata model.Contract
	bodyUri  string
}

func NewInMemoryRepo(store storage.Store, cascade TermsCascade) *InMemoryRepo {
	return &InMemoryRepo{store: store, cascade: cascade, contracts: map[string]*storedContract{}}
}

func (inMemoryRepo *InMemoryRepo) CreateContract(ctx context.Context, contract model.Contract) (created model.Contract, httpErr model.HttpError) {
	bodyUri, httpErr := storePolicy(inMemoryRepo.store, contract.Contract)
	if httpErr != (model.HttpError{}) {
		return created, httpErr
	}

	inMemoryRepo.mutex.Lock()
	defer inMemoryRepo.mutex.Unlock()

	contract.Uri = fmt.Sprintf("urn:consent:contract:%s", uuid.NewString())
	inMemoryRepo.seq++

	metadata := contract
	metadata.Contract = model.ContractPolicy{}
	inMemoryRepo.contracts[contract.Uri] = &storedContract{seq: inMemoryRepo.seq, metadata: metadata, bodyUri: bodyUri}
	inMemoryRepo.order = append(inMemoryRepo.order, contract.Uri)
	return contract, httpErr
}

func (inMemoryRepo *InMemoryRepo) GetContract(ctx context.Context, uri string) (contract model.Contract, httpErr model.HttpError) {
	inMemoryRepo.mutex.RLock()
	stored, ok := inMemoryRepo.contracts[uri]
	inMemoryRepo.mutex.RUnlock()

	if !ok {
		return contract, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("Contract %s not found.", uri), RootError: nil}
	}
	return inMemoryRepo.mergeBody(stored)
}

func (inMemoryRepo *InMemoryRepo) GetContracts(ctx context.Context, owner string, query map[string]interface{}, cursor string, limit int) (page model.ContractPage, httpErr model.HttpError) {
	afterSeq, err := model.DecodeCursor(cursor)
	if err != nil {
		return page, model.HttpError{Status: http.StatusBadRequest, Message: "The cursor is not valid.", RootError: err}
	}

	inMemoryRepo.mutex.RLock()
	candidates := []*storedContract{}
	for _, uri := range inMemoryRepo.order {
		stored, ok := inMemoryRepo.contracts[uri]
		if !ok || stored.metadata.Owner != owner || stored.seq <= afterSeq {
			continue
		}
		candidates = append(candidates, stored)
	}
	inMemoryRepo.mutex.RUnlock()

	page.Records = []model.Contract{}
	for _, stored := range candidates {
		contract, httpErr := inMemoryRepo.mergeBody(stored)
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
		page.Cursor = model.EncodeCursor(stored.seq)
	}
	return page, model.HttpError{}
}

func (inMemoryRepo *InMemoryRepo) DeleteContract(ctx context.Context, uri string) (httpErr model.HttpError) {
	inMemoryRepo.mutex.RLock()
	_, ok := inMemoryRepo.contracts[uri]
	inMemoryRepo.mutex.RUnlock()
	if !ok {
		return model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("Contract %s not found.", uri), RootError: nil}
	}

	// dependents go first, so a reported success implies the cascade is complete
	httpErr = inMemoryRepo.cascade.DeleteTermsByContract(ctx, uri)
	if httpErr != (model.HttpError{}) {
		return httpErr
	}

	inMemoryRepo.mutex.Lock()
	defer inMemoryRepo.mutex.Unlock()
	delete(inMemoryRepo.contracts, uri)
	for i, orderedUri := range inMemoryRepo.order {
		if orderedUri == uri {
			inMemoryRepo.order = append(inMemoryRepo.order[:i], inMemoryRepo.order[i+1:]...)
			break
		}
	}
	return httpErr
}

func (inMemoryRepo *InMemoryRepo) mergeBody(stored *storedContract) (contract model.Contract, httpErr model.HttpError) {
	policy, httpErr := resolvePolicy(inMemoryRepo.store, stored.bodyUri)
	if httpErr != (model.HttpError{}) {
		logger.Warnf("Was not able to resolve the policy body %s. Err: %v", stored.bodyUri, httpErr.Message)
		return contract, httpErr
	}
	contract = stored.metadata
	contract.Contract = policy
	return contract, httpErr
}
