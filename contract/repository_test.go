package contract

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/fiware/consent-flow/logging"
	"github.com/fiware/consent-flow/model"
	dbModel "github.com/fiware/consent-flow/sql"
	"github.com/fiware/consent-flow/storage"
	"github.com/go-rel/rel"
	"github.com/go-rel/reltest"
	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"
)

type cascadeMock struct {
	deleted []string
	err     model.HttpError
}

func (mock *cascadeMock) DeleteTermsByContract(ctx context.Context, contractUri string) model.HttpError {
	mock.deleted = append(mock.deleted, contractUri)
	return mock.err
}

func getContract(owner string, name string) model.Contract {
	return model.Contract{
		Owner: owner,
		Name:  name,
		Contract: model.ContractPolicy{
			Read: model.ScopePolicy{
				Personal:    map[string]model.FieldPolicy{"email": {Required: true}},
				Credentials: model.CredentialsPolicy{Categories: map[string]model.FieldPolicy{"health": {Required: false}}},
			},
		},
	}
}

func getInMemoryMock() (*InMemoryRepo, *cascadeMock) {
	cascade := &cascadeMock{}
	return NewInMemoryRepo(storage.NewInMemoryStore(), cascade), cascade
}

func getSqlMock(cascade *cascadeMock) (dbMock *reltest.Repository, sqlRepo Repository, store storage.Store) {
	dbMock = reltest.New()
	store = storage.NewInMemoryStore()
	sqlRepo = NewSqlRepository(dbMock, store, cascade)
	return
}

func TestCreateAndGetContract(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	log.Infof("TestCreateAndGetContract ----------------- TEST ON INMEMORY-REPO -----------------")
	inMemoryRepo, _ := getInMemoryMock()
	testContract := getContract("did:web:owner.org", "my-contract")

	created, httpErr := inMemoryRepo.CreateContract(context.Background(), testContract)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Contract creation threw an unexpected error: %v", httpErr)
	}
	if created.Uri == "" {
		t.Errorf("The created contract should have been assigned a uri.")
	}

	retrieved, httpErr := inMemoryRepo.GetContract(context.Background(), created.Uri)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Contract retrieval threw an unexpected error: %v", httpErr)
	}
	// the policy body has to survive the round trip through the document store
	testContract.Uri = created.Uri
	if diff := cmp.Diff(testContract, retrieved); diff != "" {
		t.Errorf("The retrieved contract differs from the created one: %s", diff)
	}

	_, httpErr = inMemoryRepo.GetContract(context.Background(), "urn:consent:contract:unknown")
	if httpErr.Status != http.StatusNotFound {
		t.Errorf("Retrieval of an unknown contract should be a not found, but was %v.", httpErr)
	}
}

func TestCreateAndGetContractSql(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	log.Infof("TestCreateAndGetContract ----------------- TEST ON SQL-REPO -----------------")
	dbMock, sqlRepo, store := getSqlMock(&cascadeMock{})
	testContract := getContract("did:web:owner.org", "my-contract")

	dbMock.ExpectInsert().ForType("*sql.Contract")

	created, httpErr := sqlRepo.CreateContract(context.Background(), testContract)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Contract creation threw an unexpected error: %v", httpErr)
	}
	dbMock.AssertExpectations(t)

	// the store is content-addressed, storing the policy again yields the row's body uri
	bodyUri, _ := storePolicy(store, testContract.Contract)
	testContract.Uri = created.Uri
	dbMock.ExpectFind(rel.Eq("uri", created.Uri)).Result(toSqlContract(testContract, bodyUri))

	retrieved, httpErr := sqlRepo.GetContract(context.Background(), created.Uri)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Contract retrieval threw an unexpected error: %v", httpErr)
	}
	if diff := cmp.Diff(testContract, retrieved); diff != "" {
		t.Errorf("The retrieved contract differs from the created one: %s", diff)
	}

	dbMock.ExpectFind(rel.Eq("uri", "urn:consent:contract:unknown")).Error(errors.New("no_such_contract"))
	if _, httpErr = sqlRepo.GetContract(context.Background(), "urn:consent:contract:unknown"); httpErr.Status != http.StatusNotFound {
		t.Errorf("Retrieval of an unknown contract should be a not found, but was %v.", httpErr)
	}
	dbMock.AssertExpectations(t)
}

func TestGetContractsPagination(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	inMemoryRepo, _ := getInMemoryMock()
	owner := "did:web:owner.org"
	names := []string{"first", "second", "third"}
	for _, name := range names {
		if _, httpErr := inMemoryRepo.CreateContract(context.Background(), getContract(owner, name)); httpErr != (model.HttpError{}) {
			t.Fatalf("Contract creation threw an unexpected error: %v", httpErr)
		}
	}

	firstPage, httpErr := inMemoryRepo.GetContracts(context.Background(), owner, nil, "", 2)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Listing threw an unexpected error: %v", httpErr)
	}
	if len(firstPage.Records) != 2 || !firstPage.HasMore {
		t.Errorf("The first page should hold 2 records and more to come, but was %v.", firstPage)
	}

	secondPage, httpErr := inMemoryRepo.GetContracts(context.Background(), owner, nil, firstPage.Cursor, 2)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Listing threw an unexpected error: %v", httpErr)
	}
	if len(secondPage.Records) != 1 || secondPage.HasMore {
		t.Errorf("The second page should hold the final record, but was %v.", secondPage)
	}

	// the concatenation of the pages is the full listing, no duplicates and no gaps
	listedNames := []string{}
	for _, record := range append(firstPage.Records, secondPage.Records...) {
		listedNames = append(listedNames, record.Name)
	}
	if diff := cmp.Diff(names, listedNames); diff != "" {
		t.Errorf("The pages do not concatenate to the full listing: %s", diff)
	}

	otherOwnerPage, _ := inMemoryRepo.GetContracts(context.Background(), "did:web:other.org", nil, "", 2)
	if len(otherOwnerPage.Records) != 0 {
		t.Errorf("The listing should be scoped to the owner, but was %v.", otherOwnerPage)
	}

	if _, httpErr := inMemoryRepo.GetContracts(context.Background(), owner, nil, "not-a-cursor", 2); httpErr.Status != http.StatusBadRequest {
		t.Errorf("An invalid cursor should be a bad request, but was %v.", httpErr)
	}
}

func TestGetContractsQuery(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	inMemoryRepo, _ := getInMemoryMock()
	owner := "did:web:owner.org"

	matching := getContract(owner, "matching")
	if _, httpErr := inMemoryRepo.CreateContract(context.Background(), matching); httpErr != (model.HttpError{}) {
		t.Fatalf("Contract creation threw an unexpected error: %v", httpErr)
	}
	other := getContract(owner, "other")
	other.Contract.Read.Personal = map[string]model.FieldPolicy{"phone": {Required: false}}
	if _, httpErr := inMemoryRepo.CreateContract(context.Background(), other); httpErr != (model.HttpError{}) {
		t.Fatalf("Contract creation threw an unexpected error: %v", httpErr)
	}

	query := map[string]interface{}{"read": map[string]interface{}{"personal": map[string]interface{}{"email": map[string]interface{}{"required": true}}}}
	page, httpErr := inMemoryRepo.GetContracts(context.Background(), owner, query, "", 10)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Listing threw an unexpected error: %v", httpErr)
	}
	if len(page.Records) != 1 || page.Records[0].Name != "matching" {
		t.Errorf("Only the contract offering the queried policy should be listed, but was %v.", page)
	}
}

func TestDeleteContract(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	log.Infof("TestDeleteContract ----------------- TEST ON INMEMORY-REPO -----------------")
	inMemoryRepo, cascade := getInMemoryMock()
	created, _ := inMemoryRepo.CreateContract(context.Background(), getContract("did:web:owner.org", "my-contract"))

	httpErr := inMemoryRepo.DeleteContract(context.Background(), created.Uri)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Contract deletion threw an unexpected error: %v", httpErr)
	}
	if len(cascade.deleted) != 1 || cascade.deleted[0] != created.Uri {
		t.Errorf("The deletion should have cascaded to the terms, but cascaded to %v.", cascade.deleted)
	}
	if _, httpErr = inMemoryRepo.GetContract(context.Background(), created.Uri); httpErr.Status != http.StatusNotFound {
		t.Errorf("The contract should be gone after deletion, but was %v.", httpErr)
	}

	if httpErr = inMemoryRepo.DeleteContract(context.Background(), created.Uri); httpErr.Status != http.StatusNotFound {
		t.Errorf("Deletion of an unknown contract should be a not found, but was %v.", httpErr)
	}

	log.Infof("TestDeleteContract +++++++++++++++++ Running test: Keep the contract when the cascade fails.")
	failingRepo, failingCascade := getInMemoryMock()
	failingCascade.err = model.HttpError{Status: http.StatusInternalServerError, Message: "cascade_failed"}
	created, _ = failingRepo.CreateContract(context.Background(), getContract("did:web:owner.org", "my-contract"))
	if httpErr = failingRepo.DeleteContract(context.Background(), created.Uri); httpErr == (model.HttpError{}) {
		t.Errorf("A failing cascade should fail the deletion.")
	}
	if _, httpErr = failingRepo.GetContract(context.Background(), created.Uri); httpErr != (model.HttpError{}) {
		t.Errorf("The contract should survive a failing cascade, but was %v.", httpErr)
	}
}

func TestDeleteContractSql(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	log.Infof("TestDeleteContract ----------------- TEST ON SQL-REPO -----------------")
	cascade := &cascadeMock{}
	dbMock, sqlRepo, store := getSqlMock(cascade)

	bodyUri, _ := store.Store([]byte("{}"))
	sqlContract := dbModel.Contract{ID: 1, Uri: "urn:consent:contract:to-delete", Owner: "did:web:owner.org", Name: "my-contract", BodyUri: bodyUri}

	dbMock.ExpectFind(rel.Eq("uri", sqlContract.Uri)).Result(sqlContract)
	dbMock.ExpectTransaction(func(repository *reltest.Repository) {
		repository.ExpectDelete().ForType("*sql.Contract")
	})

	httpErr := sqlRepo.DeleteContract(context.Background(), sqlContract.Uri)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Contract deletion threw an unexpected error: %v", httpErr)
	}
	if len(cascade.deleted) != 1 || cascade.deleted[0] != sqlContract.Uri {
		t.Errorf("The deletion should have cascaded to the terms, but cascaded to %v.", cascade.deleted)
	}
	dbMock.AssertExpectations(t)
}
