package consent

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fiware/consent-flow/logging"
	"github.com/fiware/consent-flow/model"
	"github.com/google/go-cmp/cmp"
	log "github.com/sirupsen/logrus"
)

type clockMock struct {
	now time.Time
}

func (clock clockMock) Now() time.Time {
	return clock.now
}

func getTermsDoc(fields ...string) model.TermsDoc {
	personal := map[string]bool{}
	for _, field := range fields {
		personal[field] = true
	}
	return model.TermsDoc{Read: model.ScopeTerms{Personal: personal}}
}

func getTestTerms(contractUri string, profile string) model.Terms {
	return model.Terms{ContractUri: contractUri, Profile: profile, Terms: getTermsDoc("email")}
}

func TestTermsLifecycle(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	inMemoryRepo := NewInMemoryRepo(clockMock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)})

	created, httpErr := inMemoryRepo.CreateTerms(context.Background(), getTestTerms("urn:consent:contract:c1", "did:web:user.org"))
	if httpErr != (model.HttpError{}) {
		t.Fatalf("Terms creation threw an unexpected error: %v", httpErr)
	}
	if created.Uri == "" || created.Status != model.TermsStatusActive {
		t.Errorf("Created terms should carry a uri and be active, but were %v.", created)
	}

	updated, httpErr := inMemoryRepo.UpdateTerms(context.Background(), created.Uri, getTermsDoc("email", "phone"))
	if httpErr != (model.HttpError{}) {
		t.Errorf("Terms update threw an unexpected error: %v", httpErr)
	}
	if !updated.Terms.Read.Personal["phone"] || updated.Status != model.TermsStatusActive {
		t.Errorf("The update should replace the terms and keep the status, but was %v.", updated)
	}

	withdrawn, httpErr := inMemoryRepo.WithdrawTerms(context.Background(), created.Uri)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Withdrawal threw an unexpected error: %v", httpErr)
	}
	if withdrawn.Status != model.TermsStatusWithdrawn {
		t.Errorf("Withdrawn terms should carry the withdrawn status, but were %v.", withdrawn)
	}

	// withdrawal retains the record
	retrieved, httpErr := inMemoryRepo.GetTerms(context.Background(), created.Uri)
	if httpErr != (model.HttpError{}) || retrieved.Status != model.TermsStatusWithdrawn {
		t.Errorf("The withdrawn terms should still be retrievable, but were %v (%v).", retrieved, httpErr)
	}

	// the ledger holds the full history, newest first
	page, httpErr := inMemoryRepo.GetTransactions(context.Background(), created.Uri, "", "", 10)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Ledger listing threw an unexpected error: %v", httpErr)
	}
	actions := []string{}
	for _, record := range page.Records {
		actions = append(actions, record.Action)
	}
	if diff := cmp.Diff([]string{model.TransactionWithdraw, model.TransactionUpdate, model.TransactionConsent}, actions); diff != "" {
		t.Errorf("The ledger does not hold the full history: %s", diff)
	}
	if !page.Records[1].Terms.Read.Personal["phone"] {
		t.Errorf("The update transaction should carry the updated terms, but was %v.", page.Records[1])
	}
}

func TestCreateTermsConflict(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	inMemoryRepo := NewInMemoryRepo(clockMock{now: time.Now()})
	terms := getTestTerms("urn:consent:contract:c1", "did:web:user.org")

	if _, httpErr := inMemoryRepo.CreateTerms(context.Background(), terms); httpErr != (model.HttpError{}) {
		t.Fatalf("Terms creation threw an unexpected error: %v", httpErr)
	}
	if _, httpErr := inMemoryRepo.CreateTerms(context.Background(), terms); httpErr.Status != http.StatusConflict {
		t.Errorf("A second consent for the same pair should be a conflict, but was %v.", httpErr)
	}

	// same profile on another contract and another profile on the same contract are fine
	if _, httpErr := inMemoryRepo.CreateTerms(context.Background(), getTestTerms("urn:consent:contract:c2", "did:web:user.org")); httpErr != (model.HttpError{}) {
		t.Errorf("Consent for another contract threw an unexpected error: %v", httpErr)
	}
	if _, httpErr := inMemoryRepo.CreateTerms(context.Background(), getTestTerms("urn:consent:contract:c1", "did:web:other.org")); httpErr != (model.HttpError{}) {
		t.Errorf("Consent by another profile threw an unexpected error: %v", httpErr)
	}
}

func TestCreateTermsConcurrent(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	inMemoryRepo := NewInMemoryRepo(clockMock{now: time.Now()})
	terms := getTestTerms("urn:consent:contract:c1", "did:web:user.org")

	var waitGroup sync.WaitGroup
	var successMutex sync.Mutex
	successes := 0
	for i := 0; i < 16; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if _, httpErr := inMemoryRepo.CreateTerms(context.Background(), terms); httpErr == (model.HttpError{}) {
				successMutex.Lock()
				successes++
				successMutex.Unlock()
			}
		}()
	}
	waitGroup.Wait()

	if successes != 1 {
		t.Errorf("Exactly one of the concurrent consents should win, but %d did.", successes)
	}
}

func TestGetTransactionsPagination(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	inMemoryRepo := NewInMemoryRepo(clockMock{now: time.Now()})
	created, _ := inMemoryRepo.CreateTerms(context.Background(), getTestTerms("urn:consent:contract:c1", "did:web:user.org"))
	for i := 0; i < 4; i++ {
		if _, httpErr := inMemoryRepo.UpdateTerms(context.Background(), created.Uri, getTermsDoc("email")); httpErr != (model.HttpError{}) {
			t.Fatalf("Terms update threw an unexpected error: %v", httpErr)
		}
	}

	collected := []model.Transaction{}
	cursor := ""
	pages := 0
	for {
		page, httpErr := inMemoryRepo.GetTransactions(context.Background(), created.Uri, "", cursor, 2)
		if httpErr != (model.HttpError{}) {
			t.Fatalf("Ledger listing threw an unexpected error: %v", httpErr)
		}
		collected = append(collected, page.Records...)
		pages++
		if !page.HasMore {
			break
		}
		cursor = page.Cursor
	}

	// 1 consent and 4 updates, paged in 2-2-1
	if len(collected) != 5 || pages != 3 {
		t.Errorf("Paging should visit every transaction exactly once, but visited %d in %d pages.", len(collected), pages)
	}
	if collected[len(collected)-1].Action != model.TransactionConsent {
		t.Errorf("The oldest transaction should be the consent, but was %v.", collected[len(collected)-1])
	}

	filtered, httpErr := inMemoryRepo.GetTransactions(context.Background(), created.Uri, model.TransactionUpdate, "", 10)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Ledger listing threw an unexpected error: %v", httpErr)
	}
	if len(filtered.Records) != 4 {
		t.Errorf("The action filter should only list the updates, but listed %v.", filtered.Records)
	}
}

func TestGetConsentedTerms(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	inMemoryRepo := NewInMemoryRepo(clockMock{now: time.Now()})
	profile := "did:web:user.org"
	inMemoryRepo.CreateTerms(context.Background(), model.Terms{ContractUri: "urn:consent:contract:c1", Profile: profile, Terms: getTermsDoc("email")})
	inMemoryRepo.CreateTerms(context.Background(), model.Terms{ContractUri: "urn:consent:contract:c2", Profile: profile, Terms: getTermsDoc("phone")})
	inMemoryRepo.CreateTerms(context.Background(), model.Terms{ContractUri: "urn:consent:contract:c3", Profile: "did:web:other.org", Terms: getTermsDoc("email")})

	termsRecords, _, hasMore, httpErr := inMemoryRepo.GetConsentedTerms(context.Background(), profile, nil, "", 10)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Listing threw an unexpected error: %v", httpErr)
	}
	if len(termsRecords) != 2 || hasMore {
		t.Errorf("The listing should be scoped to the profile, but was %v.", termsRecords)
	}

	query := map[string]interface{}{"read": map[string]interface{}{"personal": map[string]interface{}{"email": true}}}
	termsRecords, _, _, httpErr = inMemoryRepo.GetConsentedTerms(context.Background(), profile, query, "", 10)
	if httpErr != (model.HttpError{}) {
		t.Errorf("Listing threw an unexpected error: %v", httpErr)
	}
	if len(termsRecords) != 1 || termsRecords[0].ContractUri != "urn:consent:contract:c1" {
		t.Errorf("Only the terms granting the queried scope should be listed, but were %v.", termsRecords)
	}
}

func TestDeleteTermsByContract(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	inMemoryRepo := NewInMemoryRepo(clockMock{now: time.Now()})
	kept, _ := inMemoryRepo.CreateTerms(context.Background(), getTestTerms("urn:consent:contract:keep", "did:web:user.org"))
	dropped, _ := inMemoryRepo.CreateTerms(context.Background(), getTestTerms("urn:consent:contract:drop", "did:web:user.org"))

	if httpErr := inMemoryRepo.DeleteTermsByContract(context.Background(), "urn:consent:contract:drop"); httpErr != (model.HttpError{}) {
		t.Errorf("Cascade deletion threw an unexpected error: %v", httpErr)
	}

	if _, httpErr := inMemoryRepo.GetTerms(context.Background(), dropped.Uri); httpErr.Status != http.StatusNotFound {
		t.Errorf("The dropped terms should be gone, but were %v.", httpErr)
	}
	if _, httpErr := inMemoryRepo.GetTerms(context.Background(), kept.Uri); httpErr != (model.HttpError{}) {
		t.Errorf("Terms of another contract should survive the cascade, but were %v.", httpErr)
	}
	// the pair is free for a new consent again
	if _, httpErr := inMemoryRepo.CreateTerms(context.Background(), getTestTerms("urn:consent:contract:drop", "did:web:user.org")); httpErr != (model.HttpError{}) {
		t.Errorf("A new consent after the cascade threw an unexpected error: %v", httpErr)
	}
}

func TestGetTermsForProfile(t *testing.T) {
	logging.Log().SetLevel(log.DebugLevel)

	inMemoryRepo := NewInMemoryRepo(clockMock{now: time.Now()})
	created, _ := inMemoryRepo.CreateTerms(context.Background(), getTestTerms("urn:consent:contract:c1", "did:web:user.org"))

	terms, httpErr := inMemoryRepo.GetTermsForProfile(context.Background(), "urn:consent:contract:c1", "did:web:user.org")
	if httpErr != (model.HttpError{}) || terms.Uri != created.Uri {
		t.Errorf("The terms for the pair should be found, but were %v (%v).", terms, httpErr)
	}
	if _, httpErr = inMemoryRepo.GetTermsForProfile(context.Background(), "urn:consent:contract:c1", "did:web:other.org"); httpErr.Status != http.StatusNotFound {
		t.Errorf("An unknown pair should be a not found, but was %v.", httpErr)
	}
}
