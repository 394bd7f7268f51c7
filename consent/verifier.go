package consent

import (
	"context"
	"time"

	"github.com/fiware/consent-flow/contract"
	"github.com/fiware/consent-flow/identity"
	"github.com/fiware/consent-flow/model"
)

/**
* Verifier answers whether a profile currently holds valid consent for a
* contract. It is a pure read, safe to call repeatedly and concurrently,
* and is the only operation available without any authentication. Every
* ambiguity - unknown contract, unknown profile, missing terms, expiration
* on either side - collapses to false, it never raises a domain error.
 */
type Verifier struct {
	contractRepo contract.Repository
	termsRepo    Repository
	identity     identity.Resolver
	clock        Clock
}

func NewVerifier(contractRepo contract.Repository, termsRepo Repository, identityResolver identity.Resolver, clock Clock) *Verifier {
	return &Verifier{contractRepo: contractRepo, termsRepo: termsRepo, identity: identityResolver, clock: clock}
}

func (verifier *Verifier) Verify(ctx context.Context, contractUri string, profileId string) bool {
	consentedContract, httpErr := verifier.contractRepo.GetContract(ctx, contractUri)
	if httpErr != (model.HttpError{}) {
		logger.Debugf("Contract %s could not be resolved, verification fails.", contractUri)
		return false
	}
	// an expired contract fails verification for every profile
	if isExpired(consentedContract.ExpiresAt, verifier.clock.Now()) {
		logger.Debugf("Contract %s is expired.", contractUri)
		return false
	}

	did, httpErr := verifier.identity.Did(profileId)
	if httpErr != (model.HttpError{}) {
		logger.Debugf("Profile %s could not be resolved, verification fails.", profileId)
		return false
	}

	terms, httpErr := verifier.termsRepo.GetTermsForProfile(ctx, contractUri, did)
	if httpErr != (model.HttpError{}) {
		return false
	}
	if terms.Status != model.TermsStatusActive {
		return false
	}
	// terms expire independently of the contract
	if isExpired(terms.ExpiresAt, verifier.clock.Now()) {
		return false
	}
	return true
}

func isExpired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && now.After(*expiresAt)
}
