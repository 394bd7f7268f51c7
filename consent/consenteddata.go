package consent

import (
	"sort"
	"time"

	"github.com/fiware/consent-flow/model"
	"github.com/samber/lo"
)

/**
* BuildConsentedData aggregates the grants of all currently active,
* unexpired terms against a contract into one document. Only the contract
* owner is allowed to read the result, the controller enforces that.
 */
func BuildConsentedData(contractUri string, termsRecords []model.Terms, now time.Time) model.ConsentedData {
	activeTerms := lo.Filter(termsRecords, func(terms model.Terms, _ int) bool {
		return terms.Status == model.TermsStatusActive && !isExpired(terms.ExpiresAt, now)
	})
	records := lo.Map(activeTerms, func(terms model.Terms, _ int) model.ConsentedDataRecord {
		return model.ConsentedDataRecord{
			Profile: terms.Profile,
			Read:    grantedScopes(terms.Terms.Read),
			Write:   grantedScopes(terms.Terms.Write),
		}
	})
	return model.ConsentedData{ContractUri: contractUri, Records: records}
}

func grantedScopes(terms model.ScopeTerms) model.GrantedScopes {
	personal := lo.Keys(lo.PickBy(terms.Personal, func(_ string, granted bool) bool { return granted }))
	sort.Strings(personal)
	categories := lo.Keys(lo.PickBy(terms.Credentials.Categories, func(_ string, granted bool) bool { return granted }))
	sort.Strings(categories)
	return model.GrantedScopes{
		Personal:   personal,
		Categories: categories,
		ShareAll:   terms.Credentials.ShareAll,
		Sharing:    terms.Credentials.Sharing,
	}
}
