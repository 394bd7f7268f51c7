package scope

import (
	"fmt"

	"github.com/fiware/consent-flow/model"
)

/**
* Validate checks a terms document against the policy of the contract it is
* given for. Both the read and the write tree have to pass two checks:
*
* - minimum requirement: every leaf the policy marks required has to be
*   granted by the terms.
* - promiscuous terms: every leaf the terms grant has to exist in the
*   policy. Category keys are dynamic, a category granted by the terms but
*   unknown to the policy is rejected.
*
* The first violation found short-circuits the walk. The decision carries
* the reason, callers do not need an exhaustive diff.
 */
func Validate(policy model.ContractPolicy, terms model.TermsDoc) (decision model.Decision, httpErr model.HttpError) {
	decision = validateTree("read", policy.Read, terms.Read)
	if !decision.Decision {
		return decision, httpErr
	}
	decision = validateTree("write", policy.Write, terms.Write)
	if !decision.Decision {
		return decision, httpErr
	}
	return model.Decision{Decision: true, Reason: "Terms are within the bounds of the contract."}, httpErr
}

func validateTree(side string, policy model.ScopePolicy, terms model.ScopeTerms) model.Decision {

	// minimum requirements

	for field, fieldPolicy := range policy.Personal {
		if fieldPolicy.Required && !terms.Personal[field] {
			return model.Decision{Decision: false, Reason: fmt.Sprintf("Required %s access to personal field %s is not granted.", side, field)}
		}
	}
	for category, categoryPolicy := range policy.Credentials.Categories {
		if categoryPolicy.Required && !terms.Credentials.Categories[category] {
			return model.Decision{Decision: false, Reason: fmt.Sprintf("Required %s access to credential category %s is not granted.", side, category)}
		}
	}
	if isRequired(policy.Credentials.ShareAll) && !terms.Credentials.ShareAll {
		return model.Decision{Decision: false, Reason: fmt.Sprintf("The contract requires shareAll on the %s side.", side)}
	}
	if isRequired(policy.Credentials.Sharing) && !terms.Credentials.Sharing {
		return model.Decision{Decision: false, Reason: fmt.Sprintf("The contract requires sharing on the %s side.", side)}
	}

	// promiscuous grants

	for field, granted := range terms.Personal {
		if !granted {
			continue
		}
		if _, allowed := policy.Personal[field]; !allowed {
			return model.Decision{Decision: false, Reason: fmt.Sprintf("The contract does not allow %s access to personal field %s.", side, field)}
		}
	}
	for category, granted := range terms.Credentials.Categories {
		if !granted {
			continue
		}
		if _, allowed := policy.Credentials.Categories[category]; !allowed {
			return model.Decision{Decision: false, Reason: fmt.Sprintf("The contract does not allow %s access to credential category %s.", side, category)}
		}
	}
	if terms.Credentials.ShareAll && policy.Credentials.ShareAll == nil {
		return model.Decision{Decision: false, Reason: fmt.Sprintf("The contract does not allow shareAll on the %s side.", side)}
	}
	if terms.Credentials.Sharing && policy.Credentials.Sharing == nil {
		return model.Decision{Decision: false, Reason: fmt.Sprintf("The contract does not allow sharing on the %s side.", side)}
	}

	return model.Decision{Decision: true, Reason: "Terms are allowed."}
}

func isRequired(fieldPolicy *model.FieldPolicy) bool {
	return fieldPolicy != nil && fieldPolicy.Required
}
