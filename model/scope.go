package model

// FieldPolicy marks a single leaf of a contract-side scope tree.
type FieldPolicy struct {
	Required bool `json:"required"`
}

/**
* Credential categories are a dynamic key set, defined by the contract owner.
* ShareAll and Sharing are leaves of their own and never act as a wildcard
* for the category grants.
 */
type CredentialsPolicy struct {
	ShareAll   *FieldPolicy           `json:"shareAll,omitempty"`
	Sharing    *FieldPolicy           `json:"sharing,omitempty"`
	Categories map[string]FieldPolicy `json:"categories"`
}

type ScopePolicy struct {
	Personal    map[string]FieldPolicy `json:"personal"`
	Credentials CredentialsPolicy      `json:"credentials"`
}

// ContractPolicy is the policy body of a contract. It is immutable once the
// contract was created.
type ContractPolicy struct {
	Read  ScopePolicy `json:"read"`
	Write ScopePolicy `json:"write"`
}

// CredentialsTerms mirrors CredentialsPolicy, with boolean grants instead of
// required-markers. A false grant is equivalent to an absent one.
type CredentialsTerms struct {
	ShareAll   bool            `json:"shareAll"`
	Sharing    bool            `json:"sharing"`
	Categories map[string]bool `json:"categories"`
}

type ScopeTerms struct {
	Personal    map[string]bool  `json:"personal"`
	Credentials CredentialsTerms `json:"credentials"`
}

// TermsDoc is the grant document a consenting profile submits against a
// contract.
type TermsDoc struct {
	Read  ScopeTerms `json:"read"`
	Write ScopeTerms `json:"write"`
}
