package model

import "time"

// status of a terms record
const (
	TermsStatusActive    = "active"
	TermsStatusWithdrawn = "withdrawn"
)

// actions recorded in the transaction ledger
const (
	TransactionConsent  = "consent"
	TransactionUpdate   = "update"
	TransactionWithdraw = "withdraw"
)

/**
* A contract published by a profile, describing what personal fields and
* credential categories may be read or written by consenting profiles. The
* metadata fields are stored verbatim and round-tripped exactly as given.
 */
type Contract struct {
	Uri                string         `json:"uri,omitempty"`
	Owner              string         `json:"owner"`
	Contract           ContractPolicy `json:"contract"`
	Name               string         `json:"name"`
	Subtitle           string         `json:"subtitle,omitempty"`
	Description        string         `json:"description,omitempty"`
	ReasonForAccessing string         `json:"reasonForAccessing,omitempty"`
	Image              string         `json:"image,omitempty"`
	ExpiresAt          *time.Time     `json:"expiresAt,omitempty"`
}

/**
* The terms a profile consented to. At most one record exists per
* (contract, profile) pair. Withdrawal only flips the status, the record is
* retained until the contract itself is deleted.
 */
type Terms struct {
	Uri         string     `json:"uri,omitempty"`
	ContractUri string     `json:"contractUri"`
	Profile     string     `json:"profile"`
	Terms       TermsDoc   `json:"terms"`
	Status      string     `json:"status"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// TermsWithContract joins a terms record with the contract it was given for.
type TermsWithContract struct {
	Terms
	Contract Contract `json:"contract"`
}

// Transaction is one immutable entry of the ledger. It records the terms
// value at the moment the action happened.
type Transaction struct {
	TermsUri  string    `json:"termsUri"`
	Action    string    `json:"action"`
	Terms     TermsDoc  `json:"terms"`
	CreatedAt time.Time `json:"createdAt"`
}

// UriResponse is returned by the creating operations.
type UriResponse struct {
	Uri string `json:"uri"`
}

type ContractPage struct {
	Records []Contract `json:"records"`
	Cursor  string     `json:"cursor,omitempty"`
	HasMore bool       `json:"hasMore"`
}

type TermsPage struct {
	Records []TermsWithContract `json:"records"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"hasMore"`
}

type TransactionPage struct {
	Records []Transaction `json:"records"`
	Cursor  string        `json:"cursor,omitempty"`
	HasMore bool          `json:"hasMore"`
}

// ConsentedData aggregates the grants of all active terms against a
// contract. Only the contract owner may read it.
type ConsentedData struct {
	ContractUri string                `json:"contractUri"`
	Records     []ConsentedDataRecord `json:"records"`
}

type ConsentedDataRecord struct {
	Profile string        `json:"profile"`
	Read    GrantedScopes `json:"read"`
	Write   GrantedScopes `json:"write"`
}

type GrantedScopes struct {
	Personal   []string `json:"personal"`
	Categories []string `json:"categories"`
	ShareAll   bool     `json:"shareAll"`
	Sharing    bool     `json:"sharing"`
}
