package sql

import "time"

/**
* Rows as stored by the sql repositories. Scope documents are kept as json
* blobs, the policy body itself lives in the content-addressable store and
* is only referenced here. The auto-increment id doubles as the insertion
* sequence pagination cursors are built on.
 */

type Contract struct {
	ID                 int
	Uri                string
	Owner              string
	Name               string
	Subtitle           string
	Description        string
	ReasonForAccessing string
	Image              string
	BodyUri            string
	ExpiresAt          *time.Time
}

type Terms struct {
	ID          int
	Uri         string
	ContractUri string
	Profile     string
	Terms       string
	Status      string
	ExpiresAt   *time.Time
}

type Transaction struct {
	ID        int
	TermsUri  string
	Action    string
	Terms     string
	CreatedAt time.Time
}
