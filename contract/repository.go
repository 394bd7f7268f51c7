package contract

import (
	"context"

	"github.com/fiware/consent-flow/logging"
	"github.com/fiware/consent-flow/model"
)

var logger = logging.Log()

/**
* TermsCascade removes every terms record depending on a contract. It is
* implemented by the consent repositories, so a contract deletion takes its
* dependents with it inside the same unit of work.
 */
type TermsCascade interface {
	DeleteTermsByContract(ctx context.Context, contractUri string) model.HttpError
}

type Repository interface {
	CreateContract(ctx context.Context, contract model.Contract) (created model.Contract, httpErr model.HttpError)
	GetContract(ctx context.Context, uri string) (contract model.Contract, httpErr model.HttpError)
	GetContracts(ctx context.Context, owner string, query map[string]interface{}, cursor string, limit int) (page model.ContractPage, httpErr model.HttpError)
	DeleteContract(ctx context.Context, uri string) (httpErr model.HttpError)
}
