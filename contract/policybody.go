package contract

import (
	"encoding/json"
	"net/http"

	"github.com/fiware/consent-flow/model"
	"github.com/fiware/consent-flow/storage"
)

/**
* The policy body of a contract is persisted content-addressably in the
* document store, only the resulting uri is kept with the metadata. Both
* repository implementations share this split.
 */

func storePolicy(store storage.Store, policy model.ContractPolicy) (bodyUri string, httpErr model.HttpError) {
	body, err := json.Marshal(policy)
	if err != nil {
		return bodyUri, model.HttpError{Status: http.StatusBadRequest, Message: "Was not able to serialize the contract policy.", RootError: err}
	}
	return store.Store(body)
}

func resolvePolicy(store storage.Store, bodyUri string) (policy model.ContractPolicy, httpErr model.HttpError) {
	body, httpErr := store.Resolve(bodyUri)
	if httpErr != (model.HttpError{}) {
		return policy, httpErr
	}
	if err := json.Unmarshal(body, &policy); err != nil {
		return policy, model.HttpError{Status: http.StatusInternalServerError, Message: "Was not able to deserialize the contract policy.", RootError: err}
	}
	return policy, httpErr
}
