package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"

	"github.com/fiware/consent-flow/logging"
	"github.com/fiware/consent-flow/model"
)

var logger = logging.Log()

const uriPrefix = "urn:cas:sha256:"

/**
* Content-addressable document store. Documents are immutable, the uri is
* derived from the document's content, so resolving the same uri always
* yields the same bytes.
 */
type Store interface {
	Store(document []byte) (uri string, httpErr model.HttpError)
	Resolve(uri string) (document []byte, httpErr model.HttpError)
}

/**
* Quick in-memory implementation of the store. Should only be used for dev
* and testing, does not have any persistence.
 */
type InMemoryStore struct {
	mutex     sync.RWMutex
	documents map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{documents: map[string][]byte{}}
}

func (store *InMemoryStore) Store(document []byte) (uri string, httpErr model.HttpError) {
	hash := sha256.Sum256(document)
	uri = uriPrefix + hex.EncodeToString(hash[:])

	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.documents[uri] = document
	return uri, httpErr
}

func (store *InMemoryStore) Resolve(uri string) (document []byte, httpErr model.HttpError) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	document, ok := store.documents[uri]
	if !ok {
		return document, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("Document %s not found.", uri), RootError: nil}
	}
	return document, httpErr
}
