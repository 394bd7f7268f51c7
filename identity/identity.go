package identity

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/fiware/consent-flow/model"
)

/**
* Lookup between profile ids and the dids they resolve to. Identity
* management itself is an external collaborator, the engine only consumes
* the mapping.
 */
type Resolver interface {
	Did(profileId string) (did string, httpErr model.HttpError)
	ProfileId(did string) (profileId string, httpErr model.HttpError)
}

/**
* Quick in-memory implementation of the resolver. Should only be used for
* dev and testing.
 */
type InMemoryResolver struct {
	mutex   sync.RWMutex
	didById map[string]string
	idByDid map[string]string
}

func NewInMemoryResolver() *InMemoryResolver {
	return &InMemoryResolver{didById: map[string]string{}, idByDid: map[string]string{}}
}

func (resolver *InMemoryResolver) Register(profileId string, did string) {
	resolver.mutex.Lock()
	defer resolver.mutex.Unlock()
	resolver.didById[profileId] = did
	resolver.idByDid[did] = profileId
}

func (resolver *InMemoryResolver) Did(profileId string) (did string, httpErr model.HttpError) {
	// dids pass through unresolved
	if strings.HasPrefix(profileId, "did:") {
		return profileId, httpErr
	}
	resolver.mutex.RLock()
	defer resolver.mutex.RUnlock()

	did, ok := resolver.didById[profileId]
	if !ok {
		return did, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("Profile %s not found.", profileId), RootError: nil}
	}
	return did, httpErr
}

func (resolver *InMemoryResolver) ProfileId(did string) (profileId string, httpErr model.HttpError) {
	resolver.mutex.RLock()
	defer resolver.mutex.RUnlock()

	profileId, ok := resolver.idByDid[did]
	if !ok {
		return profileId, model.HttpError{Status: http.StatusNotFound, Message: fmt.Sprintf("No profile known for %s.", did), RootError: nil}
	}
	return profileId, httpErr
}
