package storage

import (
	"context"
	"time"

	"github.com/fiware/consent-flow/model"
	"github.com/redis/go-redis/v9"
)

/**
* Read-through cache in front of another store. Documents are
* content-addressed and therefore immutable, caching can never serve a stale
* value. Cache failures are logged and fall through to the wrapped store.
 */
type CachedStore struct {
	client *redis.Client
	next   Store
	ttl    time.Duration
}

func NewCachedStore(client *redis.Client, next Store) *CachedStore {
	return &CachedStore{client: client, next: next, ttl: 24 * time.Hour}
}

func (store *CachedStore) Store(document []byte) (uri string, httpErr model.HttpError) {
	uri, httpErr = store.next.Store(document)
	if httpErr != (model.HttpError{}) {
		return uri, httpErr
	}
	if err := store.client.Set(context.Background(), uri, document, store.ttl).Err(); err != nil {
		logger.Warnf("Was not able to cache document %s. Err: %v", uri, err)
	}
	return uri, httpErr
}

func (store *CachedStore) Resolve(uri string) (document []byte, httpErr model.HttpError) {
	cached, err := store.client.Get(context.Background(), uri).Bytes()
	if err == nil {
		return cached, httpErr
	}
	if err != redis.Nil {
		logger.Warnf("Was not able to read document %s from the cache. Err: %v", uri, err)
	}

	document, httpErr = store.next.Resolve(uri)
	if httpErr != (model.HttpError{}) {
		return document, httpErr
	}
	if err := store.client.Set(context.Background(), uri, document, store.ttl).Err(); err != nil {
		logger.Warnf("Was not able to cache document %s. Err: %v", uri, err)
	}
	return document, httpErr
}
