package api

import (
	"context"
	"encoding/json"
)

// BodyCache stores rendered response bodies by key. Get reports the
// generation it looked under; Put only lands a body for that generation, so
// a render that raced an invalidation is never served.
type BodyCache interface {
	Get(ctx context.Context, key string) (body []byte, gen int64, ok bool)
	Put(ctx context.Context, key string, gen int64, body []byte)
}

// Cached serves key from cache when present and otherwise renders, stores
// and returns the result of load. A nil cache always renders.
func Cached(ctx context.Context, cache BodyCache, key string, load func() (any, error)) (RawJSON, *APIError) {
	var gen int64
	if cache != nil {
		cached, g, ok := cache.Get(ctx, key)
		if ok {
			return RawJSON(cached), nil
		}
		gen = g
	}
	v, err := load()
	if err != nil {
		return nil, FromError(err)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, FromError(err)
	}
	if cache != nil {
		cache.Put(ctx, key, gen, body)
	}
	return RawJSON(body), nil
}
