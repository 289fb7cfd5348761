package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/zerolog/log"
)

// jwksKeyfunc fetches the key set at url and returns a Keyfunc resolving
// tokens by kid. When refresh is positive the set is re-fetched on that
// interval until ctx is done.
func jwksKeyfunc(ctx context.Context, url string, client *http.Client, refresh time.Duration) (jwt.Keyfunc, error) {
	set, err := jwk.Fetch(ctx, url, jwk.WithHTTPClient(client))
	if err != nil {
		return nil, err
	}
	var mu sync.RWMutex
	if refresh > 0 {
		go func() {
			ticker := time.NewTicker(refresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					next, err := jwk.Fetch(ctx, url, jwk.WithHTTPClient(client))
					if err != nil {
						log.Warn().Err(err).Str("jwks_url", url).Msg("refresh jwks")
						continue
					}
					mu.Lock()
					set = next
					mu.Unlock()
				}
			}
		}()
	}
	return func(t *jwt.Token) (interface{}, error) {
		mu.RLock()
		current := set
		mu.RUnlock()

		kid, _ := t.Header["kid"].(string)
		if kid != "" {
			if key, ok := current.LookupKeyID(kid); ok {
				return rawKey(key)
			}
		}
		// no kid: a single-key set is unambiguous
		if kid == "" && current.Len() == 1 {
			if key, ok := current.Key(0); ok {
				return rawKey(key)
			}
		}
		return nil, fmt.Errorf("no jwk for kid: %s", kid)
	}, nil
}

func rawKey(key jwk.Key) (interface{}, error) {
	var pub any
	if err := key.Raw(&pub); err != nil {
		return nil, err
	}
	return pub, nil
}
