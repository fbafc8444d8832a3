package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cachify/cachify/encoding"
	"github.com/cachify/cachify/internal/retry"
)

// Remote adapts a Redis-style client into Engine, the way the teacher's
// redis/redis.go client wraps *redis.Client. Keys are namespaced
// "cachify:<clientID>:<flavor>:<scope>:<key>" (spec.md §6 "Remote key
// schema") so multiple Client instances can share one Redis database
// without coordinating — isolation is by key prefix, not consensus.
type Remote struct {
	client   *redis.Client
	clientID string
}

// NewRemote wraps client, prefixing every key with clientID.
func NewRemote(client *redis.Client, clientID string) *Remote {
	return &Remote{client: client, clientID: clientID}
}

func (r *Remote) key(flavor, scope, key string) string {
	return fmt.Sprintf("cachify:%s:%s:%s:%s", r.clientID, flavor, scope, key)
}

func (r *Remote) Set(ctx context.Context, flavor, scope, key string, value any) error {
	data, err := encoding.DefaultMarshaler.Marshal(value)
	if err != nil {
		return NewError(KindInvalid, err)
	}
	err = retry.Do(ctx, func(ctx context.Context) error {
		return r.client.Set(ctx, r.key(flavor, scope, key), data, 0).Err()
	}, nil)
	if err != nil {
		return NewError(KindTransport, err)
	}
	return nil
}

func (r *Remote) Read(ctx context.Context, flavor, scope, key string, target any) (bool, error) {
	var data []byte
	err := retry.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		data, innerErr = r.client.Get(ctx, r.key(flavor, scope, key)).Bytes()
		if errors.Is(innerErr, redis.Nil) {
			return nil
		}
		return innerErr
	}, nil)
	if err != nil {
		return false, NewError(KindTransport, err)
	}
	if data == nil {
		// Mirrors the teacher's keyNotFound: a missing key is not a transport error.
		return false, nil
	}
	if target == nil {
		return true, nil
	}
	if err := encoding.DefaultMarshaler.Unmarshal(data, target); err != nil {
		return false, NewError(KindInvalid, err)
	}
	return true, nil
}

func (r *Remote) Remove(ctx context.Context, flavor, scope, key string) (bool, error) {
	var n int64
	err := retry.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		n, innerErr = r.client.Del(ctx, r.key(flavor, scope, key)).Result()
		return innerErr
	}, nil)
	if err != nil {
		return false, NewError(KindTransport, err)
	}
	return n > 0, nil
}

func (r *Remote) Clear(ctx context.Context, scope, flavor string) error {
	pattern := fmt.Sprintf("cachify:%s:%s:%s:*", r.clientID, orWildcard(flavor), orWildcard(scope))
	err := retry.Do(ctx, func(ctx context.Context) error {
		iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		return r.client.Del(ctx, keys...).Err()
	}, nil)
	if err != nil {
		return NewError(KindTransport, err)
	}
	return nil
}

func orWildcard(s string) string {
	if s == "" {
		return "*"
	}
	return s
}
