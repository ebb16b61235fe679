package versions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Redis shares the registry across agent processes and survives restarts.
//
//	<ns>:versions        SET of registered versions
//	<ns>:gen:<version>   generation counter
//	<ns>:keys:<version>  SET of tracked provider keys
type Redis struct {
	rdb         redis.UniversalClient
	ns          string
	closeClient bool
}

var _ Registry = (*Redis)(nil)

// NewRedis creates a Redis-backed registry. namespace should match the
// store namespace. When closeClient is true, Close also closes the client.
func NewRedis(client redis.UniversalClient, namespace string, closeClient bool) *Redis {
	return &Redis{rdb: client, ns: namespace, closeClient: closeClient}
}

func (r *Redis) setKey() string               { return r.ns + ":versions" }
func (r *Redis) genKey(version string) string  { return r.ns + ":gen:" + version }
func (r *Redis) keysKey(version string) string { return r.ns + ":keys:" + version }

func (r *Redis) Register(ctx context.Context, version string) error {
	return r.rdb.SAdd(ctx, r.setKey(), version).Err()
}

func (r *Redis) Versions(ctx context.Context) ([]string, error) {
	vs, err := r.rdb.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(vs)
	return vs, nil
}

// Forget removes the version and its key index in one round-trip.
func (r *Redis) Forget(ctx context.Context, version string) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SRem(ctx, r.setKey(), version)
		p.Del(ctx, r.keysKey(version))
		return nil
	})
	return err
}

func (r *Redis) Generation(ctx context.Context, version string) (uint64, error) {
	res, err := r.rdb.Get(ctx, r.genKey(version)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	g, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis generation parse: %w", err)
	}
	return g, nil
}

func (r *Redis) Bump(ctx context.Context, version string) (uint64, error) {
	g, err := r.rdb.Incr(ctx, r.genKey(version)).Result()
	if err != nil {
		return 0, err
	}
	return uint64(g), nil
}

// trackScript adds ARGV[2] to the key index only while ARGV[1] is registered.
var trackScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('SADD', KEYS[2], ARGV[2])
return 1
`)

func (r *Redis) Track(ctx context.Context, version, key string) error {
	ok, err := trackScript.Run(ctx, r.rdb, []string{r.setKey(), r.keysKey(version)}, version, key).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrUnregistered
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, version string) ([]string, error) {
	return r.rdb.SMembers(ctx, r.keysKey(version)).Result()
}

// Close releases the client only when the registry owns it.
func (r *Redis) Close(context.Context) error {
	if !r.closeClient {
		return nil
	}
	if err := r.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
