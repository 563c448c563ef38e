// Redis 기반 refresh token 세션 포인터 저장소
//
// 키 형식: refresh_token:<sha256 hex> -> user id (TTL = refresh token 수명)
//
// DB 의 refresh_tokens 레코드와 함께 "현재 유효한 토큰인가" 를 판단하는
// 두 번째 관문이다. 둘 중 한쪽에라도 없으면 무효로 취급한다.

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "refresh_token:"
	scanBatch = 500
)

var ErrInvalidTTL = errors.New("session ttl must be positive")

type Store struct {
	rdb redis.UniversalClient
}

func NewStore(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

func key(tokenHash string) string {
	return keyPrefix + tokenHash
}

// Put - 기존 매핑이 있으면 덮어쓴다
func (s *Store) Put(ctx context.Context, tokenHash, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if err := s.rdb.Set(ctx, key(tokenHash), userID, ttl).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

// Get - 키가 없으면 ok=false, err=nil
func (s *Store) Get(ctx context.Context, tokenHash string) (string, bool, error) {
	userID, err := s.rdb.Get(ctx, key(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session get: %w", err)
	}
	return userID, true, nil
}

func (s *Store) Delete(ctx context.Context, tokenHash string) error {
	if err := s.rdb.Del(ctx, key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

// RevokeAllForUser - 전체 세션 키를 SCAN 하면서 값이 userID 인 키를 삭제한다.
// 활성 세션 수에 비례하는 비용. 규모가 커지면 user -> token set 보조 인덱스가 필요하다.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	var (
		cursor  uint64
		revoked int
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			return revoked, fmt.Errorf("session scan: %w", err)
		}

		if len(keys) > 0 {
			values, err := s.rdb.MGet(ctx, keys...).Result()
			if err != nil {
				return revoked, fmt.Errorf("session mget: %w", err)
			}
			var matched []string
			for i, v := range values {
				if str, ok := v.(string); ok && str == userID {
					matched = append(matched, keys[i])
				}
			}
			if len(matched) > 0 {
				n, err := s.rdb.Del(ctx, matched...).Result()
				if err != nil {
					return revoked, fmt.Errorf("session delete: %w", err)
				}
				revoked += int(n)
			}
		}

		cursor = next
		if cursor == 0 {
			return revoked, nil
		}
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
