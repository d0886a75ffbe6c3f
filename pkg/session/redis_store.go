package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis under three key families:
//
//	{prefix}:id:{id}         encoded session, expiring with the session
//	{prefix}:token:{token}   session id
//	{prefix}:user:{userID}   set of session ids
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis store. An empty prefix defaults to "session".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) idKey(id string) string { return r.prefix + ":id:" + id }
func (r *RedisStore) tokenKey(tok string) string { return r.prefix + ":token:" + tok }
func (r *RedisStore) userKey(userID string) string { return r.prefix + ":user:" + userID }

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	return r.write(ctx, s, "")
}

func (r *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	id, err := r.client.Get(ctx, r.tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.IsExpired() {
		return nil, ErrExpired
	}
	return s, nil
}

func (r *RedisStore) Update(ctx context.Context, s *Session) error {
	prev, err := r.load(ctx, s.ID)
	if err != nil {
		return err
	}
	oldToken := ""
	if prev.Token != s.Token {
		oldToken = prev.Token
	}
	return r.write(ctx, s, oldToken)
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	s, err := r.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.idKey(id), r.tokenKey(s.Token))
		if s.UserID != nil {
			p.SRem(ctx, r.userKey(*s.UserID), id)
		}
		return nil
	})
	return err
}

func (r *RedisStore) DeleteByUserID(ctx context.Context, userID string) error {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, r.userKey(userID)).Err()
}

func (r *RedisStore) load(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.idKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (r *RedisStore) write(ctx context.Context, s *Session, oldToken string) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.idKey(s.ID), data, ttl)
		p.Set(ctx, r.tokenKey(s.Token), s.ID, ttl)
		if oldToken != "" {
			p.Del(ctx, r.tokenKey(oldToken))
		}
		if s.UserID != nil {
			p.SAdd(ctx, r.userKey(*s.UserID), s.ID)
			p.Expire(ctx, r.userKey(*s.UserID), ttl)
		}
		return nil
	})
	return err
}

var _ Store = (*RedisStore)(nil)
