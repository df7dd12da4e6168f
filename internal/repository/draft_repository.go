package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"listing-composer/internal/model"
	"listing-composer/internal/service"
)

// MemoryDraftRepository keeps sessions in process memory. Like the Redis
// repository, every save renews the TTL; a zero TTL keeps sessions forever.
type MemoryDraftRepository struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryDraft
}

type memoryDraft struct {
	session   model.DraftSession
	expiresAt time.Time
}

func NewMemoryDraftRepository(ttl time.Duration) *MemoryDraftRepository {
	return &MemoryDraftRepository{ttl: ttl, now: time.Now, sessions: make(map[string]memoryDraft)}
}

func (e memoryDraft) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (r *MemoryDraftRepository) Get(_ context.Context, id string) (*model.DraftSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if ok && e.expired(r.now()) {
		delete(r.sessions, id)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", service.ErrDraftNotFound, id)
	}
	s := e.session
	s.Draft = s.Draft.Clone()
	return &s, nil
}

// Save stores a copy of s and drops every expired session.
func (r *MemoryDraftRepository) Save(_ context.Context, s *model.DraftSession) error {
	cp := *s
	cp.Draft = s.Draft.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, e := range r.sessions {
		if e.expired(now) {
			delete(r.sessions, id)
		}
	}
	e := memoryDraft{session: cp}
	if r.ttl > 0 {
		e.expiresAt = now.Add(r.ttl)
	}
	r.sessions[s.ID] = e
	return nil
}

func (r *MemoryDraftRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}

// Len reports how many sessions are stored, expired ones included until the
// next save.
func (r *MemoryDraftRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// RedisDraftRepository stores sessions as JSON under draft:<id>. Every save
// renews the TTL, so abandoned drafts expire.
type RedisDraftRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func NewRedisDraftRepository(client *redis.Client, ttl time.Duration) *RedisDraftRepository {
	return &RedisDraftRepository{client: client, ttl: ttl}
}

func draftKey(id string) string { return "draft:" + id }

func (r *RedisDraftRepository) Get(ctx context.Context, id string) (*model.DraftSession, error) {
	data, err := r.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", service.ErrDraftNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get draft %s: %w", id, err)
	}
	var s model.DraftSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	if s.Draft.Images == nil {
		s.Draft.Images = []model.ImageRef{}
	}
	return &s, nil
}

func (r *RedisDraftRepository) Save(ctx context.Context, s *model.DraftSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, draftKey(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set draft %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisDraftRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del draft %s: %w", id, err)
	}
	return nil
}
