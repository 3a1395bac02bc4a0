// Package kv opens the shared Redis connection used by the sequence allocator and
// the distributed rate limiter.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options describes how to reach Redis. URL takes precedence over Address.
type Options struct {
	URL          string
	Address      string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Connect builds a client from opts and verifies connectivity with PING
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	ro, err := clientOptions(opts)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func clientOptions(opts Options) (*redis.Options, error) {
	if opts.URL == "" && opts.Address == "" {
		return nil, errors.New("redis url or address is required")
	}

	var ro *redis.Options
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		ro = parsed
	} else {
		ro = &redis.Options{
			Addr:     opts.Address,
			Password: opts.Password,
			DB:       opts.DB,
		}
	}

	if ro.DB == 0 {
		ro.DB = opts.DB
	}
	if ro.PoolSize == 0 {
		ro.PoolSize = opts.PoolSize
	}
	if ro.DialTimeout == 0 {
		ro.DialTimeout = opts.DialTimeout
	}
	if ro.ReadTimeout == 0 {
		ro.ReadTimeout = opts.ReadTimeout
	}
	if ro.WriteTimeout == 0 {
		ro.WriteTimeout = opts.WriteTimeout
	}
	return ro, nil
}
