package cache

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/linkstore/internal/model"
	"github.com/emrgen/linkstore/internal/rid"
	redis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	recordVersionHash = "record:version"
	recordTTL         = time.Hour
)

func recordKey(id rid.RID) string {
	return "record:" + id.String()
}

type RedisRecordCache struct {
	client *redis.Client
}

func NewRedisRecordCache(addr string) *RedisRecordCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // No password set
		DB:       0,  // Use default DB
		Protocol: 2,  // Connection protocol
	})

	return &RedisRecordCache{client: client}
}

func NewRedisRecordCacheWithClient(client *redis.Client) *RedisRecordCache {
	return &RedisRecordCache{client: client}
}

func (r *RedisRecordCache) GetRecord(ctx context.Context, id rid.RID) (*model.Record, error) {
	res := r.client.Get(ctx, recordKey(id))
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return nil, err
	}

	record := &model.Record{}
	if err := msgpack.Unmarshal(buf, record); err != nil {
		return nil, err
	}

	return record, nil
}

// SetRecord stores the record unless a newer version is already cached.
func (r *RedisRecordCache) SetRecord(ctx context.Context, record *model.Record) error {
	id := record.RID().String()

	cached, err := r.client.HGet(ctx, recordVersionHash, id).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err == nil && cached > record.Version {
		return nil
	}

	value, err := msgpack.Marshal(record)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Set(ctx, recordKey(record.RID()), value, recordTTL).Err(); err != nil {
			return err
		}

		return p.HSet(ctx, recordVersionHash, id, record.Version).Err()
	})

	return err
}

func (r *RedisRecordCache) DeleteRecord(ctx context.Context, id rid.RID) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if err := p.Del(ctx, recordKey(id)).Err(); err != nil {
			return err
		}

		return p.HDel(ctx, recordVersionHash, id.String()).Err()
	})

	return err
}

func (r *RedisRecordCache) Close() error {
	return r.client.Close()
}
