package pricecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/agri-market/internal/domain/market"
)

// ValkeyStore keeps live fetch results in a Valkey-compatible database.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "mandi"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) Get(ctx context.Context, key string) ([]market.PriceRecord, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	result := s.client.Do(ctx, s.client.B().Get().Key(s.entryKey(key)).Build())
	payload, err := result.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var records []market.PriceRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, false, err
	}
	return records, true, nil
}

func (s *ValkeyStore) Save(ctx context.Context, key string, records []market.PriceRecord, ttl time.Duration) error {
	if key == "" {
		return nil
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.entryKey(key)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyStore) entryKey(key string) string {
	return fmt.Sprintf("%s:live:%s", s.prefix, key)
}

var _ Store = (*ValkeyStore)(nil)
