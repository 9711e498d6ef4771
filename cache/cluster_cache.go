package cache

import (
	"time"

	"github.com/shardis/shardis/cluster"
)

// ClusterCache backs a BaseCache with a sharded cluster.Client, fanning
// GetMany/SetMany/DeleteMany out across every shard a key set touches.
type ClusterCache struct {
	client *cluster.Client
}

// NewClusterCache wraps client as a Backend.
func NewClusterCache(client *cluster.Client) *ClusterCache {
	return &ClusterCache{client: client}
}

func (cc *ClusterCache) Get(key string) ([]byte, error) {
	v, err := cc.client.Get(key)
	if err != nil {
		return nil, err
	}
	return toBytes(v), nil
}

func (cc *ClusterCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		_, err := cc.client.Set(key, string(value))
		return err
	}
	_, err := cc.client.SetEx(key, ttl, string(value))
	return err
}

func (cc *ClusterCache) Delete(key string) error {
	_, err := cc.client.Del(key)
	return err
}

func (cc *ClusterCache) GetMany(keys []string) ([][]byte, error) {
	values, err := cc.client.MGet(keys)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = toBytes(v)
	}
	return out, nil
}

func (cc *ClusterCache) SetMany(mapping map[string][]byte, ttl time.Duration) error {
	if len(mapping) == 0 {
		return nil
	}
	if ttl <= 0 {
		for k, v := range mapping {
			if _, err := cc.client.Set(k, string(v)); err != nil {
				return err
			}
		}
		return nil
	}
	strMapping := make(map[string]string, len(mapping))
	for k, v := range mapping {
		strMapping[k] = string(v)
	}
	return cc.client.MSetWithExpiry(strMapping, ttl)
}

func (cc *ClusterCache) DeleteMany(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return cc.client.MDelete(keys)
}

func toBytes(v any) []byte {
	switch t := v.(type) {
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		return nil
	}
}
