package registry

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMetadataCacheSize bounds the number of cached metadata documents
const DefaultMetadataCacheSize = 4096

// CachingClient memoizes token metadata. Traits never change once minted,
// so only Metadata is cached; Token always hits the registry for fresh ownership.
type CachingClient struct {
	*Client
	metadata *lru.Cache[string, Metadata]
}

// NewCachingClient wraps c with an LRU metadata cache of the given size
func NewCachingClient(c *Client, size int) (*CachingClient, error) {
	if size <= 0 {
		size = DefaultMetadataCacheSize
	}

	cache, err := lru.New[string, Metadata](size)
	if err != nil {
		return nil, fmt.Errorf("creating metadata cache: %w", err)
	}

	return &CachingClient{Client: c, metadata: cache}, nil
}

// Metadata returns cached metadata or fetches and caches it
func (c *CachingClient) Metadata(ctx context.Context, tokenID string) (Metadata, error) {
	if md, ok := c.metadata.Get(tokenID); ok {
		return md, nil
	}

	md, err := c.Client.Metadata(ctx, tokenID)
	if err != nil {
		return Metadata{}, err
	}

	c.metadata.Add(tokenID, md)
	return md, nil
}

// Len reports how many metadata documents are cached
func (c *CachingClient) Len() int {
	return c.metadata.Len()
}
