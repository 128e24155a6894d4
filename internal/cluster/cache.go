package cluster

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// InputHash digests the sorted, deduplicated article ids as a comma-joined
// decimal list. The same id set always yields the same hash.
func InputHash(ids []int64) string {
	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && id == sorted[i-1] {
			continue
		}
		parts = append(parts, strconv.FormatInt(id, 10))
	}

	sum := md5.Sum([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// HashReader returns the input hash of the newest snapshot for a stock.
type HashReader interface {
	LatestInputHash(ctx context.Context, stockCode string) (hash string, found bool, err error)
}

// Decision is the outcome of a cache check.
type Decision struct {
	InputHash string
	Skip      bool
}

// Cache gates the clustering path on the candidate id set.
type Cache struct {
	reader HashReader
}

// NewCache wires the snapshot reader.
func NewCache(reader HashReader) *Cache {
	return &Cache{reader: reader}
}

// Check hashes ids and reports Skip when the newest snapshot for stockCode
// was computed from the same set.
func (c *Cache) Check(ctx context.Context, stockCode string, ids []int64) (Decision, error) {
	d := Decision{InputHash: InputHash(ids)}
	if c == nil || c.reader == nil {
		return d, nil
	}

	latest, found, err := c.reader.LatestInputHash(ctx, stockCode)
	if err != nil {
		return d, fmt.Errorf("latest input hash for %s: %w", stockCode, err)
	}
	d.Skip = found && latest == d.InputHash
	return d, nil
}
