package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/anikino/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketListings = []byte("listings")
	bucketEpisodes = []byte("episodes")
)

var allBuckets = [][]byte{bucketListings, bucketEpisodes}

// CatalogStore implements domain.CatalogStore using BoltDB.
// An empty cache dir gives a memory-only store.
type CatalogStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

var _ domain.CatalogStore = (*CatalogStore)(nil)

func NewCatalogStore(baseCacheDir, backendURL string) (*CatalogStore, error) {
	if baseCacheDir == "" {
		return &CatalogStore{cache: make(map[string][]byte)}, nil
	}

	// One database per backend so switching projects never mixes catalogs
	dir := baseCacheDir
	if backendURL != "" {
		dir = filepath.Join(baseCacheDir, hashBackendURL(backendURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "anikino.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &CatalogStore{db: db, cache: make(map[string][]byte)}, nil
}

func hashBackendURL(backendURL string) string {
	normalized := strings.TrimRight(strings.ToLower(backendURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *CatalogStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *CatalogStore) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *CatalogStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *CatalogStore) delete(bucket []byte, key string) {
	s.mu.Lock()
	delete(s.cache, string(bucket)+":"+key)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bucket); b != nil {
			b.Delete([]byte(key))
		}
		return nil
	})
}

// clear empties a bucket in memory and on disk
func (s *CatalogStore) clear(bucket []byte) {
	s.mu.Lock()
	prefix := string(bucket) + ":"
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// === Listings ===

func (s *CatalogStore) GetListing(name string) ([]domain.Anime, bool) {
	var items []domain.Anime
	ok := s.get(bucketListings, name, &items)
	return items, ok
}

func (s *CatalogStore) SaveListing(name string, items []domain.Anime) error {
	return s.set(bucketListings, name, items)
}

// === Episodes ===

func (s *CatalogStore) GetEpisodes(animeID string) ([]domain.Episode, bool) {
	var episodes []domain.Episode
	ok := s.get(bucketEpisodes, animeID, &episodes)
	return episodes, ok
}

func (s *CatalogStore) SaveEpisodes(animeID string, episodes []domain.Episode) error {
	return s.set(bucketEpisodes, animeID, episodes)
}

// === Invalidation ===

// InvalidateListings drops every saved listing page
func (s *CatalogStore) InvalidateListings() {
	s.clear(bucketListings)
}

// InvalidateAnime drops an anime's episodes and every listing that may show it
func (s *CatalogStore) InvalidateAnime(animeID string) {
	s.delete(bucketEpisodes, animeID)
	s.clear(bucketListings)
}

func (s *CatalogStore) InvalidateAll() {
	for _, bucket := range allBuckets {
		s.clear(bucket)
	}
}
