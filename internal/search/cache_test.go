package search

import (
	"reflect"
	"sync"
	"testing"

	"github.com/mmcdole/anikino/internal/domain"
)

func anime(id, title string, year int) domain.Anime {
	return domain.Anime{ID: id, Title: title, ReleaseYear: year, ImageURL: "https://img.example/" + id + ".jpg"}
}

func ids(records []domain.SearchRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestCache_MergeDedupesWithinAndAcrossBatches(t *testing.T) {
	c := NewCache()

	recent := []domain.Anime{anime("1", "Bleach", 2004), anime("2", "Naruto", 2002), anime("1", "Bleach (dup)", 2004)}
	popular := []domain.Anime{anime("2", "Naruto (popular)", 2002), anime("3", "One Piece", 1999)}
	c.Merge(recent, popular)

	got := c.Snapshot()
	if want := []string{"1", "2", "3"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("ids = %v, want %v", ids(got), want)
	}
	if got[0].Title != "Bleach" {
		t.Errorf("first occurrence should win within a merge, got title %q", got[0].Title)
	}
	if got[1].Title != "Naruto" {
		t.Errorf("first occurrence should win across batches of one merge, got title %q", got[1].Title)
	}
}

func TestCache_MergeOverwritesInPlace(t *testing.T) {
	c := NewCache()
	c.Merge([]domain.Anime{anime("1", "Bleach", 2004), anime("2", "Naruto", 2002)})
	c.Merge([]domain.Anime{anime("1", "Bleach: Thousand-Year Blood War", 2022)})

	got := c.Snapshot()
	if want := []string{"1", "2"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("ids = %v, want %v", ids(got), want)
	}
	if got[0].Title != "Bleach: Thousand-Year Blood War" || got[0].Year != 2022 {
		t.Errorf("record 1 = %+v, want freshest projection", got[0])
	}
}

func TestCache_MergeIsIdempotent(t *testing.T) {
	batch := []domain.Anime{anime("1", "Bleach", 2004), anime("2", "Naruto", 2002)}

	once := NewCache()
	once.Merge(batch)

	twice := NewCache()
	twice.Merge(batch)
	twice.Merge(batch)

	if !reflect.DeepEqual(once.Snapshot(), twice.Snapshot()) {
		t.Errorf("snapshots differ:\n once  %+v\n twice %+v", once.Snapshot(), twice.Snapshot())
	}
}

func TestCache_SizeNeverDecreases(t *testing.T) {
	c := NewCache()
	c.Merge([]domain.Anime{anime("1", "A", 0), anime("2", "B", 0), anime("3", "C", 0)})
	before := c.Len()

	c.Merge([]domain.Anime{anime("2", "B2", 0)})
	c.Merge(nil)
	c.Merge()

	if c.Len() < before {
		t.Errorf("Len = %d after merges, was %d", c.Len(), before)
	}
}

func TestCache_SkipsRecordsWithoutID(t *testing.T) {
	c := NewCache()
	c.Merge([]domain.Anime{{Title: "No id"}, anime("1", "Bleach", 2004)})

	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	if _, ok := c.Get(""); ok {
		t.Error("empty id should not be stored")
	}
}

func TestCache_Reset(t *testing.T) {
	c := NewCache()
	c.Merge([]domain.Anime{anime("1", "A", 0), anime("2", "B", 0)})
	c.Reset([]domain.Anime{anime("9", "Z", 0)})

	if want := []string{"9"}; !reflect.DeepEqual(ids(c.Snapshot()), want) {
		t.Errorf("ids = %v, want %v", ids(c.Snapshot()), want)
	}
	if _, ok := c.Get("1"); ok {
		t.Error("reset should drop old records")
	}

	c.Merge([]domain.Anime{anime("1", "A", 0)})
	if rec, ok := c.Get("1"); !ok || rec.Title != "A" {
		t.Errorf("Get(1) = %+v, %v after merge on reset cache", rec, ok)
	}
}

func TestCache_SnapshotIsACopy(t *testing.T) {
	c := NewCache()
	c.Merge([]domain.Anime{anime("1", "Bleach", 2004)})

	snap := c.Snapshot()
	snap[0].Title = "mutated"

	if rec, _ := c.Get("1"); rec.Title != "Bleach" {
		t.Errorf("cache mutated through snapshot: %q", rec.Title)
	}
}

func TestCache_ConcurrentMerges(t *testing.T) {
	c := NewCache()
	batch := []domain.Anime{anime("1", "A", 0), anime("2", "B", 0), anime("3", "C", 0)}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Merge(batch)
			_ = c.Snapshot()
		}()
	}
	wg.Wait()

	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}
