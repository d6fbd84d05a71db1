package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"

	"github.com/obsidianstack/winsight/agent/internal/ndjson"
	"github.com/obsidianstack/winsight/pkg/types"
)

// MaxCompareRows caps each list in a Comparison.
const MaxCompareRows = 20

// tally is what Compare needs from one export.
type tally struct {
	errors    int
	warnings  int
	providers map[string]int
	ids       map[int]int
}

func readTally(r io.Reader) (*tally, error) {
	t := &tally{providers: map[string]int{}, ids: map[int]int{}}
	_, err := ndjson.Scan(r, func(v *fastjson.Value) error {
		switch strings.ToLower(string(v.GetStringBytes("severity"))) {
		case "error", "critical":
			t.errors++
		case "warning":
			t.warnings++
		}
		t.providers[strings.ToLower(string(v.GetStringBytes("provider")))]++
		t.ids[v.GetInt("event_id")]++
		return nil
	})
	return t, err
}

// CompareNDJSON compares two export files.
func CompareNDJSON(basePath, currentPath string) (*types.Comparison, error) {
	base, err := os.Open(basePath)
	if err != nil {
		return nil, fmt.Errorf("report: compare: %w", err)
	}
	defer base.Close()
	cur, err := os.Open(currentPath)
	if err != nil {
		return nil, fmt.Errorf("report: compare: %w", err)
	}
	defer cur.Close()
	return Compare(base, cur)
}

// Compare reports how the export read from current differs from base.
// Errors include critical records. Providers are compared case-insensitively
// and reported lowercased.
func Compare(base, current io.Reader) (*types.Comparison, error) {
	b, err := readTally(base)
	if err != nil {
		return nil, fmt.Errorf("report: compare base: %w", err)
	}
	c, err := readTally(current)
	if err != nil {
		return nil, fmt.Errorf("report: compare current: %w", err)
	}

	cmp := &types.Comparison{
		DeltaErrors:       c.errors - b.errors,
		DeltaWarnings:     c.warnings - b.warnings,
		NewProviders:      []string{},
		RemovedProviders:  []string{},
		ProviderDeltas:    []types.Delta{},
		IncreasedEventIDs: []types.Delta{},
		DecreasedEventIDs: []types.Delta{},
		NewEventIDs:       []int{},
	}

	for p, n := range c.providers {
		if _, ok := b.providers[p]; !ok {
			cmp.NewProviders = append(cmp.NewProviders, p)
		}
		if d := n - b.providers[p]; d != 0 {
			cmp.ProviderDeltas = append(cmp.ProviderDeltas, types.Delta{Key: p, Delta: d})
		}
	}
	for p := range b.providers {
		if _, ok := c.providers[p]; !ok {
			cmp.RemovedProviders = append(cmp.RemovedProviders, p)
		}
	}

	for id, n := range b.ids {
		switch d := c.ids[id] - n; {
		case d > 0:
			cmp.IncreasedEventIDs = append(cmp.IncreasedEventIDs, types.Delta{Key: strconv.Itoa(id), Delta: d})
		case d < 0:
			cmp.DecreasedEventIDs = append(cmp.DecreasedEventIDs, types.Delta{Key: strconv.Itoa(id), Delta: d})
		}
	}
	for id := range c.ids {
		if _, ok := b.ids[id]; !ok {
			cmp.NewEventIDs = append(cmp.NewEventIDs, id)
		}
	}

	sort.Strings(cmp.NewProviders)
	sort.Strings(cmp.RemovedProviders)
	sortDeltas(cmp.ProviderDeltas, true)
	sortDeltas(cmp.IncreasedEventIDs, true)
	sortDeltas(cmp.DecreasedEventIDs, false)
	sort.Ints(cmp.NewEventIDs)

	cmp.NewProviders = capStrings(cmp.NewProviders)
	cmp.RemovedProviders = capStrings(cmp.RemovedProviders)
	cmp.ProviderDeltas = capDeltas(cmp.ProviderDeltas)
	cmp.IncreasedEventIDs = capDeltas(cmp.IncreasedEventIDs)
	cmp.DecreasedEventIDs = capDeltas(cmp.DecreasedEventIDs)
	if len(cmp.NewEventIDs) > MaxCompareRows {
		cmp.NewEventIDs = cmp.NewEventIDs[:MaxCompareRows]
	}
	return cmp, nil
}

// sortDeltas orders by delta (descending when desc), then by key. Event id
// keys compare numerically.
func sortDeltas(ds []types.Delta, desc bool) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].Delta != ds[j].Delta {
			if desc {
				return ds[i].Delta > ds[j].Delta
			}
			return ds[i].Delta < ds[j].Delta
		}
		a, aerr := strconv.Atoi(ds[i].Key)
		b, berr := strconv.Atoi(ds[j].Key)
		if aerr == nil && berr == nil {
			return a < b
		}
		return ds[i].Key < ds[j].Key
	})
}

func capStrings(s []string) []string {
	if len(s) > MaxCompareRows {
		return s[:MaxCompareRows]
	}
	return s
}

func capDeltas(ds []types.Delta) []types.Delta {
	if len(ds) > MaxCompareRows {
		return ds[:MaxCompareRows]
	}
	return ds
}
