package count

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cosyq/internal/backend"
	"cosyq/internal/backend/memory"
	"cosyq/internal/query"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore() *memory.Store {
	s := memory.NewStore()
	s.Append("GET", []memory.Document{
		{"user": "a", "corpus": "x"},
		{"user": "a", "corpus": "x"},
		{"user": "b", "corpus": "y"},
	})
	s.Append("BASE", []memory.Document{
		{"user": "c", "corpus": "x"},
	})
	return s
}

func filtersOf(pairs ...string) query.QuerySpec {
	f := query.NewFilterStore()
	for i := 0; i+1 < len(pairs); i += 2 {
		f.Add(pairs[i], pairs[i+1])
	}
	return query.Translate(f)
}

func TestParseSelector(t *testing.T) {
	sel, err := ParseSelector("all")
	require.NoError(t, err)
	assert.True(t, sel.All)

	sel, err = ParseSelector("GET,BASE,GET")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET", "BASE"}, sel.Names)
	assert.Equal(t, "GET,BASE", sel.String())

	_, err = ParseSelector("GET,,BASE")
	assert.Error(t, err)
}

func TestEngine_GroupedExample(t *testing.T) {
	e := NewEngine(newStore(), Options{Parallelism: 2, Strict: true})

	results, err := e.Count(context.Background(), Request{
		Selector:  Selector{Names: []string{"GET"}},
		GroupKeys: []string{"user", "corpus"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	want := []backend.GroupRow{
		{Values: []string{"a", "x"}, Count: 2},
		{Values: []string{"b", "y"}, Count: 1},
	}
	if diff := cmp.Diff(want, results[0].Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(3), results[0].Total)
	assert.True(t, results[0].Grouped())
}

func TestEngine_ScalarAllProjects(t *testing.T) {
	e := NewEngine(newStore(), Options{Parallelism: 4, Strict: true})

	results, err := e.Count(context.Background(), Request{
		Selector: Selector{All: true},
		Query:    filtersOf("corpus", "x"),
	})
	require.NoError(t, err)

	assert.Equal(t, Results{{Project: "BASE", Total: 1}, {Project: "GET", Total: 2}}, results)
	r, ok := results.Get("GET")
	assert.True(t, ok)
	assert.False(t, r.Grouped())
}

func TestEngine_UnknownProject(t *testing.T) {
	sel := Selector{Names: []string{"GET", "NOPE"}}

	strict := NewEngine(newStore(), Options{Strict: true})
	_, err := strict.Count(context.Background(), Request{Selector: sel})
	assert.ErrorIs(t, err, backend.ErrUnknownProject)

	_, err = strict.Count(context.Background(), Request{Selector: sel, GroupKeys: []string{"user"}})
	assert.ErrorIs(t, err, backend.ErrUnknownProject, "grouped and ungrouped paths agree")

	lenient := NewEngine(newStore(), Options{Strict: false})
	results, err := lenient.Count(context.Background(), Request{Selector: sel})
	require.NoError(t, err)
	r, _ := results.Get("NOPE")
	assert.Equal(t, int64(0), r.Total)
}

func TestEngine_EchoesQueryWhenVerbose(t *testing.T) {
	var echo bytes.Buffer
	e := NewEngine(newStore(), Options{Echo: &echo})

	_, err := e.Count(context.Background(), Request{
		Selector: Selector{Names: []string{"GET"}},
		Query:    filtersOf("user", "a"),
	})
	require.NoError(t, err)
	assert.Equal(t, "{user: \"a\"}\n", echo.String())

	echo.Reset()
	e.SetEcho(nil)
	_, err = e.Count(context.Background(), Request{Selector: Selector{Names: []string{"GET"}}})
	require.NoError(t, err)
	assert.Empty(t, echo.String())
}

// slowBackend answers in reverse order of request to exercise result ordering.
type slowBackend struct {
	mu       sync.Mutex
	inflight int
	peak     int
	names    []string
	fail     string
}

func (b *slowBackend) ProjectNames(ctx context.Context) ([]string, error) {
	return b.names, nil
}

func (b *slowBackend) Count(ctx context.Context, project string, q query.QuerySpec) (int64, error) {
	b.mu.Lock()
	b.inflight++
	if b.inflight > b.peak {
		b.peak = b.inflight
	}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.inflight--
		b.mu.Unlock()
	}()

	if project == b.fail {
		return 0, errors.New("boom")
	}
	// Earlier projects take longer.
	for i, n := range b.names {
		if n == project {
			time.Sleep(time.Duration(len(b.names)-i) * 5 * time.Millisecond)
			return int64(i), nil
		}
	}
	return 0, nil
}

func (b *slowBackend) GroupCount(ctx context.Context, project string, q query.QuerySpec, keys []string) ([]backend.GroupRow, error) {
	return nil, nil
}

func (b *slowBackend) Close(ctx context.Context) error { return nil }

func TestEngine_ParallelKeepsOrder(t *testing.T) {
	b := &slowBackend{names: []string{"p0", "p1", "p2", "p3", "p4"}}
	e := NewEngine(b, Options{Parallelism: 2})

	results, err := e.Count(context.Background(), Request{Selector: Selector{All: true}})
	require.NoError(t, err)

	for i, r := range results {
		assert.Equal(t, b.names[i], r.Project)
		assert.Equal(t, int64(i), r.Total)
	}
	assert.LessOrEqual(t, b.peak, 2)
}

func TestEngine_SequentialWhenParallelismOne(t *testing.T) {
	b := &slowBackend{names: []string{"p0", "p1", "p2"}}
	e := NewEngine(b, Options{Parallelism: 0})

	_, err := e.Count(context.Background(), Request{Selector: Selector{All: true}})
	require.NoError(t, err)
	assert.Equal(t, 1, b.peak)
}

func TestEngine_BackendErrorPropagates(t *testing.T) {
	b := &slowBackend{names: []string{"p0", "p1"}, fail: "p1"}
	e := NewEngine(b, Options{Parallelism: 2})

	_, err := e.Count(context.Background(), Request{Selector: Selector{All: true}})
	assert.EqualError(t, err, "boom")
}

func TestEngine_EmptySelector(t *testing.T) {
	e := NewEngine(newStore(), Options{})
	_, err := e.Count(context.Background(), Request{})
	assert.Error(t, err)
}

func TestSortRows(t *testing.T) {
	base := func() []backend.GroupRow {
		return []backend.GroupRow{
			{Values: []string{"b", "y"}, Count: 1},
			{Values: []string{"a", "y"}, Count: 5},
			{Values: []string{"a", "x"}, Count: 2},
		}
	}
	keys := []string{"user", "corpus"}

	rows := base()
	SortRows(rows, keys, nil)
	assert.Equal(t, []string{"a", "x"}, rows[0].Values, "tuple ascending by default")
	assert.Equal(t, []string{"b", "y"}, rows[2].Values)

	byCount := query.NewSortSpec()
	byCount.Set(CountField, query.Descending)
	rows = base()
	SortRows(rows, keys, byCount)
	assert.Equal(t, []int64{5, 2, 1}, []int64{rows[0].Count, rows[1].Count, rows[2].Count})

	byCorpus := query.NewSortSpec()
	byCorpus.Set("corpus", query.Descending)
	byCorpus.Set("timestamp", query.Ascending) // not a group key, ignored
	rows = base()
	SortRows(rows, keys, byCorpus)
	assert.Equal(t, []string{"a", "y"}, rows[0].Values)
	assert.Equal(t, []string{"b", "y"}, rows[1].Values)
	assert.Equal(t, []string{"a", "x"}, rows[2].Values)
}
