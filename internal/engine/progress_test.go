package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProgressStoreLatestPerTable(t *testing.T) {
	ps := NewProgressStore()

	ps.Start("run-a", "table-1", 100)
	ps.Start("run-b", "table-2", 200)
	ps.Update("run-a", 10)
	ps.Update("run-b", 20)

	// параллельные прогоны по разным таблицам не затирают друг друга
	pa := ps.Latest("table-1")
	require.NotNil(t, pa)
	require.Equal(t, 10, pa.Current)
	require.Equal(t, 100, pa.Total)

	pb := ps.Latest("table-2")
	require.NotNil(t, pb)
	require.Equal(t, 20, pb.Current)

	require.Nil(t, ps.Latest("table-3"))
}

func TestProgressStorePicksMostRecentRun(t *testing.T) {
	ps := NewProgressStore()

	ps.Start("run-old", "table-1", 100)
	ps.Update("run-old", 100)
	time.Sleep(2 * time.Millisecond) // разнести startedAt
	ps.Start("run-new", "table-1", 500)
	ps.Update("run-new", 50)

	p := ps.Latest("table-1")
	require.NotNil(t, p)
	require.Equal(t, 50, p.Current)
	require.Equal(t, 500, p.Total)
}

func TestProgressStoreMonotonicCapped(t *testing.T) {
	ps := NewProgressStore()
	ps.Start("run", "table-1", 100)

	ps.Update("run", 40)
	ps.Update("run", 30) // назад не двигаемся
	require.Equal(t, 40, ps.Latest("table-1").Current)

	ps.Update("run", 1000) // потолок — total
	require.Equal(t, 100, ps.Latest("table-1").Current)
}

func TestProgressStoreFinishAndExpiry(t *testing.T) {
	ps := NewProgressStore()
	ps.completedTTL = 30 * time.Millisecond
	ps.evictAfter = 50 * time.Millisecond

	ps.Start("run", "table-1", 10)
	ps.Update("run", 7)
	ps.Finish("run")

	// сразу после Finish виден 100%
	p := ps.Latest("table-1")
	require.NotNil(t, p)
	require.Equal(t, 10, p.Current)

	// по истечении порога чтения — nil, затем запись эвакуируется
	time.Sleep(40 * time.Millisecond)
	require.Nil(t, ps.Latest("table-1"))

	time.Sleep(30 * time.Millisecond)
	ps.mu.RLock()
	_, exists := ps.runs["run"]
	ps.mu.RUnlock()
	require.False(t, exists)
}

func TestProgressStoreFailDiscards(t *testing.T) {
	ps := NewProgressStore()
	ps.Start("run", "table-1", 10)
	ps.Update("run", 5)
	ps.Fail("run")
	require.Nil(t, ps.Latest("table-1"))

	// update по исчезнувшему прогону — no-op
	ps.Update("run", 9)
	require.Nil(t, ps.Latest("table-1"))
}
