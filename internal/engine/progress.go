package engine

import (
	"sync"
	"time"
)

// Progress — счётчик одного bulk-прогона, виден любому опрашивающему.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	TableID string `json:"tableId"`
}

type progressEntry struct {
	runID       string
	tableID     string
	current     int
	total       int
	startedAt   time.Time
	completedAt time.Time // zero, пока прогон идёт
}

const (
	// завершённая запись старше этого порога читается как отсутствующая
	defaultCompletedTTL = 10 * time.Second
	// физическая эвакуация чуть позже порога чтения
	defaultEvictAfter = 15 * time.Second
)

// ProgressStore — процессный keyed-стор прогресса bulk-прогонов. Ключ —
// id прогона (не таблицы), поэтому параллельные прогоны по разным таблицам
// не затирают счётчики друг друга. Состояние операционное: потеря при
// рестарте процесса допустима.
type ProgressStore struct {
	mu   sync.RWMutex
	runs map[string]*progressEntry

	completedTTL time.Duration
	evictAfter   time.Duration
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		runs:         make(map[string]*progressEntry),
		completedTTL: defaultCompletedTTL,
		evictAfter:   defaultEvictAfter,
	}
}

func (ps *ProgressStore) Start(runID, tableID string, total int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.runs[runID] = &progressEntry{
		runID:     runID,
		tableID:   tableID,
		total:     total,
		startedAt: time.Now(),
	}
}

// Update двигает счётчик; монотонно, с потолком total.
func (ps *ProgressStore) Update(runID string, current int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	e := ps.runs[runID]
	if e == nil {
		return
	}
	if current > e.total {
		current = e.total
	}
	if current > e.current {
		e.current = current
	}
}

// Finish помечает прогон завершённым и планирует эвакуацию записи после
// льготного окна, чтобы опрашивающий успел увидеть 100%.
func (ps *ProgressStore) Finish(runID string) {
	ps.mu.Lock()
	e := ps.runs[runID]
	if e != nil {
		e.current = e.total
		e.completedAt = time.Now()
	}
	ps.mu.Unlock()

	time.AfterFunc(ps.evictAfter, func() {
		ps.mu.Lock()
		delete(ps.runs, runID)
		ps.mu.Unlock()
	})
}

// Fail убирает запись сразу: упавший прогон прогресса не показывает.
func (ps *ProgressStore) Fail(runID string) {
	ps.mu.Lock()
	delete(ps.runs, runID)
	ps.mu.Unlock()
}

// Latest возвращает последний по времени старта прогон для таблицы или nil.
// Завершённые записи старше completedTTL считаются истёкшими, даже если
// эвакуация ещё не прошла.
func (ps *ProgressStore) Latest(tableID string) *Progress {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var latest *progressEntry
	for _, e := range ps.runs {
		if e.tableID != tableID {
			continue
		}
		if latest == nil || e.startedAt.After(latest.startedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil
	}
	if !latest.completedAt.IsZero() && time.Since(latest.completedAt) > ps.completedTTL {
		return nil
	}
	return &Progress{Current: latest.current, Total: latest.total, TableID: latest.tableID}
}
