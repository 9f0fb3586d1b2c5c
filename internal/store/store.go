package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/oklog/ulid/v2"

	"tabula/internal/model"
)

// ErrNotFound — запись не найдена или мягко удалена.
var ErrNotFound = errors.New("not found")

// ErrNotNumeric — нечисловое значение для number-колонки.
var ErrNotNumeric = errors.New("expected numeric value")

// Store — низкоуровневые примитивы над database/sql: метаданные (bases/
// tables/columns/views), bulk-вставки строк и ячеек, точечная запись ячейки
// и выполнение параметризованных запросов для планировщика.
//
// SQL собирается через squirrel; формат плейсхолдеров задаётся при
// создании ($n для Postgres, ? для SQLite в тестах).
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType

	mu      sync.Mutex // entropy не потокобезопасна
	entropy io.Reader
}

func New(db *sql.DB, ph sq.PlaceholderFormat) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store{
		db:      db,
		sb:      sq.StatementBuilder.PlaceholderFormat(ph),
		entropy: ulid.Monotonic(src, 0),
	}
}

// NewPostgres — стор поверх соединения из pg.Open.
func NewPostgres(db *sql.DB) *Store { return New(db, sq.Dollar) }

func (s *Store) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Builder — заготовка билдера с правильными плейсхолдерами.
func (s *Store) Builder() sq.StatementBuilderType { return s.sb }

// Query выполняет собранный squirrel-запрос.
func (s *Store) Query(ctx context.Context, q sq.Sqlizer) (*sql.Rows, error) {
	sqlText, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryContext(ctx, sqlText, args...)
}

func (s *Store) QueryRow(ctx context.Context, q sq.Sqlizer) (*sql.Row, error) {
	sqlText, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryRowContext(ctx, sqlText, args...), nil
}

func (s *Store) Exec(ctx context.Context, q sq.Sqlizer) (sql.Result, error) {
	sqlText, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.ExecContext(ctx, sqlText, args...)
}

// ==== Плоские проекции ячейки ====

// Flatten считает типизированные проекции сырого значения по типу колонки.
// Единственное место, где поддерживается инвариант «заполнена ровно та
// проекция, что соответствует типу»: text → value_text (хоть и пустая
// строка), number → value_number (NULL при пустом значении).
func Flatten(colType model.ColumnType, raw string) (*string, *float64, error) {
	switch colType {
	case model.ColumnText:
		v := raw
		return &v, nil, nil
	case model.ColumnNumber:
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return nil, nil, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%w, got %q", ErrNotNumeric, raw)
		}
		return nil, &f, nil
	}
	return nil, nil, fmt.Errorf("unknown column type %q", colType)
}
