package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ApplyDDL выполняет map[name]sql. Ожидается idempotent DDL (create ... if not exists).
func ApplyDDL(db *sql.DB, ddl map[string]string) error {
	// стабильный порядок: по ключу
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, k := range keys {
		sqlText := strings.TrimSpace(ddl[k])
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			// pgx/stdlib возвращает *pgconn.PgError; duplicate_object (42710) игнорируем
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42710" {
				log.Printf("DDL skipped (already exists): %s (%s)", k, strings.TrimSpace(pgErr.Message))
				continue
			}
			// подстраховка по фразе (на случай других объектов и других движков)
			e := strings.ToLower(err.Error())
			if strings.Contains(e, "already exists") || strings.Contains(e, "duplicate") {
				log.Printf("DDL skipped (already exists): %v", err)
				continue
			}
			return fmt.Errorf("DDL apply failed (%s): %w", k, err)
		}
	}
	return nil
}
