package main

import (
	"fmt"
	"log"

	"tabula/internal/api"
	"tabula/internal/config"
	"tabula/internal/engine"
	"tabula/internal/pg"
	"tabula/internal/store"
)

func main() {
	cfg := config.Load()
	if cfg.DBURL == "" {
		log.Fatal("Не задан адрес Postgres (TABULA_DB_URL или --db)")
	}

	// 1. Подключаемся к Postgres
	db, err := pg.Open(cfg.DBURL)
	if err != nil {
		log.Fatalf("Ошибка подключения к Postgres: %v", err)
	}
	defer db.Close()

	// 2. Накатываем idempotent DDL
	if cfg.AutoMigrate {
		if err := pg.ApplyDDL(db, pg.Schema()); err != nil {
			log.Fatalf("Ошибка применения схемы: %v", err)
		}
	}

	// 3. Собираем ядро: стор, планировщик, генератор
	st := store.NewPostgres(db)
	planner := engine.NewPlanner(st)
	gen := engine.NewGenerator(st, engine.NewProgressStore())

	// 4. Запускаем REST API сервер
	fmt.Printf("Стартуем сервер Tabula на :%s...\n", cfg.Port)
	api.RunServer(":"+cfg.Port, st, planner, gen)
}
