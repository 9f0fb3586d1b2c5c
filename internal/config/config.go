package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	DBURL       string `yaml:"dbUrl"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

func def() Config {
	return Config{
		Port:        "8080",
		DBURL:       "",
		AutoMigrate: true,
	}
}

func loadYAML(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// LoadWithPath читает YAML по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(yamlPath string) Config {
	cfg := def()

	// YAML (если файл существует)
	if st, err := os.Stat(yamlPath); err == nil && !st.IsDir() {
		if c2, err := loadYAML(yamlPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("TABULA_PORT", cfg.Port)
	cfg.DBURL = getenv("TABULA_DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool("TABULA_AUTO_MIGRATE", cfg.AutoMigrate)

	// Flags overrides
	configPath := flag.String("config", yamlPath, "Path to config YAML")
	port := flag.String("port", cfg.Port, "HTTP port")
	db := flag.String("db", cfg.DBURL, "Postgres URL")
	auto := flag.String("auto-migrate", strconv.FormatBool(cfg.AutoMigrate), "Apply idempotent DDL on start (true/false)")

	flag.Parse()

	// Если через флаг передали другой конфиг — перечитаем
	if *configPath != yamlPath {
		return LoadWithPath(*configPath)
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.DBURL = strings.TrimSpace(*db)
	cfg.AutoMigrate = strings.EqualFold(strings.TrimSpace(*auto), "true") ||
		strings.EqualFold(strings.TrimSpace(*auto), "1") ||
		strings.EqualFold(strings.TrimSpace(*auto), "yes")

	return cfg
}

func Load() Config { return LoadWithPath("tabula.yaml") }
