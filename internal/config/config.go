package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cosyq/internal/backend/mongostore"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Mongo            mongostore.Config
	ReconnectBackoff time.Duration
	Parallelism      int
	StrictProjects   bool
	HistoryFile      string
	Prompt           string
	DumpDir          string
	DataPath         string
	LogDir           string
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try the executable's directory first
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs"))

	historyFile := getEnv("COSYQ_HISTORY_FILE", defaultHistoryFile())

	cfg := &AppConfig{
		Mongo: mongostore.Config{
			Host:     getEnv("COSYQ_HOST", "localhost"),
			Port:     getEnvInt("COSYQ_PORT", 27017),
			User:     getEnv("COSYQ_USER", ""),
			Password: getEnv("COSYQ_PASSWORD", ""),
			Database: getEnv("COSYQ_DATABASE", "cosycat"),
			Timeout:  time.Duration(getEnvInt("COSYQ_TIMEOUT_SECONDS", 3)) * time.Second,
		},
		ReconnectBackoff: time.Duration(getEnvInt("COSYQ_RECONNECT_SECONDS", 3)) * time.Second,
		Parallelism:      getEnvInt("COSYQ_PARALLELISM", 4),
		StrictProjects:   getEnvBool("COSYQ_STRICT_PROJECTS", true),
		HistoryFile:      historyFile,
		Prompt:           getEnv("COSYQ_PROMPT", "> "),
		DumpDir:          getEnv("COSYQ_DUMP_DIR", ""),
		DataPath:         dataPath,
		LogDir:           logDir,
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric setting")
	}
	return fallback
}

// defaultHistoryFile is ~/.cosycatcli_history, or "" (memory-only history)
// when the home directory is unknown.
func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cosycatcli_history")
}
