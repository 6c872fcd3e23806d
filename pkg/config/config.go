package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port          string
	Environment   string
	ChatDBPath    string
	UsersDBPath   string
	UploadDir     string
	MaxUploadSize int64
	// PublicBaseURL is prepended to /uploads/ paths in image URLs. When
	// empty, URLs are derived from the request's Host header.
	PublicBaseURL string
}

// Load reads configuration from the environment, with an optional env
// file (BESEDKA_ENV_FILE) supplying values for variables not already set.
func Load() *Config {
	fileVars := loadEnvFile(os.Getenv("BESEDKA_ENV_FILE"))

	get := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		if value, ok := fileVars[key]; ok {
			return value
		}
		return defaultValue
	}

	return &Config{
		Port:          get("PORT", "8080"),
		Environment:   get("ENVIRONMENT", "development"),
		ChatDBPath:    get("CHAT_DB_PATH", "./data/chat.db"),
		UsersDBPath:   get("USERS_DB_PATH", "./data/login.db"),
		UploadDir:     get("UPLOAD_DIR", "./data/uploads"),
		MaxUploadSize: parseInt64(get("MAX_UPLOAD_SIZE", "10485760")), // 10MB default
		PublicBaseURL: get("PUBLIC_BASE_URL", ""),
	}
}

func loadEnvFile(path string) map[string]string {
	vars := map[string]string{}
	if path == "" {
		return vars
	}

	f, err := os.Open(path)
	if err != nil {
		return vars
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		vars[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return vars
}

func parseInt64(s string) int64 {
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 10485760 // 10MB default
	}
	return val
}
