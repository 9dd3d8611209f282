package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"worklens/internal/compose"
)

type Config struct {
	Port string
	Env  string

	// UpstreamURL points panel sessions at a remote gateway's wire contract
	// instead of the in-process generation gateway.
	UpstreamURL string

	LLM     LLMConfig
	Store   StoreConfig
	Archive ArchiveConfig
	Caps    compose.Caps
}

type LLMConfig struct {
	APIKey string
	Model  string
}

type StoreConfig struct {
	FilePath string
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", defaultPort, "server port")
	flag.Parse()
	portFlagSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "port" {
			portFlagSet = true
		}
	})
	resolvedPort := resolvePort(*port, portFlagSet, os.Getenv("PORT"))

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:        resolvedPort,
		Env:         env,
		UpstreamURL: strings.TrimSpace(os.Getenv("UPSTREAM_GATEWAY_URL")),
		LLM: LLMConfig{
			APIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:  firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.0-flash"),
		},
		Store: StoreConfig{
			FilePath: firstNonEmpty(strings.TrimSpace(os.Getenv("CONVERSATION_FILE_PATH")), "data/conversations.json"),
		},
		Archive: loadArchiveConfig(env),
		Caps:    loadCaps(),
	}, nil
}

const defaultPort = ":8080"

// resolvePort picks the listen address: an explicitly passed flag wins over
// the PORT environment variable, which wins over the default.
func resolvePort(flagPort string, flagSet bool, envPort string) string {
	if flagSet {
		return normalizePort(flagPort)
	}
	if strings.TrimSpace(envPort) != "" {
		return normalizePort(envPort)
	}
	return defaultPort
}

func normalizePort(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return defaultPort
	}
	if strings.HasPrefix(p, ":") {
		return p
	}
	return ":" + p
}

func loadCaps() compose.Caps {
	caps := compose.DefaultCaps
	if v := parsePositiveInt(os.Getenv("CONTEXT_MAX_FILES")); v > 0 {
		caps.MaxFiles = v
	}
	if v := parsePositiveInt(os.Getenv("CONTEXT_MAX_FILE_CHARS")); v > 0 {
		caps.MaxFileChars = v
	}
	return caps
}

func loadArchiveConfig(env string) ArchiveConfig {
	endpoint := resolveArchiveEndpoint(env)
	return ArchiveConfig{
		Enabled:   strings.EqualFold(strings.TrimSpace(env), "local") || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET")), "worklens-archives"),
		UseSSL:    resolveArchiveUseSSL(env),
	}
}

func resolveArchiveEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT"))
}

func resolveArchiveUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARCHIVE_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func parsePositiveInt(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
