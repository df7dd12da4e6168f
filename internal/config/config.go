package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageGridFS   = "gridfs"
	StorageFirebase = "firebase"
	StorageS3       = "s3"
)

type MongoConfig struct {
	URI      string
	Database string
}

type FirebaseConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// StorageConfig selects the object store images are uploaded to.
type StorageConfig struct {
	Backend       string
	MaxImageBytes int64
	// CleanupOrphans deletes objects uploaded by a batch that failed as a whole.
	CleanupOrphans bool
	Mongo          MongoConfig
	Firebase       FirebaseConfig
	S3             S3Config
}

type ListingAPIConfig struct {
	URL     string
	Timeout time.Duration
}

type DraftConfig struct {
	RedisURL string
	TTL      time.Duration
}

type StdoutLogConfig struct {
	Level string
	JSON  bool
}

type FluentBitConfig struct {
	Enabled bool
	Host    string
	Port    int
	Level   string
}

// AppConfig holds the whole application configuration.
type AppConfig struct {
	AppName       string
	Port          string
	DatabaseURL   string
	JWTSecret     string
	PublicBaseURL string
	Storage       StorageConfig
	ListingAPI    ListingAPIConfig
	Drafts        DraftConfig
	StdoutLogger  StdoutLogConfig
	FluentBit     FluentBitConfig
}

// Load reads an optional .env file and then the environment.
func Load(envPath ...string) (*AppConfig, error) {
	var err error
	if len(envPath) > 0 {
		err = godotenv.Load(envPath...)
	} else {
		err = godotenv.Load()
	}
	if err != nil {
		log.Printf("Info: could not load .env file (path: %v): %v", envPath, err)
	}

	cfg := &AppConfig{
		AppName:       getEnvAsString("APP_NAME", "listing-composer"),
		Port:          getEnvAsString("PORT", "8083"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		PublicBaseURL: strings.TrimRight(getEnvAsString("PUBLIC_BASE_URL", "http://localhost:8083"), "/"),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg.Storage = StorageConfig{
		Backend:        strings.ToLower(getEnvAsString("STORAGE_BACKEND", StorageGridFS)),
		MaxImageBytes:  int64(getEnvAsInt("MAX_IMAGE_BYTES", 2*1024*1024)),
		CleanupOrphans: getEnvAsBool("CLEANUP_ORPHANED_UPLOADS", false),
		Mongo: MongoConfig{
			URI:      getEnvAsString("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnvAsString("MONGO_DB", "listing_photos"),
		},
		Firebase: FirebaseConfig{
			Bucket:          os.Getenv("FIREBASE_BUCKET"),
			ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
			CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		},
		S3: S3Config{
			Bucket:        os.Getenv("S3_BUCKET"),
			Region:        getEnvAsString("AWS_REGION", "us-east-1"),
			Endpoint:      os.Getenv("AWS_ENDPOINT_URL"),
			PublicBaseURL: strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),
			PresignTTL:    time.Duration(getEnvAsInt("S3_PRESIGN_TTL_SECONDS", 7*24*3600)) * time.Second,
		},
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}

	cfg.ListingAPI = ListingAPIConfig{
		URL:     strings.TrimRight(getEnvAsString("LISTING_API_URL", "http://localhost:"+cfg.Port), "/"),
		Timeout: time.Duration(getEnvAsInt("LISTING_API_TIMEOUT_SECONDS", 15)) * time.Second,
	}

	cfg.Drafts = DraftConfig{
		RedisURL: os.Getenv("REDIS_URL"),
		TTL:      time.Duration(getEnvAsInt("DRAFT_TTL_HOURS", 24)) * time.Hour,
	}

	cfg.StdoutLogger = StdoutLogConfig{
		Level: getEnvAsString("STDOUT_LOG_LEVEL", "debug"),
		JSON:  getEnvAsBool("STDOUT_LOG_JSON", false),
	}

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	return cfg, nil
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case StorageGridFS:
		if s.Mongo.URI == "" {
			return fmt.Errorf("MONGO_URI is required for the gridfs storage backend")
		}
	case StorageFirebase:
		if s.Firebase.Bucket == "" {
			return fmt.Errorf("FIREBASE_BUCKET is required for the firebase storage backend")
		}
	case StorageS3:
		if s.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", s.Backend)
	}
	if s.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive")
	}
	return nil
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt falls back to defaultValue and logs when the variable is set but not an int.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}
