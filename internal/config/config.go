package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     int
	DevMode  bool
	LogLevel string
	DataDir  string

	// Caller identities for privileged operations. The treasury only
	// accepts mutating calls from these two identities (owner manages the
	// registry, the DAO executes rebalancing batches).
	OwnerID string
	DAOID   string

	// Rebalancing parameters (basis points)
	RebalancingThresholdBps int64
	DefaultSlippageBps      int64

	// Background job schedules (cron expressions, with seconds field)
	DeviationCheckSchedule string
	SnapshotSchedule       string
	BackupSchedule         string

	// Cloudflare R2 (S3-compatible) backup target. Backups are disabled
	// when the account ID is empty.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8010),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DataDir:  getEnv("DATA_DIR", "./data"),

		OwnerID: getEnv("TREASURY_OWNER_ID", ""),
		DAOID:   getEnv("TREASURY_DAO_ID", ""),

		RebalancingThresholdBps: getEnvAsInt64("REBALANCING_THRESHOLD_BPS", 500),
		DefaultSlippageBps:      getEnvAsInt64("DEFAULT_SLIPPAGE_BPS", 200),

		DeviationCheckSchedule: getEnv("DEVIATION_CHECK_SCHEDULE", "0 */5 * * * *"),
		SnapshotSchedule:       getEnv("SNAPSHOT_SCHEDULE", "0 0 * * * *"),
		BackupSchedule:         getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", "treasurer-backups"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.OwnerID == "" {
		return fmt.Errorf("TREASURY_OWNER_ID is required")
	}
	if c.DAOID == "" {
		return fmt.Errorf("TREASURY_DAO_ID is required")
	}
	if c.RebalancingThresholdBps < 0 || c.RebalancingThresholdBps > 10000 {
		return fmt.Errorf("REBALANCING_THRESHOLD_BPS must be in [0, 10000]")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
