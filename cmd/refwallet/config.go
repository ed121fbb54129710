package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/refermate/refwallet/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultConfirmInterval = time.Hour
	defaultExpireInterval  = time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the refwallet service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Access token signatures are symmetric, so this key verifies them
	SecretKey string

	// Environment
	Environment string

	// Origins allowed to call the API from a browser
	AllowedOrigins []string

	// Minimum coin amount a user may request to withdraw
	MinWithdrawal int64

	// How often the auto-confirm and expire sweeps run
	ConfirmInterval time.Duration
	ExpireInterval  time.Duration

	// Settlement windows: one-sided engagements confirm after the first,
	// untouched ones expire after the second
	ConfirmAfter time.Duration
	ExpireAfter  time.Duration

	// Reviewer's percentage of the review cost, the platform keeps the rest
	ReviewerSharePct int64

	// Reserved account receiving the platform share
	PlatformUserID string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		Environment:     defaultEnvironment,
		ConfirmInterval: defaultConfirmInterval,
		ExpireInterval:  defaultExpireInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	var parseErr error

	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setInt64 := func(o *int64) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				parseErr = errors.Join(parseErr, err)
				return
			}
			*o = parsed
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			parsed, err := time.ParseDuration(value)
			if err != nil {
				parseErr = errors.Join(parseErr, err)
				return
			}
			*o = parsed
		}
	}
	setStrings := func(o *[]string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = strings.Split(value, ",")
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"SECRET_KEY":         setString(&c.SecretKey),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"ALLOWED_ORIGINS":    setStrings(&c.AllowedOrigins),
		"MIN_WITHDRAWAL":     setInt64(&c.MinWithdrawal),
		"CONFIRM_INTERVAL":   setDuration(&c.ConfirmInterval),
		"EXPIRE_INTERVAL":    setDuration(&c.ExpireInterval),
		"CONFIRM_AFTER":      setDuration(&c.ConfirmAfter),
		"EXPIRE_AFTER":       setDuration(&c.ExpireAfter),
		"REVIEWER_SHARE_PCT": setInt64(&c.ReviewerSharePct),
		"PLATFORM_USER_ID":   setString(&c.PlatformUserID),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}

	return parseErr
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("refwallet", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "CORS allowed origins")
	fs.Int64Var(&c.MinWithdrawal, "min-withdrawal", c.MinWithdrawal, "Minimum withdrawal amount in coins")
	fs.DurationVar(&c.ConfirmInterval, "confirm-interval", c.ConfirmInterval, "How often the auto-confirm sweep runs")
	fs.DurationVar(&c.ExpireInterval, "expire-interval", c.ExpireInterval, "How often the expire sweep runs")
	fs.DurationVar(&c.ConfirmAfter, "confirm-after", c.ConfirmAfter, "Age at which one-sided engagements auto-confirm")
	fs.DurationVar(&c.ExpireAfter, "expire-after", c.ExpireAfter, "Age at which untouched engagements expire")
	fs.Int64Var(&c.ReviewerSharePct, "reviewer-share", c.ReviewerSharePct, "Reviewer's percentage of the review cost")
	fs.StringVar(&c.PlatformUserID, "platform-user", c.PlatformUserID, "User id of the platform account")

	return fs.Parse(args)
}
