package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	GoogleAPI GoogleAPIConfig `mapstructure:"googleapi"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"maxopenconns"`
	MaxIdleConns    int    `mapstructure:"maxidleconns"`
	ConnMaxLifetime int    `mapstructure:"connmaxlifetime"` // in minutes
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GoogleAPIConfig struct {
	ClientID     string `mapstructure:"clientid"`
	ClientSecret string `mapstructure:"clientsecret"`
	RedirectURI  string `mapstructure:"redirecturi"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type CalendarConfig struct {
	DefaultSyncDays     int           `mapstructure:"defaultsyncdays"`
	TrailingDays        int           `mapstructure:"trailingdays"`
	TokenRefreshBuffer  time.Duration `mapstructure:"tokenrefreshbuffer"`
	StateSecret         string        `mapstructure:"statesecret"`
	StateTTL            time.Duration `mapstructure:"statettl"`
	SyncCron            string        `mapstructure:"synccron"`
	SyncLockTTL         time.Duration `mapstructure:"synclockttl"`
	TokenEncryptionKey  string        `mapstructure:"tokenencryptionkey"`
	WorkdayStartHour    int           `mapstructure:"workdaystarthour"`
	WorkdayEndHour      int           `mapstructure:"workdayendhour"`
	SlotStepMinutes     int           `mapstructure:"slotstepminutes"`
	DefaultTimezone     string        `mapstructure:"defaulttimezone"`
	AllowedRedirectHost string        `mapstructure:"allowedredirecthost"`
}

type ArchiveConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"accesskeyid"`
	SecretAccessKey string `mapstructure:"secretaccesskey"`
	Endpoint        string `mapstructure:"endpoint"`
}

type WorkerConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	instance *Config
	mu       sync.RWMutex
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.env", "development")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "smartschedule")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxopenconns", 25)
	v.SetDefault("database.maxidleconns", 5)
	v.SetDefault("database.connmaxlifetime", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("googleapi.clientid", "")
	v.SetDefault("googleapi.clientsecret", "")
	v.SetDefault("googleapi.redirecturi", "")

	v.SetDefault("jwt.secret", "")

	v.SetDefault("calendar.defaultsyncdays", 30)
	v.SetDefault("calendar.trailingdays", 7)
	v.SetDefault("calendar.tokenrefreshbuffer", 5*time.Minute)
	v.SetDefault("calendar.statesecret", "")
	v.SetDefault("calendar.statettl", 10*time.Minute)
	v.SetDefault("calendar.synccron", "@every 15m")
	v.SetDefault("calendar.synclockttl", 5*time.Minute)
	v.SetDefault("calendar.tokenencryptionkey", "")
	v.SetDefault("calendar.workdaystarthour", 9)
	v.SetDefault("calendar.workdayendhour", 18)
	v.SetDefault("calendar.slotstepminutes", 30)
	v.SetDefault("calendar.defaulttimezone", "UTC")
	v.SetDefault("calendar.allowedredirecthost", "")

	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.accesskeyid", "")
	v.SetDefault("archive.secretaccesskey", "")
	v.SetDefault("archive.endpoint", "")

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.concurrency", 5)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

// Load reads configuration from an optional .env file and the environment.
// Env keys are the upper-cased dotted path with "_" separators, e.g. GOOGLEAPI_CLIENTID.
func Load(envFiles ...string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Calendar.WorkdayStartHour < 0 || c.Calendar.WorkdayEndHour > 24 || c.Calendar.WorkdayStartHour >= c.Calendar.WorkdayEndHour {
		return fmt.Errorf("invalid workday hours: %d-%d", c.Calendar.WorkdayStartHour, c.Calendar.WorkdayEndHour)
	}
	if c.Calendar.DefaultSyncDays <= 0 {
		return fmt.Errorf("calendar.defaultsyncdays must be positive")
	}
	if c.Calendar.SlotStepMinutes <= 0 {
		return fmt.Errorf("calendar.slotstepminutes must be positive")
	}
	return nil
}

// Init loads the configuration and stores it as the process-wide instance.
func Init(envFiles ...string) (*Config, error) {
	cfg, err := Load(envFiles...)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	instance = cfg
	mu.Unlock()
	return cfg, nil
}

func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}

// Set replaces the process-wide instance.
func Set(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}
