package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModeRelease = "release"
	ModeDebug   = "debug"

	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Settings is everything the process reads from the environment.
type Settings struct {
	Mode        string
	Port        string
	StoreDriver string

	MongoURI string
	MongoDB  string

	JWTSecret string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	MailCC       []string

	RedisAddr     string
	RedisPassword string

	Timezone       string
	OverdueSweepAt string
	CORSOrigins    []string
	MetricsAllow   []string

	NotifyWorkers     int
	NotifyQueueSize   int
	NotifyMaxAttempts int
	NotifyBackoff     time.Duration
}

// LoadEnv reads .env when present. A missing file is not an error; the
// process environment is used as is.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func Load() Settings {
	return Settings{
		Mode:        get("MODE", ModeRelease),
		Port:        get("PORT", "1414"),
		StoreDriver: strings.ToLower(get("STORE_DRIVER", DriverMongo)),

		MongoURI: get("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:  get("MONGO_DB", "scilems"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getInt("SMTP_PORT", 465),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     get("MAIL_FROM", os.Getenv("SMTP_USER")),
		MailCC:       list(os.Getenv("MAIL_CC")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		Timezone:       get("TIMEZONE", "Asia/Manila"),
		OverdueSweepAt: get("OVERDUE_SWEEP_AT", "00:00"),
		CORSOrigins:    list(get("CORS_ORIGINS", "http://localhost:3000")),
		MetricsAllow:   list(os.Getenv("METRICS_ALLOW")),

		NotifyWorkers:     getInt("NOTIFY_WORKERS", 2),
		NotifyQueueSize:   getInt("NOTIFY_QUEUE_SIZE", 256),
		NotifyMaxAttempts: getInt("NOTIFY_MAX_ATTEMPTS", 3),
		NotifyBackoff:     getDuration("NOTIFY_BACKOFF", 500*time.Millisecond),
	}
}

func (s Settings) Release() bool { return s.Mode != ModeDebug }

// MailEnabled reports whether enough SMTP settings exist to send email.
func (s Settings) MailEnabled() bool {
	return s.SMTPHost != "" && s.MailFrom != ""
}

func (s Settings) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

func get(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getInt(k string, def int) int {
	n, err := strconv.Atoi(get(k, ""))
	if err != nil {
		return def
	}
	return n
}

func getDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(get(k, ""))
	if err != nil {
		return def
	}
	return d
}

func list(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
