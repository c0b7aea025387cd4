package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type DB struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

type NSQ struct {
	NsqdTCPAddr    string // e.g. nsqd:4150
	LookupHTTPAddr string // e.g. http://nsqlookupd:4161
	EventsTopic    string // topic carrying fired domain events
	IngestChannel  string // channel name for ingest consumers
}

type Scheduler struct {
	WorkerID       string        // claim owner; defaults to hostname
	PollInterval   time.Duration // delay between claim cycles
	BatchSize      int           // max deliveries claimed per cycle
	ClaimLease     time.Duration // claims older than this are reclaimable
	BackoffBase    time.Duration // first retry delay
	BackoffCap     time.Duration // retry delay ceiling
	JitterPct      float64       // backoff jitter fraction (0 disables)
	DefaultTimeout time.Duration // attempt timeout when subscriber has none
	HTTPPort       string        // scheduler metrics/health port
}

type API struct {
	HTTPPort     string
	JWTPublicKey string // PEM; empty disables auth on the admin API
	JWTIssuer    string
	JWTAudience  string
}

type Receiver struct {
	FailFirstN      int           // number of requests to fail initially
	Secret          string        // secret for signature verification
	LeewaySeconds   int           // allowed timestamp skew in seconds
	ResponseDelayMS int           // simulated response delay in milliseconds
	Port            string        // server listen port
	ReadTimeout     time.Duration // HTTP read timeout
	WriteTimeout    time.Duration // HTTP write timeout
}

type Config struct {
	AppName   string
	DB        DB
	NSQ       NSQ
	Scheduler Scheduler
	API       API
	Receiver  Receiver
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func defaultWorkerID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "scheduler"
}

func FromEnv() Config {
	return Config{
		AppName: getenv("APP_NAME", "hookline"),
		DB: DB{
			User: getenv("DB_USER", "postgres"),
			Pass: getenv("DB_PASS", "postgres"),
			Host: getenv("DB_HOST", "postgres"),
			Port: getenv("DB_PORT", "5432"),
			Name: getenv("DB_NAME", "hookline"),
		},
		NSQ: NSQ{
			NsqdTCPAddr:    getenv("NSQD_TCP_ADDR", "nsqd:4150"),
			LookupHTTPAddr: getenv("NSQ_LOOKUP_HTTP_ADDR", "http://nsqlookupd:4161"),
			EventsTopic:    getenv("NSQ_EVENTS_TOPIC", "events"),
			IngestChannel:  getenv("NSQ_INGEST_CHANNEL", "ingest"),
		},
		Scheduler: Scheduler{
			WorkerID:       getenv("WORKER_ID", defaultWorkerID()),
			PollInterval:   getenvDuration("POLL_INTERVAL", 3*time.Second),
			BatchSize:      getenvInt("BATCH_SIZE", 100),
			ClaimLease:     getenvDuration("CLAIM_LEASE", 5*time.Minute),
			BackoffBase:    getenvDuration("BACKOFF_BASE", time.Minute),
			BackoffCap:     getenvDuration("BACKOFF_CAP", time.Hour),
			JitterPct:      getenvFloat("BACKOFF_JITTER_PCT", 0),
			DefaultTimeout: getenvDuration("DEFAULT_DELIVERY_TIMEOUT", 15*time.Second),
			HTTPPort:       ":" + getenv("SCHEDULER_HTTP_PORT", "8082"),
		},
		API: API{
			HTTPPort:     getenv("HTTP_PORT", ":8080"),
			JWTPublicKey: getenv("JWT_PUBLIC_KEY", ""),
			JWTIssuer:    getenv("JWT_ISSUER", "hookline"),
			JWTAudience:  getenv("JWT_AUDIENCE", "hookline-admin"),
		},
		Receiver: Receiver{
			FailFirstN:      getenvInt("FAIL_FIRST_N", 0),
			Secret:          getenv("RECEIVER_SECRET", ""),
			LeewaySeconds:   getenvInt("SIGNING_LEEWAY_SECONDS", 300),
			ResponseDelayMS: getenvInt("RESPONSE_DELAY_MS", 0),
			Port:            getenv("RECEIVER_PORT", ":8081"),
			ReadTimeout:     getenvDuration("RECEIVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getenvDuration("RECEIVER_WRITE_TIMEOUT", 10*time.Second),
		},
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB.User, c.DB.Pass, c.DB.Host, c.DB.Port, c.DB.Name)
}
