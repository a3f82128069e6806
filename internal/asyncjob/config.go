package asyncjob

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the dial configuration for the render job Temporal client.
type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	DialTimeout time.Duration
	DialMaxWait time.Duration
}

func LoadConfigFromEnv() Config {
	return Config{
		Address:        strings.TrimSpace(os.Getenv("TEMPORAL_ADDRESS")),
		Namespace:      stringOr(os.Getenv("TEMPORAL_NAMESPACE"), "timeline-core"),
		TaskQueue:      stringOr(os.Getenv("TEMPORAL_TASK_QUEUE"), "timeline-render"),
		ClientCertPath: strings.TrimSpace(os.Getenv("TEMPORAL_CLIENT_CERT_PATH")),
		ClientKeyPath:  strings.TrimSpace(os.Getenv("TEMPORAL_CLIENT_KEY_PATH")),
		ClientCAPath:   strings.TrimSpace(os.Getenv("TEMPORAL_CLIENT_CA_PATH")),
		DialTimeout:    durationSecondsFromEnv("TEMPORAL_DIAL_TIMEOUT_SECONDS", 5),
		DialMaxWait:    durationSecondsFromEnv("TEMPORAL_DIAL_MAX_WAIT_SECONDS", 60),
	}
}

func stringOr(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}

func durationSecondsFromEnv(key string, defSeconds int) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Duration(defSeconds) * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return time.Duration(defSeconds) * time.Second
	}
	return time.Duration(n) * time.Second
}
