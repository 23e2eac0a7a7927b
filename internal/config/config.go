package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	// Escalation monitor schedule and aging-tier multipliers.
	EscalationCron     string
	EscalationWatch    float64
	EscalationWarning  float64
	EscalationCritical float64

	// Optional external subject registry (inventory/vehicle database).
	SubjectDBType  string // "postgresql" or "mysql"
	SubjectDBDSN   string
	SubjectDBTable string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "dealerflow"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "dealerflow"),

		EscalationCron:     getEnv("ESCALATION_CRON", "@hourly"),
		EscalationWatch:    getEnvFloat("ESCALATION_WATCH", 1.0),
		EscalationWarning:  getEnvFloat("ESCALATION_WARNING", 1.5),
		EscalationCritical: getEnvFloat("ESCALATION_CRITICAL", 2.0),

		SubjectDBType:  getEnv("SUBJECT_DB_TYPE", "postgresql"),
		SubjectDBDSN:   getEnv("SUBJECT_DB_DSN", ""),
		SubjectDBTable: getEnv("SUBJECT_DB_TABLE", "vehicles"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Invalid float for %s, using default %v", key, fallback)
	}
	return fallback
}
