package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Debug    bool
	TestMode bool
	Env      string // DEV (default) | TEST | QA | PROD
	Build    string
	AppName  string
	WorkDir  string

	SecretKey                 []byte
	FrontendBaseURL           string
	DefaultFromEmail          mail.Address
	SendgridApiKey            string
	RollbarToken              string
	PasswordResetTimeoutDelta time.Duration

	Server struct {
		Host                      string
		Addr                      string
		DebugAddr                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	Database struct {
		URI            string
		Name           string
		ConnectTimeout time.Duration
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	RateLimit struct {
		LoginPerMin int
		ResetPerMin int
		ChatPerMin  int
	}

	Reminder struct {
		CronSpec string
		Window   time.Duration // how far ahead checklist due dates are swept
	}

	Amplify struct {
		BaseURL string
		APIKey  string
		Model   string
		Timeout time.Duration
	}
}

// NewConfig loads the app configuration from defaults, an optional
// config/.env.<env> file and environment variables (in increasing priority).
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Mipango")
	v.SetDefault("secretKey", "w3p!a^0f&f$7sy#kxr@v9*#ah-a1(i#5t8perc2(#yg4h^$ce")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugAddr", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("databaseURI", "mongodb://localhost:27017")
	v.SetDefault("databaseName", "mipango")
	v.SetDefault("databaseConnectTimeout", 10*time.Second)

	v.SetDefault("redisAddr", "")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDB", 0)

	v.SetDefault("rateLimitLoginPerMin", 10)
	v.SetDefault("rateLimitResetPerMin", 5)
	v.SetDefault("rateLimitChatPerMin", 20)

	v.SetDefault("reminderCronSpec", "0 7 * * *") // daily, 07:00 UTC
	v.SetDefault("reminderWindow", 3*24*time.Hour)

	v.SetDefault("amplifyBaseURL", "https://amplify.campus.edu/api/v1")
	v.SetDefault("amplifyApiKey", "")
	v.SetDefault("amplifyModel", "campus-assist-1")
	v.SetDefault("amplifyTimeout", 30*time.Second)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	wd := Getwd()

	// load config/.env.<env> if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:    v.GetBool("debug"),
		TestMode: env == "TEST",
		Env:      env,
		Build:    v.GetString("build"),
		AppName:  v.GetString("appName"),
		WorkDir:  wd,

		SecretKey:                 []byte(v.GetString("secretKey")),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		DefaultFromEmail:          mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}
	conf.Server.Host = v.GetString("serverHost")
	conf.Server.Addr = v.GetString("serverAddr")
	conf.Server.DebugAddr = v.GetString("serverDebugAddr")
	conf.Server.ShutdownTimeout = v.GetDuration("serverShutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("jwtRefreshExpirationDelta")

	conf.Database.URI = v.GetString("databaseURI")
	conf.Database.Name = v.GetString("databaseName")
	conf.Database.ConnectTimeout = v.GetDuration("databaseConnectTimeout")

	conf.Redis.Addr = v.GetString("redisAddr")
	conf.Redis.Password = v.GetString("redisPassword")
	conf.Redis.DB = v.GetInt("redisDB")

	conf.RateLimit.LoginPerMin = v.GetInt("rateLimitLoginPerMin")
	conf.RateLimit.ResetPerMin = v.GetInt("rateLimitResetPerMin")
	conf.RateLimit.ChatPerMin = v.GetInt("rateLimitChatPerMin")

	conf.Reminder.CronSpec = v.GetString("reminderCronSpec")
	conf.Reminder.Window = v.GetDuration("reminderWindow")

	conf.Amplify.BaseURL = v.GetString("amplifyBaseURL")
	conf.Amplify.APIKey = v.GetString("amplifyApiKey")
	conf.Amplify.Model = v.GetString("amplifyModel")
	conf.Amplify.Timeout = v.GetDuration("amplifyTimeout")

	return conf
}
