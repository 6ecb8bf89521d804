package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf holds the whole app configuration. It is loaded once on startup
// from defaults, an optional config/.env.<env> file and environment variables.
var Conf *Config

type (
	Config struct {
		Env      string
		Debug    bool
		TestMode bool
		AppName  string
		Build    string
		WorkDir  string

		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig

		Register   RegisterConfig
		DataChecks DataChecksConfig
	}

	ServerConfig struct {
		Host string
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	// RegisterConfig holds the class register preferences.
	RegisterConfig struct {
		// CarryOver carries over data from the first lesson period to the
		// following empty lesson periods in lessons over multiple periods.
		CarryOver bool
		// BlockPersonalNotesForCancelled blocks adding personal notes for cancelled lessons.
		BlockPersonalNotesForCancelled bool
		// AllowEntriesInHolidays allows teachers to add data for lessons in holidays.
		AllowEntriesInHolidays bool
	}

	// DataChecksConfig holds the data checks preferences.
	DataChecksConfig struct {
		// SendEmails enables notification emails after each checks run.
		SendEmails bool
		// Recipients receive the data checks notification emails.
		Recipients []string
	}
)

func (conf DatabaseConfig) Address() string {
	return conf.Host + ":" + conf.Port
}

func init() {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Alsijil")
	v.SetDefault("build", "dev")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("serverHost", hostname())
	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "alsijil")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseDisableTLS", true)
	v.SetDefault("registerCarryOver", true)
	v.SetDefault("registerBlockPersonalNotesForCancelled", true)
	v.SetDefault("registerAllowEntriesInHolidays", false)
	v.SetDefault("dataChecksSendEmails", false)
	v.SetDefault("dataChecksRecipients", []string{})

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	Conf = &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		WorkDir:          wd,
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host: v.GetString("serverHost"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Name:          v.GetString("databaseName"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			DisableTLS:    v.GetBool("databaseDisableTLS"),
		},
		Register: RegisterConfig{
			CarryOver:                      v.GetBool("registerCarryOver"),
			BlockPersonalNotesForCancelled: v.GetBool("registerBlockPersonalNotesForCancelled"),
			AllowEntriesInHolidays:         v.GetBool("registerAllowEntriesInHolidays"),
		},
		DataChecks: DataChecksConfig{
			SendEmails: v.GetBool("dataChecksSendEmails"),
			Recipients: v.GetStringSlice("dataChecksRecipients"),
		},
	}
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

// DataChecksRecipients parses the configured recipient addresses, skipping invalid ones.
func (conf Config) DataChecksRecipients() []mail.Address {
	addrs := make([]mail.Address, 0, len(conf.DataChecks.Recipients))
	for _, raw := range conf.DataChecks.Recipients {
		addr, err := mail.ParseAddress(CleanString(raw))
		if err != nil {
			log.Print(fmt.Errorf("config: invalid data checks recipient %q: %v", raw, err))
			continue
		}
		addrs = append(addrs, *addr)
	}
	return addrs
}
