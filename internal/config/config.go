package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultServiceID   = "com.example.quiz_application/com.example.quiz_application.AppSwitchAccessibilityService"
	DefaultDestination = "bugs@quizapp.example"
)

type Config struct {
	HTTP struct {
		Bind string `yaml:"bind"`
		Port int    `yaml:"port"`
		TLS  struct {
			Enabled bool   `yaml:"enabled"`
			Cert    string `yaml:"cert"`
			Key     string `yaml:"key"`
		} `yaml:"tls"`
	} `yaml:"http"`
	Auth struct {
		JWTPublicKeys []string `yaml:"jwt_public_keys"` // PEM certificate paths
		Issuer        string   `yaml:"issuer"`
		Audience      string   `yaml:"audience"`
	} `yaml:"auth"`
	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
	AntiCheat struct {
		ServiceID           string   `yaml:"service_id"`
		SettingsFile        string   `yaml:"settings_file"`
		SettingsCommand     []string `yaml:"settings_command"`
		OpenSettingsCommand []string `yaml:"open_settings_command"`
		QueueSize           int      `yaml:"queue_size"`
		Feed                struct {
			URL      string `yaml:"url"` // ws://device-agent:7070/accessibility
			Insecure bool   `yaml:"insecure"`
			Fake     bool   `yaml:"fake"`
		} `yaml:"feed"`
	} `yaml:"anticheat"`
	BugReport struct {
		User        string `yaml:"user"`
		Password    string `yaml:"password"`
		Destination string `yaml:"destination"`
		SMTPHost    string `yaml:"smtp_host"`
		SMTPPort    int    `yaml:"smtp_port"`
		FromName    string `yaml:"from_name"`
	} `yaml:"bugreport"`
	Push struct {
		ProjectID       string `yaml:"project_id"`
		CredentialsFile string `yaml:"credentials_file"` // service account key JSON
		AccessToken     string `yaml:"access_token"`     // fixed token, emulators only
		Endpoint        string `yaml:"endpoint"`
		DryRun          bool   `yaml:"dry_run"`
	} `yaml:"push"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BUGREPORT_USER"); v != "" {
		c.BugReport.User = v
	}
	if v := os.Getenv("BUGREPORT_PASSWORD"); v != "" {
		c.BugReport.Password = v
	}
	if v := os.Getenv("PUSH_ACCESS_TOKEN"); v != "" {
		c.Push.AccessToken = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.Push.CredentialsFile == "" {
		c.Push.CredentialsFile = v
	}
}

func (c *Config) applyDefaults() {
	if c.HTTP.Bind == "" {
		c.HTTP.Bind = "0.0.0.0"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.AntiCheat.ServiceID == "" {
		c.AntiCheat.ServiceID = DefaultServiceID
	}
	if c.AntiCheat.QueueSize == 0 {
		c.AntiCheat.QueueSize = 64
	}
	if c.BugReport.Destination == "" {
		c.BugReport.Destination = DefaultDestination
	}
	if c.BugReport.SMTPHost == "" {
		c.BugReport.SMTPHost = "smtp.gmail.com"
	}
	if c.BugReport.SMTPPort == 0 {
		c.BugReport.SMTPPort = 587
	}
	if c.BugReport.FromName == "" {
		c.BugReport.FromName = "Quiz App"
	}
	if c.Push.Endpoint == "" {
		c.Push.Endpoint = "https://fcm.googleapis.com"
	}
}
