package lsconfig

import (
	"fmt"
	"log/syslog"
	"os"
	"strings"

	"github.com/andskur/argon2-hashing"
	"gopkg.in/yaml.v3"
)

type Config struct {
	SiteName        string          `yaml:"sitename"`
	Description     string          `yaml:"description"`
	BaseURL         string          `yaml:"baseurl"`
	TrustedProxies  []string        `yaml:"trustedproxies"`
	TrustedPlatform string          `yaml:"trustedplatform"`
	StaticPath      string          `yaml:"staticpath"`
	ContentPath     string          `yaml:"contentpath"`
	Production      bool            `yaml:"production"`
	Listen          ListenConfig    `yaml:"listen"`
	Menu            []MenuItem      `yaml:"menu"`
	User            UserConfig      `yaml:"user"`
	Logger          LoggerConfig    `yaml:"logger"`
	Database        DatabaseConfig  `yaml:"database"`
	Analytics       AnalyticsConfig `yaml:"analytics"`
	Contact         ContactConfig   `yaml:"contact"`
}

type ListenConfig struct {
	Website string `yaml:"website"`
}

type MenuItem struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
	Link  string `yaml:"link"`
}

type UserConfig struct {
	Login string `yaml:"login"`
	Pass  string `yaml:"pass"`
	Hash  string `yaml:"hash"`
}

type LoggerConfig struct {
	Level  string             `yaml:"level"`
	File   LoggerFileConfig   `yaml:"file"`
	Syslog LoggerSyslogConfig `yaml:"syslog"`
}

type LoggerFileConfig struct {
	Enable     bool   `yaml:"enable"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxsize"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAge     int    `yaml:"maxage"`
	Compress   bool   `yaml:"compress"`
}

type LoggerSyslogConfig struct {
	Enable   bool            `yaml:"enable"`
	Protocol string          `yaml:"protocol"`
	Address  string          `yaml:"address"`
	Tag      string          `yaml:"tag"`
	Priority syslog.Priority `yaml:"priority"`
}

type DatabaseConfig struct {
	Db    string      `yaml:"db"`
	Path  string      `yaml:"path"`
	Dsn   string      `yaml:"dsn"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	Db   int    `yaml:"db"`
}

type AnalyticsConfig struct {
	RetentionDays int    `yaml:"retentiondays"`
	GeoDB         string `yaml:"geodb"`
}

type ContactConfig struct {
	CSVPath string `yaml:"csvpath"`
}

// Load charge et valide la configuration YAML.
// Si user.pass est renseigné en clair, il est hashé en argon2 dans
// user.hash et le fichier est réécrit sans le mot de passe.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le fichier %s: %w", filename, err)
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("erreur de parsing YAML: %w", err)
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}

	if conf.User.Pass != "" {
		if len(conf.User.Pass) < 8 {
			return nil, fmt.Errorf("le mot de passe doit contenir au moins 8 caractères")
		}

		hash, err := argon2.GenerateFromPassword([]byte(conf.User.Pass), argon2.DefaultParams)
		if err != nil {
			return nil, err
		}
		conf.User.Hash = string(hash)
		conf.User.Pass = ""
		if err := WriteYaml(filename, &conf); err != nil {
			return nil, err
		}
	}

	return &conf, nil
}

func (conf *Config) validate() error {
	switch conf.Database.Db {
	case "sqlite":
		if conf.Database.Path == "" {
			return fmt.Errorf("database.path ne peut pas être vide")
		}
	case "mysql":
		if conf.Database.Dsn == "" {
			return fmt.Errorf("database.dsn ne peut pas être vide")
		}
	case "":
		return fmt.Errorf("database.db ne peut pas être vide")
	default:
		return fmt.Errorf("le type de database doit etre sqlite ou mysql")
	}

	if conf.Listen.Website == "" {
		conf.Listen.Website = "localhost:8080"
	}
	if strings.HasPrefix(conf.Listen.Website, ":") {
		conf.Listen.Website = "localhost" + conf.Listen.Website
	}

	if conf.Contact.CSVPath == "" {
		conf.Contact.CSVPath = "./messages.csv"
	}

	if conf.Analytics.RetentionDays < 0 {
		return fmt.Errorf("analytics.retentiondays ne peut pas être négatif")
	}

	return nil
}

func WriteYaml(filename string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

// CreateExampleConfig écrit un fichier de configuration exemple.
func CreateExampleConfig(filename string) error {
	example := &Config{
		SiteName:    "Ma Petite Entreprise",
		Description: "Site vitrine propulsé par littlesite",
		BaseURL:     "http://localhost:8080",
		StaticPath:  "./static",
		Production:  false,
		Listen: ListenConfig{
			Website: "0.0.0.0:8080",
		},
		Menu: []MenuItem{
			{Key: "about", Value: "À propos"},
			{Key: "services", Value: "Services"},
			{Key: "contact", Value: "Contact"},
		},
		User: UserConfig{
			Login: "admin",
			Pass:  "admin1234",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Db:   "sqlite",
			Path: "./littlesite.db",
		},
		Analytics: AnalyticsConfig{
			RetentionDays: 0,
		},
		Contact: ContactConfig{
			CSVPath: "./messages.csv",
		},
	}
	return WriteYaml(filename, example)
}
