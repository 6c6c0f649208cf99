package driverhub

import (
	"time"

	"github.com/dpup/driverhub/internal/config"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Filename of the standard configuration file.
const ConfigFile = "driverhub.yaml"

// ConfigKeyInfo contains metadata about a known configuration key.
type ConfigKeyInfo = config.KeyInfo

// Config is a global koanf instance holding driverhub's configuration.
//
// Sources, later overriding earlier:
//  1. Auto-discovered driverhub.yaml (in init())
//  2. Environment variables with the DH__ prefix (in init())
//  3. Sources loaded via LoadConfigFile() or LoadConfigDefaults()
//  4. Registered defaults, applied by New() for keys that are still unset
//
// Environment variables map onto keys as follows:
//   - DH__DRIVERS__HOME → drivers.home
//   - DH__DRIVERS__GLOBAL_LIBRARIES → drivers.globalLibraries
//   - DH__SETTINGS__DSN → settings.dsn
var Config = koanf.New(".")

func init() {
	registerCoreConfigKeys()

	if cfg := config.SearchForConfig(ConfigFile, "."); cfg != "" {
		if err := Config.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			panic("error loading config: " + err.Error())
		}
	}

	if err := Config.Load(env.Provider(config.EnvPrefix, ".", config.TransformEnv), nil); err != nil {
		panic("error loading env config: " + err.Error())
	}
}

// RegisterConfigKey documents an application specific key so that it is not
// reported by ValidateConfig.
func RegisterConfigKey(infos ...ConfigKeyInfo) {
	config.Register(infos...)
}

// LoadConfigFile loads additional configuration from a YAML file.
//
//	driverhub.LoadConfigFile("./drivers.yaml")
//	reg, err := driverhub.New()
func LoadConfigFile(path string) {
	if err := Config.Load(file.Provider(path), yaml.Parser()); err != nil {
		panic("error loading config file '" + path + "': " + err.Error())
	}
}

// LoadConfigDefaults loads values that files and env vars loaded later can
// still override.
//
//	driverhub.LoadConfigDefaults(map[string]interface{}{
//	    "drivers.home": "/opt/app/drivers",
//	})
func LoadConfigDefaults(defaults map[string]interface{}) {
	if err := Config.Load(confmap.Provider(defaults, "."), nil); err != nil {
		panic("error loading config defaults: " + err.Error())
	}
}

// ValidateConfig returns a readable report of unknown or deprecated keys, or
// an empty string when the configuration is clean.
func ValidateConfig() string {
	return config.FormatWarnings(config.Validate(Config))
}

// ConfigString returns the string value for the given key.
func ConfigString(key string) string {
	return Config.String(key)
}

// ConfigInt returns the int value for the given key.
func ConfigInt(key string) int {
	return Config.Int(key)
}

// ConfigBool returns the bool value for the given key.
func ConfigBool(key string) bool {
	return Config.Bool(key)
}

// ConfigDuration returns the duration value for the given key. Strings like
// "500ms" or "2s" are parsed.
func ConfigDuration(key string) time.Duration {
	return Config.Duration(key)
}

// ConfigStrings returns the string slice value for the given key.
func ConfigStrings(key string) []string {
	return Config.Strings(key)
}

func registerCoreConfigKeys() {
	config.Register(
		ConfigKeyInfo{
			Key:         "drivers.home",
			Description: "Directory where driver libraries are stored; defaults to <user config dir>/driverhub/drivers",
			Type:        "string",
		},
		ConfigKeyInfo{
			Key:         "drivers.globalLibraries",
			Description: "Libraries loaded once into the shared root loader",
			Type:        "[]string",
		},
		ConfigKeyInfo{
			Key:         "drivers.sources",
			Description: "Mirror directories libraries are fetched from",
			Type:        "[]string",
		},
		ConfigKeyInfo{
			Key:         "drivers.versionCheck",
			Description: "Log when a newer version of a downloadable library is available",
			Type:        "bool",
			Default:     false,
		},
		ConfigKeyInfo{
			Key:         "drivers.archiveMembers",
			Description: "Patterns selecting the members extracted from zip libraries",
			Type:        "[]string",
			Default:     []string{"**/*.jar", "**/*.so", "**/*.dll", "**/*.dylib"},
		},
		ConfigKeyInfo{
			Key:         "drivers.download.retries",
			Description: "Retries for a failed library download",
			Type:        "int",
			Default:     3,
		},
		ConfigKeyInfo{
			Key:         "drivers.download.backoff",
			Description: "Initial backoff between download retries",
			Type:        "duration",
			Default:     "500ms",
		},
		ConfigKeyInfo{
			Key:         "drivers.metadataCacheSize",
			Description: "Number of library dependency lists kept in memory",
			Type:        "int",
			Default:     256,
		},
		ConfigKeyInfo{
			Key:         "settings.driver",
			Description: "Settings store: memory, sqlite or postgres",
			Type:        "string",
			Default:     "memory",
		},
		ConfigKeyInfo{
			Key:         "settings.dsn",
			Description: "Data source name for the sqlite or postgres settings store",
			Type:        "string",
		},
		ConfigKeyInfo{
			Key:         "settings.table",
			Description: "Table holding settings entries",
			Type:        "string",
			Default:     "driverhub_settings",
		},
		ConfigKeyInfo{
			Key:         "license.actor",
			Description: "Name recorded with license acceptances; defaults to the OS user",
			Type:        "string",
		},
	)
}
