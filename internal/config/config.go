package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/spf13/viper"
)

// Recovery modes applied when a fresh background process comes up.
const (
	QueueInitNone      = "none"
	QueueInitRestore   = "restore"
	QueueInitRecommend = "recommend"
)

// Config holds application configuration
type Config struct {
	// Directory for the socket, error logs, and durable state
	SettingDir string

	// Audio decoding backend the background process loads
	NativeModule string

	// Bitrate tier: 128000, 192000, 320000 or 999000
	MusicQuality int

	// Cache size limit in MiB
	MusicCacheSize int

	HTTPSAPI  bool
	Foreign   bool
	Proxy     string
	StrictSSL bool

	// Decode audio in the client instead of the background process
	Wasm bool

	// What to do with the queue after spawning a background process
	QueueInit string

	// front or rotate
	ShiftMode string

	// Discord application ID for Rich Presence (empty disables it)
	DiscordAppID string

	LogLevel string

	// Output format template for the now command
	OutputFormat string

	// Fixed display width for the now command (0 disables padding)
	OutputWidth      int
	MarqueeEnabled   bool
	MarqueeSpeed     int // columns per second
	MarqueeSeparator string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	v.SetDefault("setting_dir", filepath.Join(getDataDir(), "cloudmusic"))
	v.SetDefault("native_module", defaultNativeModule())
	v.SetDefault("music_quality", 192000)
	v.SetDefault("music_cache_size", 4096)
	v.SetDefault("https_api", true)
	v.SetDefault("foreign", false)
	v.SetDefault("strict_ssl", true)
	v.SetDefault("wasm", false)
	v.SetDefault("queue_init", QueueInitNone)
	v.SetDefault("shift_mode", "front")
	v.SetDefault("log_level", "info")
	v.SetDefault("output_format", "{{.Artist}} - {{.Name}}")
	v.SetDefault("output_width", 0)
	v.SetDefault("marquee_enabled", false)
	v.SetDefault("marquee_speed", 2)
	v.SetDefault("marquee_separator", " • ")

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	v.SetEnvPrefix("CLOUDMUSIC")
	v.AutomaticEnv()

	cfg := &Config{
		SettingDir:     v.GetString("setting_dir"),
		NativeModule:   v.GetString("native_module"),
		MusicQuality:   v.GetInt("music_quality"),
		MusicCacheSize: v.GetInt("music_cache_size"),
		HTTPSAPI:       v.GetBool("https_api"),
		Foreign:        v.GetBool("foreign"),
		Proxy:          v.GetString("proxy"),
		StrictSSL:      v.GetBool("strict_ssl"),
		Wasm:           v.GetBool("wasm"),
		QueueInit:      v.GetString("queue_init"),
		ShiftMode:      v.GetString("shift_mode"),
		DiscordAppID:   v.GetString("discord_app_id"),
		LogLevel:       v.GetString("log_level"),

		OutputFormat:     v.GetString("output_format"),
		OutputWidth:      v.GetInt("output_width"),
		MarqueeEnabled:   v.GetBool("marquee_enabled"),
		MarqueeSpeed:     v.GetInt("marquee_speed"),
		MarqueeSeparator: v.GetString("marquee_separator"),
	}

	return cfg, nil
}

// SocketPath is where the background process listens.
func (c *Config) SocketPath() string {
	return socketPath(c.SettingDir)
}

func socketPath(dir string) string {
	return filepath.Join(dir, "cloudmusic.sock")
}

// StatePath is the client's durable key/value store.
func (c *Config) StatePath() string {
	return filepath.Join(c.SettingDir, "state.db")
}

// ResolveProxy returns the configured proxy, falling back to HTTPS_PROXY and
// then HTTP_PROXY.
func (c *Config) ResolveProxy() string {
	if c.Proxy != "" {
		return c.Proxy
	}
	if p := os.Getenv("HTTPS_PROXY"); p != "" {
		return p
	}
	return os.Getenv("HTTP_PROXY")
}

// Spawn builds the background process configuration. Volume and speed come
// from durable state rather than config.
func (c *Config) Spawn(volume int, speed float64) Spawn {
	return Spawn{
		SettingDir:     c.SettingDir,
		NativeModule:   c.NativeModule,
		Volume:         volume,
		Speed:          speed,
		Wasm:           c.Wasm,
		MusicQuality:   c.MusicQuality,
		MusicCacheSize: c.MusicCacheSize,
		HTTPSAPI:       c.HTTPSAPI,
		Foreign:        c.Foreign,
		Proxy:          c.ResolveProxy(),
		StrictSSL:      c.StrictSSL,
	}
}

// Spawn is everything a background process is told at startup, passed as
// CM_* environment variables.
type Spawn struct {
	SettingDir     string
	NativeModule   string
	Volume         int
	Speed          float64
	Wasm           bool
	MusicQuality   int
	MusicCacheSize int
	HTTPSAPI       bool
	Foreign        bool
	Proxy          string
	StrictSSL      bool
}

// Env renders s as KEY=value pairs.
func (s Spawn) Env() []string {
	env := []string{
		"CM_SETTING_DIR=" + s.SettingDir,
		"CM_NATIVE_MODULE=" + s.NativeModule,
		"CM_VOLUME=" + strconv.Itoa(s.Volume),
		"CM_SPEED=" + strconv.FormatFloat(s.Speed, 'f', -1, 64),
		"CM_WASM=" + flag(s.Wasm),
		"CM_MUSIC_QUALITY=" + strconv.Itoa(s.MusicQuality),
		"CM_MUSIC_CACHE_SIZE=" + strconv.Itoa(s.MusicCacheSize),
		"CM_HTTPS_API=" + flag(s.HTTPSAPI),
		"CM_FOREIGN=" + flag(s.Foreign),
		"CM_STRICT_SSL=" + flag(s.StrictSSL),
	}
	if s.Proxy != "" {
		env = append(env, "CM_PROXY="+s.Proxy)
	}
	return env
}

// SocketPath is where the background process listens.
func (s Spawn) SocketPath() string {
	return socketPath(s.SettingDir)
}

// RetainedPath holds the queue the background process keeps across restarts.
func (s Spawn) RetainedPath() string {
	return filepath.Join(s.SettingDir, "retained.json")
}

// LoadSpawn reads the CM_* environment of a background process.
func LoadSpawn() Spawn {
	v := viper.New()
	v.SetEnvPrefix("CM")
	v.AutomaticEnv()

	v.SetDefault("setting_dir", filepath.Join(getDataDir(), "cloudmusic"))
	v.SetDefault("volume", 85)
	v.SetDefault("speed", 1.0)
	v.SetDefault("music_quality", 192000)
	v.SetDefault("music_cache_size", 4096)
	v.SetDefault("https_api", true)
	v.SetDefault("strict_ssl", true)

	return Spawn{
		SettingDir:     v.GetString("setting_dir"),
		NativeModule:   v.GetString("native_module"),
		Volume:         v.GetInt("volume"),
		Speed:          v.GetFloat64("speed"),
		Wasm:           v.GetBool("wasm"),
		MusicQuality:   v.GetInt("music_quality"),
		MusicCacheSize: v.GetInt("music_cache_size"),
		HTTPSAPI:       v.GetBool("https_api"),
		Foreign:        v.GetBool("foreign"),
		Proxy:          v.GetString("proxy"),
		StrictSSL:      v.GetBool("strict_ssl"),
	}
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func defaultNativeModule() string {
	return "media-" + runtime.GOOS + "-" + runtime.GOARCH + ".node"
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "cloudmusic")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

func getDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share")
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	configFile := filepath.Join(getConfigDir(), "config.yaml")

	v.Set("setting_dir", c.SettingDir)
	v.Set("native_module", c.NativeModule)
	v.Set("music_quality", c.MusicQuality)
	v.Set("music_cache_size", c.MusicCacheSize)
	v.Set("https_api", c.HTTPSAPI)
	v.Set("foreign", c.Foreign)
	v.Set("proxy", c.Proxy)
	v.Set("strict_ssl", c.StrictSSL)
	v.Set("wasm", c.Wasm)
	v.Set("queue_init", c.QueueInit)
	v.Set("shift_mode", c.ShiftMode)
	v.Set("discord_app_id", c.DiscordAppID)
	v.Set("log_level", c.LogLevel)
	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("marquee_enabled", c.MarqueeEnabled)
	v.Set("marquee_speed", c.MarqueeSpeed)
	v.Set("marquee_separator", c.MarqueeSeparator)

	return v.WriteConfigAs(configFile)
}
