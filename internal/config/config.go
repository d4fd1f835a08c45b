package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string           `yaml:"discord_token"`
	DatabaseDSN   string           `yaml:"database_dsn"`
	LogLevel      string           `yaml:"log_level"`
	WeatherAPIKey string           `yaml:"weather_api_key"`
	OwnerIDs      []string         `yaml:"owner_ids"`
	Health        HealthConfig     `yaml:"health"`
	Suspension    SuspensionConfig `yaml:"suspension"`
	Embeds        EmbedColors      `yaml:"embed_colors"`
	BannedWords   []string         `yaml:"banned_words"`
	Cities        []string         `yaml:"cities"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type SuspensionConfig struct {
	DurationSeconds      int    `yaml:"duration_seconds"`
	SweepSeconds         int    `yaml:"sweep_seconds"`
	WaitingRoomGuildID   string `yaml:"waiting_room_guild_id"`
	WaitingRoomChannelID string `yaml:"waiting_room_channel_id"`
}

type EmbedColors struct {
	Success int `yaml:"success"`
	Error   int `yaml:"error"`
	Info    int `yaml:"info"`
}

func DefaultConfig() Config {
	return Config{
		DatabaseDSN: "/data/tess.db",
		LogLevel:    "info",
		Health:      HealthConfig{Enabled: false, Addr: ":8080"},
		Suspension: SuspensionConfig{
			DurationSeconds: 60,
			SweepSeconds:    30,
		},
		Embeds: EmbedColors{
			Success: 0x00FF00,
			Error:   0xFF0000,
			Info:    0x4B0082,
		},
		BannedWords: []string{
			"roblox",
			"skibiki",
			"skibidi",
			"gay",
			"bebou",
			"quoicu",
			"noirs",
			"arabes",
			"nupes",
			"skibi",
			"bi",
			"melenchon",
			"macron",
			"lfi",
			"trans",
			"transidentite",
			"fury",
			"furys",
			"asterion",
			"punisher",
			"immigre",
			"immigré",
			"immigrée",
			"immigrés",
			"immigrées",
			"immigration",
			"immigrante",
		},
		Cities: []string{
			"New York",
			"Los Angeles",
			"Chicago",
			"San Francisco",
			"Paris",
			"Marseille",
			"Lyon",
			"Toulouse",
			"Nice",
			"Nantes",
			"Strasbourg",
			"Montpellier",
			"Bordeaux",
			"Lille",
			"Rennes",
			"Reims",
			"Saint-Étienne",
			"Toulon",
			"Angers",
			"Grenoble",
			"Dijon",
			"Aix-en-Provence",
			"Rive de Gier",
			"Saint-Chamond",
			"Villeurbanne",
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("BOT_TOKEN is required")
	}
	if cfg.Suspension.DurationSeconds <= 0 {
		cfg.Suspension.DurationSeconds = 60
	}
	if cfg.Suspension.SweepSeconds <= 0 {
		cfg.Suspension.SweepSeconds = 30
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("BOT_TOKEN", cfg.DiscordToken)
	cfg.DatabaseDSN = envString("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.WeatherAPIKey = envString("OPENWEATHERMAP_API_KEY", cfg.WeatherAPIKey)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Suspension.DurationSeconds = envInt("SUSPENSION_SECONDS", cfg.Suspension.DurationSeconds)
	cfg.Suspension.SweepSeconds = envInt("SWEEP_SECONDS", cfg.Suspension.SweepSeconds)
	cfg.Suspension.WaitingRoomGuildID = envString("WAITING_ROOM_GUILD_ID", cfg.Suspension.WaitingRoomGuildID)
	cfg.Suspension.WaitingRoomChannelID = envString("WAITING_ROOM_CHANNEL_ID", cfg.Suspension.WaitingRoomChannelID)
	if owners := os.Getenv("OWNER_IDS"); owners != "" {
		cfg.OwnerIDs = splitList(owners)
	}
	if words := os.Getenv("BANNED_WORDS"); words != "" {
		cfg.BannedWords = splitList(words)
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
