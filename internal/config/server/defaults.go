package server

import "github.com/spf13/viper"

// DefaultExtensions lists the file extensions tracked by the library
var DefaultExtensions = []string{"png", "jpg", "jpeg", "gif", "webp", "mp4", "webm"}

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Metadata: MetadataServerConfig{
			Type: "sqlite",
			SQLite: MetadataSQLiteConfig{
				Path:     "imgtag.db",
				LogLevel: "silent",
			},
		},

		Library: LibraryServerConfig{
			Directories: []string{},
			Extensions:  append([]string(nil), DefaultExtensions...),
			Recursive:   true,
			ScanOnStart: true,
			AutoTag:     false,
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)
	viper.SetDefault("metadata.sqlite.log_level", defaults.Metadata.SQLite.LogLevel)

	viper.SetDefault("library.directories", defaults.Library.Directories)
	viper.SetDefault("library.extensions", defaults.Library.Extensions)
	viper.SetDefault("library.recursive", defaults.Library.Recursive)
	viper.SetDefault("library.scan_on_start", defaults.Library.ScanOnStart)
	viper.SetDefault("library.auto_tag", defaults.Library.AutoTag)
}
