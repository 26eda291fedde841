package config

const (
	defaultConfigPath            = "~/.config/libconv/config.toml"
	defaultLibraryPath           = "/calibre-library"
	defaultCalibredbBinary       = "calibredb"
	defaultCatalogTimeoutSeconds = 120
	defaultTargetFormat          = "epub"
	defaultTimeoutSeconds        = 300
	defaultConverterBinary       = "ebook-convert"
	defaultLockFile              = "~/.local/share/libconv/libconv.lock"
	defaultSchedule              = "0 3 * * *"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogDir                = "~/.local/share/libconv/logs"
)

// defaultSourceFormats is the preference order for conversion sources. PDF is
// left out because its text extraction converts poorly.
var defaultSourceFormats = []string{"mobi", "azw3", "azw", "djvu", "txt", "rtf"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Library: Library{
			Path:                  defaultLibraryPath,
			CalibredbBinary:       defaultCalibredbBinary,
			CatalogTimeoutSeconds: defaultCatalogTimeoutSeconds,
		},
		Conversion: Conversion{
			TargetFormat:    defaultTargetFormat,
			SourceFormats:   append([]string(nil), defaultSourceFormats...),
			TimeoutSeconds:  defaultTimeoutSeconds,
			ConverterBinary: defaultConverterBinary,
		},
		Run: Run{
			LockFile: defaultLockFile,
			Schedule: defaultSchedule,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			Dir:    defaultLogDir,
		},
	}
}
