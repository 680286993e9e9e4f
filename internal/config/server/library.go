package server

// LibraryServerConfig controls which files are ingested and how
type LibraryServerConfig struct {
	Directories []string `mapstructure:"directories"   yaml:"directories"`
	Extensions  []string `mapstructure:"extensions"    yaml:"extensions"`
	Recursive   bool     `mapstructure:"recursive"     yaml:"recursive"`
	ScanOnStart bool     `mapstructure:"scan_on_start" yaml:"scan_on_start"`
	AutoTag     bool     `mapstructure:"auto_tag"      yaml:"auto_tag"`
}
