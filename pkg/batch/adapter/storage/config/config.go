// Package config holds the settings of a single storage connection.
package config

// StorageConfig holds configuration for a single storage connection, decoded from adapter.storage.<name>.
type StorageConfig struct {
	Type            string `yaml:"type"`             // Type of storage ("local" or "gcs").
	BucketName      string `yaml:"bucket_name"`      // Default bucket name for operations.
	CredentialsFile string `yaml:"credentials_file"` // Path to a service account key for GCS.
	Endpoint        string `yaml:"endpoint"`         // Overrides the GCS endpoint, e.g. for an emulator.
	BaseDir         string `yaml:"base_dir"`         // Base directory for local file system operations.
}
