package storage

// MinIOConfig holds the object storage connection settings for avatar
// mirroring. An empty Endpoint disables the feature.
type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	Bucket        string
	PublicBaseURL string
}
