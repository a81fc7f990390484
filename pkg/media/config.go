package media

import (
	"fmt"
	"strings"

	"github.com/jacktea/massmedia/pkg/digest"
	"github.com/jacktea/massmedia/pkg/xerrors"
)

// DefaultWebDirName is the publicly served directory the upload dir lives in.
const DefaultWebDirName = "web"

// Config holds the store settings. The mapstructure tags match the keys the
// CLI reads through viper.
type Config struct {
	HashAlgorithm string `mapstructure:"hash_algo"`
	ShardDepth    int    `mapstructure:"folder_depth"`
	ShardWidth    int    `mapstructure:"folder_chars"`
	UploadDir     string `mapstructure:"upload_dir"`
	WebDirName    string `mapstructure:"web_dir_name"`
	RootDir       string `mapstructure:"root_dir"`
}

// DefaultConfig returns sha1 names sharded two levels deep, two characters per level.
func DefaultConfig() Config {
	return Config{
		HashAlgorithm: "sha1",
		ShardDepth:    2,
		ShardWidth:    2,
		WebDirName:    DefaultWebDirName,
	}
}

// Validate checks every constraint New enforces, without touching the filesystem.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HashAlgorithm) == "" {
		return configError("hash_algo", "is required")
	}
	if !digest.Supported(c.HashAlgorithm) {
		return configError("hash_algo", fmt.Sprintf("%q is not a supported hash algorithm", c.HashAlgorithm))
	}
	if c.ShardDepth < 0 {
		return configError("folder_depth", "must be >= 0")
	}
	if c.ShardWidth < 0 {
		return configError("folder_chars", "must be >= 0")
	}
	n, err := digest.ProbeLength(c.HashAlgorithm)
	if err != nil {
		return configError("hash_algo", err.Error())
	}
	if c.ShardDepth*c.ShardWidth > n {
		return configError("folder_depth", fmt.Sprintf(
			"folder_depth * folder_chars (%d) cannot be greater than the %d characters produced by %s",
			c.ShardDepth*c.ShardWidth, n, c.HashAlgorithm))
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return configError("upload_dir", "is required")
	}
	if strings.TrimSpace(c.WebDirName) == "" {
		return configError("web_dir_name", "cannot be empty")
	}
	if strings.TrimSpace(c.RootDir) == "" {
		return configError("root_dir", "cannot be empty")
	}
	return nil
}

func configError(key, msg string) error {
	return xerrors.Wrap(xerrors.KindConfig, "media.Config", "", fmt.Errorf("%s %s", key, msg))
}
