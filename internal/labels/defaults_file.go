package labels

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// defaultsFile is the on-disk shape of an optional per-deployment
// defaults file (".dnssync.toml"), letting an operator set a
// cluster-wide default for fields containers don't declare explicitly.
type defaultsFile struct {
	Force bool `toml:"force"`
}

// LoadDefaultsFile reads a TOML label-defaults file at path. A missing
// file is not an error; it yields the zero Defaults.
func LoadDefaultsFile(path string) (Defaults, error) {
	if path == "" {
		return Defaults{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Defaults{}, nil
	}

	var f defaultsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Defaults{}, fmt.Errorf("parsing label defaults file %s: %w", path, err)
	}
	return Defaults{Force: f.Force}, nil
}
