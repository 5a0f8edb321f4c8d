package backend

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrMisconfigured is returned when a config lacks required values or has broken ones.
var ErrMisconfigured = errors.New("misconfigured")

// LoadBackendConfig reads and seals the config file at filepath.
func LoadBackendConfig(filepath string) (*BackendConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

// Unmarshal parses and seals the config.
//
// "${NAME}" in the content is replaced with the environment variable NAME before parsing,
// so secrets (e.g. the database password) can be kept out of the file.
// "$$" is a literal "$".
//
// Misconfigurations are reported as ErrMisconfigured with the path to the value.
func Unmarshal(conf []byte) (out *BackendConfig, err error) {
	expanded := os.Expand(string(conf), func(name string) string {
		if name == "$" {
			return "$"
		}
		return os.Getenv(name)
	})

	var m *BackendConfigMarshall
	if err := yaml.Unmarshal([]byte(expanded), &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = &BackendConfigMarshall{}
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		out = nil
		if e, ok := r.(error); ok {
			err = fmt.Errorf("%w: %w", ErrMisconfigured, e)
		} else {
			err = fmt.Errorf("%w: %v", ErrMisconfigured, r)
		}
	}()
	return TrySeal(m), nil
}
