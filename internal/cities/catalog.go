package cities

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrEmptyCatalog is returned when a catalog file lists no cities.
var ErrEmptyCatalog = errors.New("city catalog is empty")

type catalogFile struct {
	Cities []string `yaml:"cities"`
}

// LoadCatalog reads the city catalog from path. An empty path selects the
// built-in catalog.
func LoadCatalog(path string) ([]string, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read city catalog: %w", err)
		}
	}

	return parseCatalog(data)
}

func parseCatalog(data []byte) ([]string, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse city catalog: %w", err)
	}

	names := make([]string, 0, len(file.Cities))
	for _, name := range file.Cities {
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, ErrEmptyCatalog
	}

	return names, nil
}
