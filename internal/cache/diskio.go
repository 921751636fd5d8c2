package cache

import (
	"errors"
	"os"
)

// readIfExists returns the file contents, or (nil, nil) if the file does
// not exist.
func readIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
