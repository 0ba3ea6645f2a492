package fdfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// readFileContent reads an entire local file into memory. Not suitable for
// very large files, but uploads of that size are uncommon for this client.
func readFileContent(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if stat.Size() == 0 {
		return []byte{}, nil
	}

	data := make([]byte, stat.Size())
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// writeFileContent writes data to filename, creating parent directories as
// needed and truncating any existing file.
func writeFileContent(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
