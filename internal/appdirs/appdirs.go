package appdirs

import (
	"os"
	"path/filepath"
)

const (
	appDirName = "dochelper"
)

func DataDir() (string, error) {
	if override := os.Getenv("DOCHELPER_DATA_DIR"); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDirName), nil
}

func DownloadsDir(dataDir string) string {
	return filepath.Join(dataDir, "downloads")
}
