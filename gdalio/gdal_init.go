package gdalio

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/airbusgeo/godal"
)

var initOnce sync.Once

// InitGdal sets the GDAL environment defaults and registers the
// drivers. It is safe to call more than once.
func InitGdal() {
	initOnce.Do(func() {
		setDefaultEnv("GDAL_PAM_ENABLED", "NO")
		setDefaultEnv("GDAL_DISABLE_READDIR_ON_OPEN", "EMPTY_DIR")
		setDefaultEnv("GDAL_MAX_DATASET_POOL_SIZE", "10")
		setDefaultEnv("GDAL_TIFF_INTERNAL_MASK", "YES")

		exeFilePath, err := os.Executable()
		if err == nil {
			setDefaultEnv("GDAL_DRIVER_PATH", filepath.Dir(exeFilePath))
		}

		godal.RegisterAll()
	})
}

func setDefaultEnv(envVar string, defaultVal string) {
	if _, ok := os.LookupEnv(envVar); !ok {
		os.Setenv(envVar, defaultVal)
	}
}
