package infra

import (
	"fmt"

	"github.com/eliteGoblin/focusd/sub_mon/internal/config"
	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// OpenSettingsStore opens the configured backend in dataDir.
func OpenSettingsStore(backend, dataDir string) (domain.SettingsStore, error) {
	switch backend {
	case config.StoreEncrypted, "":
		return OpenEncryptedSettingsStore(dataDir)
	case config.StoreFile:
		return NewFileSettingsStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown settings store %q", backend)
	}
}
