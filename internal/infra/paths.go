package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const AppName = "gridbot"

// GetWorkspaceDir returns the root directory for runtime data. A local
// "_workspace" directory takes precedence (portable/dev runs); otherwise
// the OS-standard per-user data directory is used.
func GetWorkspaceDir() string {
	const localDir = "_workspace"
	if _, err := os.Stat(localDir); err == nil {
		return localDir
	}

	base := osDataDir()
	if base == "" {
		return localDir
	}
	return filepath.Join(base, AppName)
}

// osDataDir returns the platform user-data root, empty when unknown.
func osDataDir() string {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("APPDATA"); dir != "" {
			return dir
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, "Library", "Application Support")
	case "linux":
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return dir
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".local", "share")
	default:
		return ""
	}
}

// EnsureDir creates the directory (and parents) with 0755 permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// CreateLockFile guards against two bots trading the same workspace: a
// second process placing the same orders would corrupt the grid state.
// Creation is exclusive; the returned func removes the lock.
func CreateLockFile(workDir string) (func(), error) {
	lockPath := filepath.Join(workDir, "instance.lock")

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another instance is already running (lock file exists: %s)", lockPath)
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()

	return func() { os.Remove(lockPath) }, nil
}

// ResolveConfigPath locates config.yaml: the working directory first,
// then the OS per-user config directory.
func ResolveConfigPath() string {
	defaultPath := filepath.Join("configs", "config.yaml")
	if _, err := os.Stat(defaultPath); err == nil {
		return defaultPath
	}

	if root, err := os.UserConfigDir(); err == nil {
		osPath := filepath.Join(root, AppName, "config.yaml")
		if _, err := os.Stat(osPath); err == nil {
			return osPath
		}
	}

	// Missing files surface as a load error with the default path named.
	return defaultPath
}
