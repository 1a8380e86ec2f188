package daemon

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// ErrStartTimeout is returned when a spawned daemon never registers.
var ErrStartTimeout = errors.New("daemon did not register in time")

// ServeArgs returns the arguments of the hidden serve command.
func ServeArgs(configPath string) []string {
	args := []string{"serve"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return args
}

// StartDaemon spawns `submon serve` detached from the parent process.
func StartDaemon(configPath string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	return StartDaemonWithPath(executable, configPath)
}

// StartDaemonWithPath spawns the daemon from a specific binary.
func StartDaemonWithPath(binaryPath, configPath string) error {
	cmd := exec.Command(binaryPath, ServeArgs(configPath)...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached, the daemon logs to files
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// WaitForDaemon polls the registry until a live daemon is registered.
func WaitForDaemon(registry domain.DaemonRegistry, timeout, interval time.Duration) (*domain.RegistryEntry, error) {
	deadline := time.Now().Add(timeout)
	for {
		if alive, err := registry.IsAlive(); err == nil && alive {
			return registry.GetAll()
		}
		if time.Now().After(deadline) {
			return nil, ErrStartTimeout
		}
		time.Sleep(interval)
	}
}
