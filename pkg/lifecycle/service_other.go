//go:build !linux

package lifecycle

import (
	"fmt"
	"runtime"
)

const defaultBinaryPath = "autoads"

// unsupported is used where no service integration exists.
type unsupported struct{}

func newServiceManager() ServiceManager { return unsupported{} }

func (unsupported) Install(ServiceUnit) error {
	return fmt.Errorf("service install is not supported on %s", runtime.GOOS)
}

func (unsupported) Status() string { return "unsupported" }

func (unsupported) Stop() error { return nil }

func (unsupported) Remove() error { return nil }
