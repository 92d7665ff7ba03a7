//go:build !unix

package scanexec

import (
	"errors"

	"github.com/recontor/recontor/pkg/storage"
)

// Process-group signaling requires a unix platform; elsewhere the
// controller refuses to spawn so the scan fails with a clear message.
type unsupportedController struct{}

func newDefaultController() ProcessController {
	return unsupportedController{}
}

var errUnsupported = errors.New("external engine execution requires a unix platform")

func (unsupportedController) Spawn(ProcSpec) (storage.ProcessHandle, error) {
	return storage.ProcessHandle{}, errUnsupported
}
func (unsupportedController) Wait(storage.ProcessHandle) error { return errUnsupported }
func (unsupportedController) Signal(int) error                 { return errUnsupported }
func (unsupportedController) ForceKill(int) error              { return errUnsupported }
func (unsupportedController) Alive(int) bool                   { return false }
