// critical/host.go
package critical

import "sync"

// MutexController emulates the interrupt mask on hosted builds, where the
// "interrupt handler" is a goroutine: masking takes a lock the simulated
// ISR also takes, so the two contexts serialise exactly as hardware would.
//
// Unlike the hardware mask it is not reentrant; core code keeps section
// bodies flat, so nesting never happens on one section.
type MutexController struct {
	mu sync.Mutex
}

func NewMutexController() *MutexController { return &MutexController{} }

func (c *MutexController) Mask() uintptr {
	c.mu.Lock()
	return 0
}

func (c *MutexController) Unmask(uintptr) {
	c.mu.Unlock()
}
