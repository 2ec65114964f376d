package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/genjishimada/dispatch-core/internal/notifications"
)

func TestTerminalGuard(t *testing.T) {
	// the guard every job UPDATE carries; it is what keeps terminal rows
	// frozen at the database, so its shape is part of the contract
	assert.Equal(t, ` AND status NOT IN ('succeeded', 'failed', 'timeout')`, terminalGuard)

	for _, status := range notifications.JobStatuses {
		quoted := "'" + string(status) + "'"
		if status.Terminal() {
			assert.Contains(t, terminalGuard, quoted)
		} else {
			assert.False(t, strings.Contains(terminalGuard, quoted),
				"non-terminal status %s must stay updatable", status)
		}
	}
}
