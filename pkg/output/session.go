package output

import (
	"os"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

const appID = "falllog"

var (
	hostOnce sync.Once
	hostID   string
)

// HostID returns an app-specific hash of the machine ID, or the hostname
// when the machine ID is unavailable.
func HostID() string {
	hostOnce.Do(func() {
		if id, err := machineid.ProtectedID(appID); err == nil {
			hostID = id
			return
		}
		if name, err := os.Hostname(); err == nil {
			hostID = name
		}
	})
	return hostID
}

// NewSession starts a session for source.
func NewSession(source, configFile string, startedAt time.Time) Session {
	return Session{
		ID:         uuid.NewString(),
		Source:     source,
		Host:       HostID(),
		ConfigFile: configFile,
		StartedAt:  startedAt,
	}
}
