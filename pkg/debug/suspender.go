package debug

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/foundry/pkg/log"
)

// AttachInfo describes a freshly created sandbox for a human debugger.
type AttachInfo struct {
	RequestID   string            `json:"requestId"`
	SandboxName string            `json:"sandboxName"`
	Raw         map[string]string `json:"raw"`
}

// Suspender optionally pauses a request after each sandbox creation
// until an operator touches a token file, leaving time to attach tools
// to the still-empty sandbox. With no directory configured it does
// nothing.
type Suspender struct {
	dir string
}

// NewSuspender creates a suspender. An empty dir disables suspension.
func NewSuspender(dir string) *Suspender {
	return &Suspender{dir: dir}
}

// Suspend blocks until the operator touches the generated token path.
func (s *Suspender) Suspend(ctx context.Context, info AttachInfo) error {
	if s.dir == "" {
		return nil
	}
	begin := time.Now()
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	path := filepath.Join(s.dir, token)
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	logger := log.Component("debug")
	logger.Warn().
		RawJSON("attach", data).
		Str("path", path).
		Msg("sandbox is suspended until path is touched")

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := os.Stat(path); err == nil {
				logger := log.Component("debug")
				logger.Info().
					Dur("elapsed", time.Since(begin)).
					Msg("sandbox resumed")
				return nil
			}
		}
	}
}
