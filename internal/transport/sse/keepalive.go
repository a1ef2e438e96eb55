package sse

import "time"

// KeepAliveWriter abstracts writing one keepalive frame, so the
// ticker loop below is testable without a real HTTP connection.
type KeepAliveWriter interface {
	WriteKeepAlive() error
}

// DefaultKeepAliveInterval is safe for most reverse proxies and edge
// runtimes without tripping their idle-connection timeout.
const DefaultKeepAliveInterval = 10 * time.Second

// runKeepAlive sends a keepalive frame on every tick, from its own
// goroutine, until stop fires or a write fails. The returned channel
// then receives the write error, or nil on a clean stop.
func runKeepAlive(writer KeepAliveWriter, interval time.Duration, stop <-chan struct{}) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					errCh <- err
					return
				}
			case <-stop:
				errCh <- nil
				return
			}
		}
	}()
	return errCh
}
