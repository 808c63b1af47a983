// Package session watches the login session for system shutdown so the
// application can enter quitting mode before its windows are torn down.
package session

import (
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/livejar/internal/logger"
)

// logind D-Bus constants
const (
	logindService   = "org.freedesktop.login1"
	logindPath      = "/org/freedesktop/login1"
	logindInterface = "org.freedesktop.login1.Manager"

	prepareForShutdown = logindInterface + ".PrepareForShutdown"
)

// ShutdownWatcher calls a handler when logind announces a shutdown. While
// running it holds a delay inhibitor so the handler can finish first.
type ShutdownWatcher struct {
	conn       *dbus.Conn
	onShutdown func()

	mu       sync.Mutex
	inhibit  *os.File
	started  bool
	stopChan chan struct{}
	done     chan struct{}
	log      *zerolog.Logger
}

// NewShutdownWatcher connects to the system bus
func NewShutdownWatcher(onShutdown func()) (*ShutdownWatcher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	return &ShutdownWatcher{
		conn:       conn,
		onShutdown: onShutdown,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
		log:        logger.WithComponent("session"),
	}, nil
}

// Start subscribes to PrepareForShutdown and takes the first inhibitor lock
func (w *ShutdownWatcher) Start() error {
	if err := w.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember("PrepareForShutdown"),
	); err != nil {
		return fmt.Errorf("failed to add match for PrepareForShutdown: %w", err)
	}
	if err := w.takeInhibitor(); err != nil {
		w.log.Warn().Err(err).Msg("Failed to take shutdown inhibitor, state may not be flushed on shutdown")
	}

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.watchSignals()
	w.log.Debug().Msg("Subscribed to logind PrepareForShutdown signal")
	return nil
}

// Stop ends the watch and releases the bus
func (w *ShutdownWatcher) Stop() {
	select {
	case <-w.stopChan:
		return
	default:
		close(w.stopChan)
	}
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
	w.releaseInhibitor()
	w.conn.Close()
}

func (w *ShutdownWatcher) watchSignals() {
	defer close(w.done)
	signalChan := make(chan *dbus.Signal, 10)
	w.conn.Signal(signalChan)
	defer w.conn.RemoveSignal(signalChan)

	for {
		select {
		case <-w.stopChan:
			return
		case sig := <-signalChan:
			if sig == nil || sig.Name != prepareForShutdown {
				continue
			}
			if starting, ok := shutdownStarting(sig); ok && starting {
				w.log.Info().Msg("System shutdown announced")
				w.onShutdown()
				w.releaseInhibitor()
			} else if ok {
				// shutdown was cancelled; hold a fresh lock for the next one
				if err := w.takeInhibitor(); err != nil {
					w.log.Warn().Err(err).Msg("Failed to retake shutdown inhibitor")
				}
			}
		}
	}
}

func (w *ShutdownWatcher) takeInhibitor() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inhibit != nil {
		return nil
	}

	var fd dbus.UnixFD
	obj := w.conn.Object(logindService, logindPath)
	err := obj.Call(logindInterface+".Inhibit", 0,
		"shutdown", "livejar", "Saving window state", "delay").Store(&fd)
	if err != nil {
		return err
	}
	w.inhibit = os.NewFile(uintptr(fd), "logind-inhibitor")
	return nil
}

func (w *ShutdownWatcher) releaseInhibitor() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inhibit != nil {
		w.inhibit.Close()
		w.inhibit = nil
	}
}

// shutdownStarting extracts the boolean argument of PrepareForShutdown
func shutdownStarting(sig *dbus.Signal) (bool, bool) {
	if len(sig.Body) != 1 {
		return false, false
	}
	starting, ok := sig.Body[0].(bool)
	return starting, ok
}
