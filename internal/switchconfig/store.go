package switchconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nerrad567/klickklack/internal/infrastructure/mqtt"
)

// persistTimeout bounds a snapshot write issued from Loop.
const persistTimeout = 5 * time.Second

// Logger is the logging interface used by the store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the subset of the MQTT client the store needs.
type Transport interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// ChangeHandler receives every applied mapping. Each call gets its own copy.
type ChangeHandler func(Mapping)

// StoreOptions configures a Store. Only Defaults is required.
type StoreOptions struct {
	// Defaults is the built-in mapping used when nothing else is available.
	Defaults Mapping

	// Repository persists applied mappings across restarts.
	Repository Repository

	// Transport and ConfigTopic enable remote updates.
	Transport   Transport
	ConfigTopic string
	QoS         byte

	// LocalFile is a JSON or YAML mapping file, watched for changes.
	LocalFile string

	Logger Logger
}

// Store holds the current switch mapping and its sources.
//
// Thread Safety: remote payloads and file events arrive on other goroutines
// but are only buffered there. Parsing, persisting and notifying happen in
// Setup and Loop, which run on the scheduler goroutine.
type Store struct {
	defaults    Mapping
	repo        Repository
	transport   Transport
	configTopic string
	qos         byte
	localFile   string
	logger      Logger

	mu        sync.Mutex
	current   Mapping
	ready     bool
	handlers  []ChangeHandler
	remote    []byte
	hasRemote bool

	watcher     *fsnotify.Watcher
	fileChanged chan struct{}
	wg          sync.WaitGroup
}

// NewStore creates a Store. Call Setup before use.
func NewStore(opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = Mapping{}
	}

	return &Store{
		defaults:    defaults.Clone(),
		repo:        opts.Repository,
		transport:   opts.Transport,
		configTopic: opts.ConfigTopic,
		qos:         opts.QoS,
		localFile:   opts.LocalFile,
		logger:      logger,
		current:     Mapping{},
		fileChanged: make(chan struct{}, 1),
	}
}

// Setup builds the effective mapping and starts listening for updates.
//
// Precedence, lowest first: defaults, the persisted snapshot, the local file.
// Handlers registered so far are notified once with the result.
//
// Parameters:
//   - ctx: Context for the snapshot read
//
// Returns:
//   - error: If the snapshot cannot be read, the watcher cannot start, or the
//     config topic subscription fails
func (s *Store) Setup(ctx context.Context) error {
	mapping := s.defaults.Clone()
	source := "defaults"

	if s.repo != nil {
		snap, err := s.repo.Load(ctx)
		switch {
		case err == nil:
			mapping, source = snap, "snapshot"
		case errors.Is(err, ErrNoSnapshot):
		default:
			return fmt.Errorf("loading switch config snapshot: %w", err)
		}
	}

	if s.localFile != "" {
		m, err := s.readLocalFile()
		switch {
		case err == nil:
			mapping, source = m, "file"
			s.persist(m)
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Debug("switch config file not present", "path", s.localFile)
		default:
			s.logger.Warn("ignoring invalid switch config file", "path", s.localFile, "error", err)
		}

		if err := s.startWatcher(); err != nil {
			return fmt.Errorf("watching %s: %w", s.localFile, err)
		}
	}

	if s.transport != nil && s.configTopic != "" {
		if err := s.transport.Subscribe(s.configTopic, s.qos, s.handleRemote); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.configTopic, err)
		}
	}

	s.mu.Lock()
	s.current = mapping.Clone()
	s.ready = true
	handlers := append([]ChangeHandler(nil), s.handlers...)
	s.mu.Unlock()

	s.notify(handlers, mapping)
	s.logger.Info("switch config loaded", "source", source, "switches", len(mapping))
	s.warnInvalid(mapping, source)
	return nil
}

// SubscribeToConfigChange registers handler for every applied mapping.
// After Setup has run, handler is also called once, immediately, with the
// current mapping.
func (s *Store) SubscribeToConfigChange(handler ChangeHandler) {
	if handler == nil {
		return
	}

	s.mu.Lock()
	s.handlers = append(s.handlers, handler)
	ready := s.ready
	current := s.current.Clone()
	s.mu.Unlock()

	if ready {
		handler(current)
	}
}

// Loop applies pending updates: a changed local file first, then the latest
// remote payload. It never blocks. A document that cannot be decoded is
// rejected and returned as an error; the previous mapping stays. Invalid
// entries inside a decodable document are applied and logged.
func (s *Store) Loop() error {
	s.mu.Lock()
	payload, hasRemote := s.remote, s.hasRemote
	s.remote, s.hasRemote = nil, false
	s.mu.Unlock()

	var errs []error

	select {
	case <-s.fileChanged:
		m, err := s.readLocalFile()
		if err != nil {
			errs = append(errs, fmt.Errorf("switch config file %s rejected: %w", s.localFile, err))
		} else {
			s.apply(m, "file")
		}
	default:
	}

	if hasRemote {
		m, err := ParseMapping(payload, FormatJSON)
		if err != nil {
			errs = append(errs, fmt.Errorf("remote switch config rejected: %w", err))
		} else {
			s.apply(m, "remote")
		}
	}

	return errors.Join(errs...)
}

// Current returns a copy of the current mapping.
func (s *Store) Current() Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Close stops the file watcher, if any.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.wg.Wait()
	s.watcher = nil
	if err != nil {
		return fmt.Errorf("closing watcher: %w", err)
	}
	return nil
}

// handleRemote keeps only the latest payload; Loop applies it.
func (s *Store) handleRemote(_ string, payload []byte) error {
	s.mu.Lock()
	s.remote = append([]byte(nil), payload...)
	s.hasRemote = true
	s.mu.Unlock()
	return nil
}

// apply installs m, persists it and notifies handlers, unless nothing changed.
func (s *Store) apply(m Mapping, source string) {
	s.mu.Lock()
	if s.current.Equal(m) {
		s.mu.Unlock()
		s.logger.Debug("switch config unchanged", "source", source)
		return
	}
	s.current = m.Clone()
	handlers := append([]ChangeHandler(nil), s.handlers...)
	s.mu.Unlock()

	s.persist(m)
	s.notify(handlers, m)
	s.logger.Info("switch config applied", "source", source, "switches", len(m))
	s.warnInvalid(m, source)
}

// warnInvalid logs entries that will fail at pulse time and are not persisted.
func (s *Store) warnInvalid(m Mapping, source string) {
	if _, err := m.Resolve(); err != nil {
		s.logger.Warn("switch config has invalid entries", "source", source, "error", err)
	}
}

// persist writes the snapshot. A failed write keeps the in-memory mapping.
// Invalid entries are not stored.
func (s *Store) persist(m Mapping) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.repo.Save(ctx, m); err != nil {
		s.logger.Error("persisting switch config failed", "error", err)
	}
}

func (s *Store) notify(handlers []ChangeHandler, m Mapping) {
	for _, h := range handlers {
		h(m.Clone())
	}
}

func (s *Store) readLocalFile() (Mapping, error) {
	data, err := os.ReadFile(s.localFile)
	if err != nil {
		return nil, err
	}
	return ParseMapping(data, FormatForPath(s.localFile))
}

// startWatcher watches the file's directory so editor renames are seen.
func (s *Store) startWatcher() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.localFile)); err != nil {
		_ = w.Close()
		return err
	}
	s.watcher = w

	name := filepath.Base(s.localFile)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case s.fileChanged <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("switch config watcher error", "error", err)
			}
		}
	}()

	return nil
}
