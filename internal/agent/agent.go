package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	config "github.com/mwantia/imgtag/internal/config/server"
	"github.com/mwantia/imgtag/internal/library"
	"github.com/mwantia/imgtag/internal/metadata"
	"github.com/mwantia/imgtag/pkg/db/store"
	"github.com/mwantia/imgtag/pkg/log"
)

type ImgTagAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup
	ready chan struct{}

	cfg     *config.BaseServerConfig
	sc      *container.ServiceContainer
	log     log.LoggerService
	store   store.LibraryStore
	library *library.Library
	watcher *watcher
}

func NewAgent(cfg *config.BaseServerConfig) *ImgTagAgent {
	return &ImgTagAgent{
		ready: make(chan struct{}),
		cfg:   cfg,
		sc:    container.NewServiceContainer(),
		log:   log.NewLoggerService("imgtag", cfg.Log),
	}
}

// Ready is closed once services are registered and the library directories are watched
func (ita *ImgTagAgent) Ready() <-chan struct{} {
	return ita.ready
}

func (ita *ImgTagAgent) setupServices(ctx context.Context) error {
	errs := container.Errors{}

	ita.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](ita.sc,
		container.With[log.LoggerService](),
		container.WithInstance(ita.log)))

	s, err := store.NewStoreFromConfig(ita.cfg.Metadata)
	if err != nil {
		return fmt.Errorf("failed to create metadata store: %w", err)
	}
	if err := s.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect metadata store: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return fmt.Errorf("failed to migrate metadata store: %w", err)
	}

	ita.log.Debug("Registering 'LibraryStore' (%s)...", ita.cfg.Metadata.Type)
	switch impl := s.(type) {
	case *store.SQLiteStore:
		errs.Add(container.Register[store.SQLiteStore](ita.sc,
			container.With[store.LibraryStore](),
			container.WithInstance(impl)))
	case *store.MemoryStore:
		errs.Add(container.Register[store.MemoryStore](ita.sc,
			container.With[store.LibraryStore](),
			container.WithInstance(impl)))
	}

	if err := errs.Errors(); err != nil {
		s.Close()
		return err
	}

	ok, resolved := ita.sc.ResolveByType(ctx, reflect.TypeOf((*store.LibraryStore)(nil)).Elem())
	if !ok {
		s.Close()
		return fmt.Errorf("failed to resolve LibraryStore: no store service registered")
	}
	ita.store = resolved.(store.LibraryStore)
	ita.library = library.New(ita.store, ita.log.Named("library"), metadata.NewPNGExtractor(), ita.cfg.Library)

	return nil
}

// scan ingests every configured directory once
func (ita *ImgTagAgent) scan(ctx context.Context) {
	for _, dir := range ita.cfg.Library.Directories {
		if _, err := ita.library.IngestDirectory(ctx, dir, ita.cfg.Library.Recursive); err != nil {
			ita.log.Error("Initial scan of '%s' failed: %v", dir, err)
		}
	}
}

func (ita *ImgTagAgent) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	ita.mutex.Lock()
	if err := ita.setupServices(ctx); err != nil {
		ita.mutex.Unlock()
		return err
	}

	if ita.cfg.Library.ScanOnStart {
		ita.scan(ctx)
	}

	w, err := newWatcher(ita.library, ita.log.Named("watcher"), ita.cfg.Library.Recursive)
	if err != nil {
		ita.mutex.Unlock()
		ita.store.Close()
		return fmt.Errorf("failed to create directory watcher: %w", err)
	}
	for _, dir := range ita.cfg.Library.Directories {
		if err := w.AddTree(dir); err != nil {
			ita.log.Error("Unable to watch '%s': %v", dir, err)
		}
	}
	ita.watcher = w

	ita.wait.Add(1)
	go func() {
		defer ita.wait.Done()
		w.Run(ctx)
	}()

	ita.mutex.Unlock()
	close(ita.ready)
	ita.log.Info("Watching %d library directories", len(ita.cfg.Library.Directories))

	<-ctx.Done()

	timeout, err := time.ParseDuration(ita.cfg.ShutdownTimeout)
	if err != nil {
		// Set default of 60 seconds if error
		timeout = 60 * time.Second
	}

	shutdown, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := ita.watcher.Close(); err != nil {
		ita.log.Warn("Failed to close directory watcher: %v", err)
	}
	ita.wait.Wait()

	if err := ita.sc.Cleanup(shutdown); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}

	if err := ita.store.Close(); err != nil {
		return fmt.Errorf("failed to close metadata store: %w", err)
	}
	return nil
}
