package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/jonathanpberger/typingpool/internal/config"
	"github.com/jonathanpberger/typingpool/internal/domain"
	"github.com/jonathanpberger/typingpool/internal/logger"
	"github.com/jonathanpberger/typingpool/internal/marketplace"
	"github.com/jonathanpberger/typingpool/internal/project"
	"github.com/jonathanpberger/typingpool/internal/repository"
	"github.com/jonathanpberger/typingpool/internal/service"
	"github.com/jonathanpberger/typingpool/internal/storage"
	"github.com/jonathanpberger/typingpool/internal/taskpage"
)

type commandContext struct {
	configFlag  *string
	sandboxFlag *bool
	verboseFlag *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// Replaced in tests.
	newJobs   func(cfg *config.Config) (service.JobService, error)
	newAssets func(ctx context.Context, cfg *config.Config) (service.AssetChannel, error)
	newCache  func(cfg *config.Config, fields domain.IdentifierFields) (resultCache, error)
}

// resultCache is an engine cache holding an open database.
type resultCache interface {
	service.ResultCache
	Close() error
}

func newCommandContext(configFlag *string, sandboxFlag, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		sandboxFlag: sandboxFlag,
		verboseFlag: verboseFlag,
		newJobs:     newMarketplaceClient,
		newAssets:   newAssetChannel,
		newCache:    openResultCache,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		envCfg := logger.LoadFromEnv()
		if c.verboseFlag != nil && *c.verboseFlag {
			envCfg.Level = "debug"
		}
		logger.SetDefaultLogger(logger.NewFromEnv(envCfg))

		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.sandboxFlag != nil && *c.sandboxFlag {
			cfg.Marketplace.Sandbox = true
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) finder() *project.Finder {
	return project.NewFinder(c.config.Transcripts)
}

// findProject resolves a project argument and reports a missing one in
// terms of the configured transcripts directory.
func (c *commandContext) findProject(arg string) (*project.Project, error) {
	p, err := c.finder().FindByNameOrPath(arg)
	if errors.Is(err, project.ErrNotFound) {
		return nil, fmt.Errorf("no project %q in %s", arg, c.config.Transcripts)
	}
	return p, err
}

// withLockedProject runs fn on a fresh copy of the project read under its
// write lock.
func (c *commandContext) withLockedProject(ctx context.Context, arg string, fn func(*project.Project) error) error {
	found, err := c.findProject(arg)
	if err != nil {
		return err
	}
	unlock, err := found.Lock(ctx)
	if err != nil {
		if errors.Is(err, project.ErrLocked) {
			return fmt.Errorf("%s is being updated by another typingpool process, try again when it finishes", found.Name())
		}
		return err
	}
	defer unlock()

	p, err := project.Open(found.Dir())
	if err != nil {
		return err
	}
	return fn(p)
}

type engineOptions struct {
	fields       domain.IdentifierFields
	taskTemplate string
	needAssets   bool
}

// engine wires an Engine for one command. The returned close func releases
// the result cache.
func (c *commandContext) engine(ctx context.Context, opts engineOptions) (*service.Engine, func(), error) {
	cfg := c.config
	fields := opts.fields
	if fields.ProjectID == "" {
		fields = cfg.Fields.Identifiers()
	}

	jobs, err := c.newJobs(cfg)
	if err != nil {
		return nil, nil, err
	}

	var assets service.AssetChannel
	if opts.needAssets {
		if assets, err = c.newAssets(ctx, cfg); err != nil {
			return nil, nil, err
		}
	}

	renderer, err := taskpage.New(taskpage.Options{
		Fields:       fields,
		SubmitURL:    cfg.Marketplace.MarketplaceURL() + "/submit",
		TaskTemplate: opts.taskTemplate,
	})
	if err != nil {
		return nil, nil, err
	}

	closer := func() {}
	var cache service.ResultCache
	rc, err := c.newCache(cfg, fields)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Result cache unavailable, continuing without it")
	} else {
		cache = rc
		closer = func() {
			if err := rc.Close(); err != nil {
				logger.FromContext(ctx).WithError(err).Debug("Failed to close result cache")
			}
		}
	}

	return service.NewEngine(service.Options{
		Jobs:     jobs,
		Assets:   assets,
		Renderer: renderer,
		Cache:    cache,
		Projects: c.finder(),
		Fields:   fields,
	}), closer, nil
}

func newMarketplaceClient(cfg *config.Config) (service.JobService, error) {
	if err := cfg.ValidateMarketplace(); err != nil {
		return nil, err
	}
	return marketplace.NewClient(&marketplace.Config{
		BaseURL:    cfg.Marketplace.MarketplaceURL(),
		Key:        cfg.Marketplace.Key,
		Secret:     cfg.Marketplace.Secret,
		Timeout:    cfg.Marketplace.Timeout,
		RetryCount: cfg.Marketplace.RetryCount,
	}), nil
}

type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

func newAssetChannel(ctx context.Context, cfg *config.Config) (service.AssetChannel, error) {
	if err := cfg.ValidateStorage(); err != nil {
		return nil, err
	}
	store, err := storage.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}
	if b, ok := store.(bucketEnsurer); ok {
		if err := b.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure storage bucket: %w", err)
		}
	}
	return storage.NewChannel(store, "", cfg.Storage.Concurrency), nil
}

type repoCache struct {
	*repository.ResultRepository
	db *gorm.DB
}

func (r repoCache) Close() error { return repository.Close(r.db) }

func openResultCache(cfg *config.Config, fields domain.IdentifierFields) (resultCache, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	return repoCache{ResultRepository: repository.NewResultRepository(db, fields), db: db}, nil
}

// resolveTemplate finds a task template by path, or by name inside the
// configured templates directory.
func resolveTemplate(cfg *config.Config, name string) (string, error) {
	if name == "" {
		return cfg.Assign.Template, nil
	}
	candidates := []string{config.ExpandPath(name)}
	if cfg.Templates != "" && !filepath.IsAbs(name) {
		candidates = append(candidates, filepath.Join(cfg.Templates, name))
		if filepath.Ext(name) == "" {
			candidates = append(candidates, filepath.Join(cfg.Templates, name+".html"))
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("no template %q (looked in %s)", name, strings.Join(candidates, ", "))
}
