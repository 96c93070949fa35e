package classify

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/config"
	"github.com/goodtune/kfocus/internal/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"
)

const categoryQuery = "data.kfocus.category.result"

//go:embed policies/category.rego
var defaultPolicy string

// Engine maps page locations to usage categories by evaluating Rego policy
type Engine struct {
	policyDir string
	logger    zerolog.Logger
	cache     *lru.Cache[string, catalog.Category]

	mu      sync.RWMutex
	query   rego.PreparedEvalQuery
	modules map[string]*ast.Module
	// gen counts reloads; results evaluated under an older gen are not cached
	gen uint64
}

// NewEngine creates a classifier. An empty policy directory uses the
// built-in policy.
func NewEngine(cfg config.ClassifierConfig, logger zerolog.Logger) (*Engine, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 512
	}
	cache, err := lru.New[string, catalog.Category](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier cache: %w", err)
	}

	e := &Engine{
		policyDir: cfg.PolicyDir,
		logger:    logger.With().Str("component", "classifier").Logger(),
		cache:     cache,
	}

	if err := e.Reload(); err != nil {
		return nil, err
	}

	source := "built-in"
	if e.policyDir != "" {
		source = e.policyDir
	}
	e.logger.Info().Str("policy_source", source).Int("cache_size", size).Msg("Classifier initialized")

	return e, nil
}

// Reload reloads the policy and clears the cache
func (e *Engine) Reload() error {
	modules, err := e.loadPolicies()
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	query, err := prepareQuery(modules)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.modules = modules
	e.query = query
	e.gen++
	e.cache.Purge()
	e.mu.Unlock()

	return nil
}

// loadPolicies parses the .rego files in the policy directory, or the
// built-in policy when no directory is configured.
func (e *Engine) loadPolicies() (map[string]*ast.Module, error) {
	modules := make(map[string]*ast.Module)

	if e.policyDir == "" {
		module, err := ast.ParseModule("category.rego", defaultPolicy)
		if err != nil {
			return nil, fmt.Errorf("failed to parse built-in policy: %w", err)
		}
		modules["category.rego"] = module
		return modules, nil
	}

	files, err := filepath.Glob(filepath.Join(e.policyDir, "*.rego"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob policy files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no policy files found in %s", e.policyDir)
	}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file %s: %w", file, err)
		}

		module, err := ast.ParseModule(file, string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse policy file %s: %w", file, err)
		}

		modules[file] = module
		e.logger.Debug().Str("file", file).Str("package", module.Package.Path.String()).Msg("Loaded policy module")
	}

	return modules, nil
}

func prepareQuery(modules map[string]*ast.Module) (rego.PreparedEvalQuery, error) {
	opts := []func(*rego.Rego){rego.Query(categoryQuery)}
	for _, module := range modules {
		opts = append(opts, rego.ParsedModule(module))
	}

	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("failed to prepare category query: %w", err)
	}
	return query, nil
}

// Classify returns the category of a page URL. Results are cached per
// host and path.
func (e *Engine) Classify(ctx context.Context, rawURL string) (catalog.Category, error) {
	host, path, err := splitURL(rawURL)
	if err != nil {
		return catalog.CategoryOther, err
	}

	key := host + path
	if category, ok := e.cache.Get(key); ok {
		metrics.ClassifierCacheHits.Inc()
		return category, nil
	}
	metrics.ClassifierCacheMisses.Inc()

	e.mu.RLock()
	query, gen := e.query, e.gen
	e.mu.RUnlock()

	category, err := e.evaluate(ctx, query, host, path)
	if err != nil {
		return catalog.CategoryOther, err
	}

	e.remember(key, category, gen)
	return category, nil
}

// remember caches a result unless a reload happened since it was evaluated
func (e *Engine) remember(key string, category catalog.Category, gen uint64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if gen != e.gen {
		return false
	}
	e.cache.Add(key, category)
	return true
}

func (e *Engine) evaluate(ctx context.Context, query rego.PreparedEvalQuery, host, path string) (catalog.Category, error) {
	startTime := time.Now()

	input := map[string]interface{}{
		"host": host,
		"path": path,
	}

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return catalog.CategoryOther, fmt.Errorf("category query evaluation failed: %w", err)
	}

	duration := time.Since(startTime)
	metrics.ClassifierDuration.Observe(duration.Seconds())

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return catalog.CategoryOther, fmt.Errorf("no results from category query")
	}

	name, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return catalog.CategoryOther, fmt.Errorf("category is not a string: %T", results[0].Expressions[0].Value)
	}

	category := catalog.ParseCategory(name)
	e.logger.Debug().
		Str("host", host).
		Str("path", path).
		Str("category", category.String()).
		Dur("duration", duration).
		Msg("Location classified")

	return category, nil
}

// PolicyFiles returns the loaded policy module names in sorted order
func (e *Engine) PolicyFiles() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	files := make([]string, 0, len(e.modules))
	for name := range e.modules {
		files = append(files, name)
	}
	sort.Strings(files)
	return files
}

// CacheLen returns the number of cached classifications
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}

// splitURL extracts the lowercase host and the path of a page URL.
// Scheme-less input such as "instagram.com/reels/" is accepted.
func splitURL(rawURL string) (host, path string, err error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", "", fmt.Errorf("empty url")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("url has no host: %s", rawURL)
	}

	return strings.ToLower(u.Hostname()), u.EscapedPath(), nil
}
