package recipe

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"

	jobsmodel "github.com/hitesh22rana/provisioner/internal/model/jobs"
)

const (
	defaultTimeout          = 15 * time.Minute
	defaultReadinessTimeout = 10 * time.Second
	maxTimeout              = 2 * time.Hour
)

//go:embed recipes.yaml
var defaultRecipes []byte

// Readiness describes the HTTP probe confirming that a provisioned tool answers.
type Readiness struct {
	Scheme             string        `yaml:"scheme"`
	Port               int           `yaml:"port"`
	Path               string        `yaml:"path"`
	ExpectedStatusCode int           `yaml:"expected_status_code"`
	Timeout            time.Duration `yaml:"timeout"`
}

// Endpoint returns the probe URL for the given address.
func (r *Readiness) Endpoint(address string) string {
	return fmt.Sprintf("%s://%s:%d%s", r.Scheme, address, r.Port, r.Path)
}

// Recipe describes how a tool gets installed.
type Recipe struct {
	Tool      jobsmodel.Tool    `yaml:"tool"`
	Image     string            `yaml:"image"`
	Command   []string          `yaml:"command"`
	Env       map[string]string `yaml:"env"`
	Timeout   time.Duration     `yaml:"timeout"`
	Readiness *Readiness        `yaml:"readiness"`
	Steps     []string          `yaml:"steps"`
}

// Book holds the recipe of every tool.
type Book struct {
	recipes map[jobsmodel.Tool]*Recipe
}

// Load loads the recipes from path, or the embedded defaults when path is empty.
func Load(path string) (*Book, error) {
	if path == "" {
		return Parse(defaultRecipes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "failed to read recipes file: %v", err)
	}

	return Parse(data)
}

// Parse parses and validates a recipes YAML document.
func Parse(data []byte) (*Book, error) {
	var doc struct {
		Recipes []*Recipe `yaml:"recipes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid recipes file: %v", err)
	}

	b := &Book{recipes: make(map[jobsmodel.Tool]*Recipe, len(doc.Recipes))}
	for _, r := range doc.Recipes {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, ok := b.recipes[r.Tool]; ok {
			return nil, status.Errorf(codes.InvalidArgument, "duplicate recipe for tool %q", r.Tool)
		}
		b.recipes[r.Tool] = r
	}

	return b, nil
}

func (r *Recipe) validate() error {
	if _, err := jobsmodel.ParseTool(r.Tool.ToString()); err != nil {
		return err
	}

	if r.Timeout == 0 {
		r.Timeout = defaultTimeout
	}
	if r.Timeout < 0 || r.Timeout > maxTimeout {
		return status.Errorf(codes.InvalidArgument, "recipe %q: timeout must be within (0, %s]", r.Tool, maxTimeout)
	}

	if r.Readiness != nil {
		if r.Readiness.Scheme == "" {
			r.Readiness.Scheme = "http"
		}
		if r.Readiness.ExpectedStatusCode == 0 {
			r.Readiness.ExpectedStatusCode = 200
		}
		if r.Readiness.ExpectedStatusCode < 100 || r.Readiness.ExpectedStatusCode > 599 {
			return status.Errorf(codes.InvalidArgument, "recipe %q: expected status code must be between 100 and 599", r.Tool)
		}
		if r.Readiness.Timeout <= 0 {
			r.Readiness.Timeout = defaultReadinessTimeout
		}
		if r.Readiness.Port <= 0 || r.Readiness.Port > 65535 {
			return status.Errorf(codes.InvalidArgument, "recipe %q: readiness port is invalid", r.Tool)
		}
	}

	return nil
}

// Get returns the recipe of the tool.
func (b *Book) Get(tool jobsmodel.Tool) (*Recipe, error) {
	r, ok := b.recipes[tool]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no recipe for tool %q", tool)
	}

	return r, nil
}

// Expand replaces ${VAR} references in s with vars.
func Expand(s string, vars map[string]string) string {
	return os.Expand(s, func(key string) string {
		return vars[key]
	})
}
