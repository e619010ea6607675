package courier

import (
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	textTemplate "text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// templateEngine implements the TemplateEngine interface over html/template
// and text/template, keyed by dotted template names.
type templateEngine struct {
	config        TemplateConfig
	htmlTemplates map[string]*template.Template
	textTemplates map[string]*textTemplate.Template
	mutex         sync.RWMutex
}

// NewTemplateEngine creates a new template engine with the given configuration.
func NewTemplateEngine(config TemplateConfig) (TemplateEngine, error) {
	engine := &templateEngine{
		config:        config,
		htmlTemplates: make(map[string]*template.Template),
		textTemplates: make(map[string]*textTemplate.Template),
	}

	if config.Directory != "" {
		if err := engine.LoadTemplatesFromDir(config.Directory); err != nil {
			return nil, fmt.Errorf("failed to load templates from directory: %w", err)
		}
	}

	return engine, nil
}

// Render renders a template with the provided data.
func (te *templateEngine) Render(templateName string, data interface{}) (string, error) {
	te.mutex.RLock()
	defer te.mutex.RUnlock()

	if htmlTmpl, exists := te.htmlTemplates[templateName]; exists {
		var buf strings.Builder
		if err := htmlTmpl.Execute(&buf, data); err != nil {
			return "", NewTemplateError(templateName, "render", "failed to execute HTML template", err)
		}
		return buf.String(), nil
	}

	if textTmpl, exists := te.textTemplates[templateName]; exists {
		var buf strings.Builder
		if err := textTmpl.Execute(&buf, data); err != nil {
			return "", NewTemplateError(templateName, "render", "failed to execute text template", err)
		}
		return buf.String(), nil
	}

	return "", ErrTemplateNotFound
}

// RegisterTemplate registers a template with the given name and content.
func (te *templateEngine) RegisterTemplate(name string, content string) error {
	te.mutex.Lock()
	defer te.mutex.Unlock()

	// Determine template type from name or content
	if strings.Contains(name, ".html") || strings.Contains(content, "<") {
		tmpl, err := template.New(name).Funcs(te.htmlFuncs()).Parse(content)
		if err != nil {
			return NewTemplateError(name, "parse", "failed to parse HTML template", err)
		}
		te.htmlTemplates[name] = tmpl
	} else {
		tmpl, err := textTemplate.New(name).Funcs(te.textFuncs()).Parse(content)
		if err != nil {
			return NewTemplateError(name, "parse", "failed to parse text template", err)
		}
		te.textTemplates[name] = tmpl
	}

	return nil
}

// LoadTemplatesFromDir loads all templates from the specified directory.
func (te *templateEngine) LoadTemplatesFromDir(dir string) error {
	cleanDir := filepath.Clean(dir)

	return filepath.WalkDir(cleanDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		// Reject anything resolving outside the template directory
		cleanPath := filepath.Clean(path)
		if !isPathWithinDir(cleanPath, cleanDir) {
			return fmt.Errorf("security error: path traversal detected: %s", path)
		}

		ext := filepath.Ext(path)
		validExt := false
		for _, validExtension := range te.config.Extension {
			if ext == validExtension {
				validExt = true
				break
			}
		}
		if !validExt {
			return nil
		}

		content, err := os.ReadFile(cleanPath)
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", cleanPath, err)
		}

		relativePath, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}

		// name.subject.txt -> name.subject; nested dirs become dots
		templateName := strings.TrimSuffix(relativePath, ext)
		templateName = strings.ReplaceAll(templateName, string(filepath.Separator), ".")

		if err := te.RegisterTemplate(templateName, string(content)); err != nil {
			return fmt.Errorf("failed to register template %s: %w", templateName, err)
		}

		return nil
	})
}

// htmlFuncs returns the template functions for HTML templates.
func (te *templateEngine) htmlFuncs() template.FuncMap {
	funcs := template.FuncMap(te.commonFuncs())

	// Only add unsafe functions if explicitly enabled in config
	if te.config.AllowUnsafeFunctions {
		// SECURITY WARNING: these bypass Go's auto-escaping and can lead
		// to XSS. Only use with trusted content.
		funcs["unsafeHTML"] = func(s string) template.HTML {
			return template.HTML(s) // #nosec G203 -- Intentionally unsafe, opt-in only
		}
		funcs["unsafeURL"] = func(s string) template.URL {
			return template.URL(s) // #nosec G203 -- Intentionally unsafe, opt-in only
		}
	}

	return funcs
}

// textFuncs returns the template functions for text templates.
func (te *templateEngine) textFuncs() textTemplate.FuncMap {
	return textTemplate.FuncMap(te.commonFuncs())
}

// commonFuncs returns the function set shared by HTML and text templates.
func (te *templateEngine) commonFuncs() map[string]interface{} {
	titleCaser := cases.Title(language.English)
	return map[string]interface{}{
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"title":     titleCaser.String,
		"trim":      strings.TrimSpace,
		"join":      strings.Join,
		"split":     strings.Split,
		"replace":   strings.ReplaceAll,
		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,
		"now":       time.Now,
		"formatTime": func(format string, t time.Time) string {
			return t.Format(format)
		},
		"default": func(defaultValue, value interface{}) interface{} {
			if value == nil || value == "" {
				return defaultValue
			}
			return value
		},
	}
}

// isPathWithinDir checks if a given path is within the specified directory to prevent path traversal attacks.
func isPathWithinDir(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}

	return !strings.HasPrefix(rel, "..") && rel != ".."
}

// Close closes the template engine and releases any resources.
func (te *templateEngine) Close() error {
	te.mutex.Lock()
	defer te.mutex.Unlock()

	te.htmlTemplates = make(map[string]*template.Template)
	te.textTemplates = make(map[string]*textTemplate.Template)

	return nil
}
