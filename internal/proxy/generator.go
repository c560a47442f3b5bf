// Package proxy renders per-concept nginx fragments and swaps them
// into the live configuration directory atomically.
package proxy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devcellar/concepts/internal/concept"
)

const fragmentTemplate = `server {
  listen 80;

  server_name {{.ServerName}};

  location / {
    proxy_set_header Accept-Encoding "";
    proxy_pass {{.Upstream}};
    proxy_redirect off;
    proxy_read_timeout 5m;
    proxy_set_header Host $http_host;
    proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
    proxy_set_header X-Real-IP $remote_addr;
    proxy_set_header X-Forwarded-Proto http;
  }

  sub_filter '</head>' '{{.Analytics}}</head>';
{{- if .Banner}}
  sub_filter '<body>' '<body><iframe src="http://{{.RootDomain}}/banners/{{.Slug}}.html" style="border: 0; width: 100%; height: 2.8rem;"></iframe>';
{{- end}}
}
`

// defaultTemplate is the fixed fragment always present in the live
// directory: it serves the listing page itself.
const defaultTemplate = `server {
  listen 80 default_server;

  server_name {{.RootDomain}};

  root {{.WebRoot}};
  index index.html;

  location /concepts.json {
    add_header Cache-Control "no-cache";
  }
}
`

const bannerTemplate = `<header style="background-color: #414042; height: 2rem; padding: 0.4rem; color: white;">
  <a href="http://{{.RootDomain}}" style="color: white;"><img src="{{.LogoURL}}" alt="logo" style="height: 100%;"></a>
  <span style="float: right; font: 0.8rem Helvetica, sans-serif;">{{.Title}} &mdash; a concept by {{.Login}}</span>
</header>
`

// Config captures the generator parameters.
type Config struct {
	// LiveDir is the configuration directory the proxy serves from.
	LiveDir string
	// RootDomain is the public domain concepts are published under.
	RootDomain string
	// WebRoot is the document root of the default fragment.
	WebRoot string
	// AnalyticsSnippet is injected before </head> on every concept.
	AnalyticsSnippet string
	// BannerLogoURL is the logo shown in the injected banner header.
	BannerLogoURL string
}

// Generator renders the reverse-proxy configuration set.
type Generator struct {
	cfg      Config
	fragment *template.Template
	deflt    *template.Template
	banner   *template.Template
	logger   *zap.Logger
}

// New creates a Generator.
func New(cfg Config, logger *zap.Logger) (*Generator, error) {
	if cfg.LiveDir == "" {
		return nil, fmt.Errorf("live dir is required")
	}
	if cfg.RootDomain == "" {
		return nil, fmt.Errorf("root domain is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		cfg:      cfg,
		fragment: template.Must(template.New("fragment").Parse(fragmentTemplate)),
		deflt:    template.Must(template.New("default").Parse(defaultTemplate)),
		banner:   template.Must(template.New("banner").Parse(bannerTemplate)),
		logger:   logger,
	}, nil
}

// RegenerateAll renders one routing fragment and one banner fragment
// per concept into a staging directory, then atomically replaces the
// live directory. If any fragment fails to render, staging is
// discarded and the live directory is untouched.
func (g *Generator) RegenerateAll(concepts []concept.Concept) error {
	parent := filepath.Dir(filepath.Clean(g.cfg.LiveDir))
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return fmt.Errorf("create config parent dir: %w", err)
	}

	staging := filepath.Join(parent, fmt.Sprintf(".staging-%s", uuid.NewString()))
	if err := os.MkdirAll(filepath.Join(staging, "banners"), 0o750); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	if err := g.renderAll(staging, concepts); err != nil {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			g.logger.Warn("discard staging dir failed", zap.String("dir", staging), zap.Error(rmErr))
		}
		return err
	}

	if err := g.swap(staging); err != nil {
		return err
	}
	g.logger.Info("proxy configuration regenerated",
		zap.Int("concepts", len(concepts)),
		zap.String("dir", g.cfg.LiveDir),
	)
	return nil
}

func (g *Generator) renderAll(staging string, concepts []concept.Concept) error {
	for _, c := range concepts {
		if err := g.renderConcept(staging, c); err != nil {
			return fmt.Errorf("render fragment for %s: %w", c.Slug, err)
		}
	}
	if err := g.renderFile(g.deflt, filepath.Join(staging, "default.conf"), map[string]string{
		"RootDomain": g.cfg.RootDomain,
		"WebRoot":    g.cfg.WebRoot,
	}); err != nil {
		return fmt.Errorf("render default fragment: %w", err)
	}
	return nil
}

func (g *Generator) renderConcept(staging string, c concept.Concept) error {
	if c.Slug == "" {
		return fmt.Errorf("concept has no slug")
	}
	// The slug names files inside staging; anything resembling a path
	// component must never reach the filesystem.
	if strings.ContainsAny(c.Slug, `/\`) || strings.Contains(c.Slug, "..") {
		return fmt.Errorf("concept slug %q is not path-safe", c.Slug)
	}
	if c.TargetURL == "" {
		return fmt.Errorf("concept has no target URL")
	}

	err := g.renderFile(g.fragment, filepath.Join(staging, c.Slug+".conf"), map[string]any{
		"ServerName": fmt.Sprintf("%s.%s", c.Slug, g.cfg.RootDomain),
		"Upstream":   c.TargetURL,
		"Analytics":  g.cfg.AnalyticsSnippet,
		"Banner":     c.BannerEnabled,
		"RootDomain": g.cfg.RootDomain,
		"Slug":       c.Slug,
	})
	if err != nil {
		return err
	}

	if !c.BannerEnabled {
		return nil
	}
	return g.renderFile(g.banner, filepath.Join(staging, "banners", c.Slug+".html"), map[string]string{
		"RootDomain": g.cfg.RootDomain,
		"LogoURL":    g.cfg.BannerLogoURL,
		"Title":      c.Title,
		"Login":      c.Login,
	})
}

func (g *Generator) renderFile(tmpl *template.Template, path string, data any) error {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	if err := os.WriteFile(path, []byte(buf.String()), 0o640); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// swap replaces the live directory with staging. The live directory is
// renamed aside first so a crash mid-swap leaves either the old or the
// new set, never a mix.
func (g *Generator) swap(staging string) error {
	old := g.cfg.LiveDir + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clear previous backup dir: %w", err)
	}

	if _, err := os.Stat(g.cfg.LiveDir); err == nil {
		if err := os.Rename(g.cfg.LiveDir, old); err != nil {
			return fmt.Errorf("move live dir aside: %w", err)
		}
	}

	if err := os.Rename(staging, g.cfg.LiveDir); err != nil {
		// Best effort rollback of the aside rename.
		if _, statErr := os.Stat(old); statErr == nil {
			if rbErr := os.Rename(old, g.cfg.LiveDir); rbErr != nil {
				g.logger.Error("rollback of live dir failed", zap.Error(rbErr))
			}
		}
		return fmt.Errorf("swap in staged config: %w", err)
	}

	if err := os.RemoveAll(old); err != nil {
		g.logger.Warn("remove old config dir failed", zap.String("dir", old), zap.Error(err))
	}
	return nil
}
