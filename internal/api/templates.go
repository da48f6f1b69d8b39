package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/parcelstack-labs/parcelboard/internal/filter"
	"github.com/parcelstack-labs/parcelboard/internal/layout"
	"github.com/parcelstack-labs/parcelboard/internal/panel"
)

// layoutTemplate is the YAML shape of a file in the templates directory.
// Templates become public, system-owned layouts that every user can read
// and clone but nobody can modify through the API.
type layoutTemplate struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	LayoutType  string     `yaml:"layoutType"`
	Panels      []struct {
		ID          string         `yaml:"id"`
		ContentType string         `yaml:"contentType"`
		Title       string         `yaml:"title"`
		Geometry    struct {
			Row       int     `yaml:"row"`
			Col       int     `yaml:"col"`
			WidthPct  float64 `yaml:"widthPercent"`
			HeightPct float64 `yaml:"heightPercent"`
		} `yaml:"geometry"`
		State   map[string]any `yaml:"state"`
		Visible *bool          `yaml:"visible"`
	} `yaml:"panels"`
	Filters filter.Set `yaml:"filters"`
}

// loadTemplates reads every YAML file in the templates directory and
// upserts the corresponding system layout, matching by name.
func (s *Server) loadTemplates() error {
	entries, err := os.ReadDir(s.templatesDir)
	if err != nil {
		return fmt.Errorf("failed to read templates directory: %w", err)
	}

	existing, err := s.store.ListLayouts(SystemOwner)
	if err != nil {
		return err
	}
	byName := make(map[string]string)
	for _, l := range existing {
		if l.OwnerID == SystemOwner {
			byName[l.Name] = l.ID
		}
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(s.templatesDir, entry.Name())
		l, err := readTemplate(path)
		if err != nil {
			s.logger.Error("skipping layout template", "file", entry.Name(), "error", err)
			continue
		}

		l.ID = byName[l.Name]
		if _, err := s.store.SaveLayout(l, SystemOwner); err != nil {
			s.logger.Error("failed to save layout template", "file", entry.Name(), "error", err)
			continue
		}
		loaded++
	}

	s.logger.Info("layout templates loaded", "dir", s.templatesDir, "count", loaded)
	return nil
}

// readTemplate parses and validates one template file.
func readTemplate(path string) (*layout.Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	var tmpl layoutTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	l := &layout.Layout{
		Name:        tmpl.Name,
		Description: tmpl.Description,
		Type:        layout.Type(tmpl.LayoutType),
		Filters:     tmpl.Filters,
		IsPublic:    true,
	}
	for _, p := range tmpl.Panels {
		visible := true
		if p.Visible != nil {
			visible = *p.Visible
		}
		l.Panels = append(l.Panels, &panel.Descriptor{
			ID:          p.ID,
			ContentType: panel.ContentType(p.ContentType),
			Title:       p.Title,
			Geometry: panel.Geometry{
				Row:       p.Geometry.Row,
				Col:       p.Geometry.Col,
				WidthPct:  p.Geometry.WidthPct,
				HeightPct: p.Geometry.HeightPct,
			},
			State:   p.State,
			Visible: visible,
		})
	}

	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// watchTemplates reloads templates when files in the directory change.
func (s *Server) watchTemplates(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.templatesDir); err != nil {
		s.logger.Error("failed to watch templates directory", "error", err)
		// Don't fail - continue without watching.
		<-ctx.Done()
		return nil
	}

	// Debounce timer
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("template changed, reloading", "file", event.Name)
				if err := s.loadTemplates(); err != nil {
					s.logger.Error("template reload failed", "error", err)
				}
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}
