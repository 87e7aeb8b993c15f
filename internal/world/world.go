// Package world loads YAML world files: the territory map plus the
// authorities, laws, routes, and start-trigger programs built on top of it.
//
// World files are the authoring format of world-building tools. Applying a
// file is idempotent: entities whose IDs already exist are left untouched.
package world

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"lawwarden.io/warden/internal/domain"
	"lawwarden.io/warden/internal/jurisdiction"
	apperrors "lawwarden.io/warden/internal/pkg/errors"
	"lawwarden.io/warden/internal/pkg/logger"
	"lawwarden.io/warden/internal/route"
	"lawwarden.io/warden/internal/territory"
)

// File is a parsed world file.
type File struct {
	Nodes       []Node            `yaml:"nodes"`
	Hooks       map[string]string `yaml:"hooks,omitempty"`
	Authorities []Authority       `yaml:"authorities,omitempty"`
	Routes      []Route           `yaml:"routes,omitempty"`
}

// Node is one map cell and its one-way exits.
type Node struct {
	ID    domain.NodeID   `yaml:"id"`
	Name  string          `yaml:"name,omitempty"`
	Exits []domain.NodeID `yaml:"exits,omitempty"`
}

// Authority is a legal authority with its territory and laws.
type Authority struct {
	ID                     domain.AuthorityID  `yaml:"id"`
	Name                   string              `yaml:"name"`
	PlayersKnowTheirCrimes bool                `yaml:"players_know_their_crimes,omitempty"`
	Territory              []domain.NodeID     `yaml:"territory,omitempty"`
	Holding                domain.HoldingNodes `yaml:"holding,omitempty"`
	Laws                   []Law               `yaml:"laws,omitempty"`
}

// Law is a rule of an authority.
type Law struct {
	ID       domain.LawID `yaml:"id"`
	Name     string       `yaml:"name"`
	Strategy string       `yaml:"strategy"`
}

// Route is a patrol route template.
type Route struct {
	ID           domain.RouteID     `yaml:"id"`
	Authority    domain.AuthorityID `yaml:"authority"`
	Name         string             `yaml:"name"`
	Waypoints    []domain.NodeID    `yaml:"waypoints"`
	StartTrigger *domain.HookID     `yaml:"start_trigger,omitempty"`
	MinMembers   int                `yaml:"min_members,omitempty"`
	MaxActive    int                `yaml:"max_active,omitempty"`
}

// Parse decodes a world file. Unknown keys are rejected so typos surface
// instead of silently dropping configuration.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse world file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses a world file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world file %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func (f *File) validate() error {
	seen := make(map[domain.NodeID]struct{}, len(f.Nodes))
	for i, n := range f.Nodes {
		if strings.TrimSpace(string(n.ID)) == "" {
			return fmt.Errorf("node %d: id is required", i)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("node %s: declared twice", n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	for _, a := range f.Authorities {
		if a.ID == "" {
			return fmt.Errorf("authority %q: id is required", a.Name)
		}
		for _, l := range a.Laws {
			if l.ID == "" {
				return fmt.Errorf("authority %s law %q: id is required", a.ID, l.Name)
			}
		}
	}
	for _, r := range f.Routes {
		if r.ID == "" {
			return fmt.Errorf("route %q: id is required", r.Name)
		}
		if r.Authority == "" {
			return fmt.Errorf("route %s: authority is required", r.ID)
		}
	}
	return nil
}

// BuildMap builds the territory map. Exits are one-way; a two-way passage
// lists the exit on both nodes.
func (f *File) BuildMap() (*territory.Map, error) {
	m := territory.NewMap()
	if err := f.ApplyMap(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ApplyMap adds the file's nodes and exits to an existing map.
func (f *File) ApplyMap(m *territory.Map) error {
	for _, n := range f.Nodes {
		name := n.Name
		if name == "" {
			name = string(n.ID)
		}
		if err := m.AddNode(n.ID, name); err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	for _, n := range f.Nodes {
		for _, exit := range n.Exits {
			if err := m.Connect(n.ID, exit, false); err != nil {
				return fmt.Errorf("exit %s -> %s: %w", n.ID, exit, err)
			}
		}
	}
	return nil
}

// HookRegistrar accepts start-trigger programs.
type HookRegistrar interface {
	Register(id domain.HookID, source string) error
}

// RegisterHooks compiles and registers every hook program of the file.
func (f *File) RegisterHooks(hooks HookRegistrar) error {
	for id, src := range f.Hooks {
		if err := hooks.Register(domain.HookID(id), src); err != nil {
			return fmt.Errorf("hook %s: %w", id, err)
		}
	}
	return nil
}

// Registry is the write side of the jurisdiction registry used by Apply.
type Registry interface {
	Exists(id domain.AuthorityID) bool
	RegisterAuthority(ctx context.Context, in jurisdiction.AuthorityInput) (domain.AuthorityID, error)
	AddLaw(ctx context.Context, authorityID domain.AuthorityID, law domain.Law) (domain.LawID, error)
	Law(id domain.LawID) (domain.Law, error)
}

// Catalog is the write side of the route catalog used by Apply.
type Catalog interface {
	GetRoute(id domain.RouteID) (*domain.PatrolRoute, error)
	CreateRoute(ctx context.Context, in route.Input) (domain.RouteID, error)
}

// Summary counts what Apply created and skipped.
type Summary struct {
	Authorities int
	Laws        int
	Routes      int
	Skipped     int
}

// Apply registers the file's authorities, laws, and routes. Hooks must be
// registered first so routes can reference them.
func (f *File) Apply(ctx context.Context, registry Registry, catalog Catalog) (Summary, error) {
	var sum Summary
	for _, a := range f.Authorities {
		if registry.Exists(a.ID) {
			sum.Skipped++
		} else {
			if _, err := registry.RegisterAuthority(ctx, jurisdiction.AuthorityInput{
				ID:                     a.ID,
				Name:                   a.Name,
				Holding:                a.Holding,
				PlayersKnowTheirCrimes: a.PlayersKnowTheirCrimes,
				Territory:              a.Territory,
			}); err != nil {
				return sum, fmt.Errorf("authority %s: %w", a.ID, err)
			}
			sum.Authorities++
		}
		for _, l := range a.Laws {
			if _, err := registry.Law(l.ID); err == nil {
				sum.Skipped++
				continue
			} else if !apperrors.HasCode(err, apperrors.CodeLawNotFound) {
				return sum, fmt.Errorf("law %s: %w", l.ID, err)
			}
			if _, err := registry.AddLaw(ctx, a.ID, domain.Law{ID: l.ID, Name: l.Name, EnforcementStrategy: l.Strategy}); err != nil {
				return sum, fmt.Errorf("law %s: %w", l.ID, err)
			}
			sum.Laws++
		}
	}

	for _, r := range f.Routes {
		if _, err := catalog.GetRoute(r.ID); err == nil {
			sum.Skipped++
			continue
		}
		if _, err := catalog.CreateRoute(ctx, route.Input{
			ID:           r.ID,
			AuthorityID:  r.Authority,
			Name:         r.Name,
			Waypoints:    r.Waypoints,
			StartTrigger: r.StartTrigger,
			MinMembers:   r.MinMembers,
			MaxActive:    r.MaxActive,
		}); err != nil {
			return sum, fmt.Errorf("route %s: %w", r.ID, err)
		}
		sum.Routes++
	}

	logger.Info("World file applied",
		zap.Int("authorities", sum.Authorities),
		zap.Int("laws", sum.Laws),
		zap.Int("routes", sum.Routes),
		zap.Int("skipped", sum.Skipped),
	)
	return sum, nil
}
