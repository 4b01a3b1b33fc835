package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/stupside/facet/internal/geo"
)

// Repository persists bindings by name.
type Repository interface {
	Get(name string) (Binding, error)
	List() ([]Binding, error)
	Put(b Binding) error
	Rename(oldName string, b Binding) error
	Delete(name string) error
}

// HostResolver maps a proxy server URL to the IP its traffic exits from.
type HostResolver interface {
	ProxyIP(ctx context.Context, server string) (string, error)
}

// Update carries the fields to change; nil fields are left alone.
type Update struct {
	Name     *string
	Server   *string
	Username *string
	Password *string
}

// Service is the proxy CRUD surface. It owns geo enrichment so stored
// bindings never carry geo data for a server they no longer point at.
type Service struct {
	repo     Repository
	hosts    HostResolver
	resolver geo.Resolver
	validate *validator.Validate
}

func NewService(repo Repository, hosts HostResolver, resolver geo.Resolver) *Service {
	return &Service{
		repo:     repo,
		hosts:    hosts,
		resolver: resolver,
		validate: validator.New(),
	}
}

func (s *Service) Get(name string) (Binding, error) {
	return s.repo.Get(name)
}

func (s *Service) List() ([]Binding, error) {
	return s.repo.List()
}

// Add stores a new binding and resolves its geo data.
func (s *Service) Add(ctx context.Context, b Binding) (Binding, error) {
	b.Name = strings.TrimSpace(b.Name)
	b.Server = Normalize(b.Server)
	if err := s.validate.Struct(&b); err != nil {
		return Binding{}, fmt.Errorf("validating proxy: %w", err)
	}

	if _, err := s.repo.Get(b.Name); err == nil {
		return Binding{}, fmt.Errorf("%w: %s", ErrExists, b.Name)
	} else if !errors.Is(err, ErrNotFound) {
		return Binding{}, err
	}

	s.warnFormat(ctx, b)
	b.setGeo(s.locate(ctx, b.Server))

	if err := s.repo.Put(b); err != nil {
		return Binding{}, fmt.Errorf("saving proxy %s: %w", b.Name, err)
	}
	slog.InfoContext(ctx, "proxy added", "proxy", b.Name, "server", b.Server, "timezone", b.TimezoneID)
	return b, nil
}

// Update applies u to the named binding. Geo data is re-resolved only when
// the server changes, and cleared when the new server cannot be located.
func (s *Service) Update(ctx context.Context, name string, u Update) (Binding, error) {
	b, err := s.repo.Get(name)
	if err != nil {
		return Binding{}, err
	}

	if u.Name != nil {
		newName := strings.TrimSpace(*u.Name)
		if newName != name {
			if _, err := s.repo.Get(newName); err == nil {
				return Binding{}, fmt.Errorf("%w: %s", ErrExists, newName)
			} else if !errors.Is(err, ErrNotFound) {
				return Binding{}, err
			}
		}
		b.Name = newName
	}
	if u.Username != nil {
		b.Username = *u.Username
	}
	if u.Password != nil {
		b.Password = *u.Password
	}

	serverChanged := false
	if u.Server != nil {
		server := Normalize(*u.Server)
		serverChanged = server != b.Server
		b.Server = server
	}

	if err := s.validate.Struct(&b); err != nil {
		return Binding{}, fmt.Errorf("validating proxy: %w", err)
	}

	if serverChanged {
		s.warnFormat(ctx, b)
		b.setGeo(s.locate(ctx, b.Server))
	}

	if err := s.repo.Rename(name, b); err != nil {
		return Binding{}, fmt.Errorf("saving proxy %s: %w", b.Name, err)
	}
	slog.InfoContext(ctx, "proxy updated", "proxy", b.Name, "server_changed", serverChanged)
	return b, nil
}

// Delete removes a binding. Profiles still naming it fall back to a direct
// connection at launch.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.repo.Delete(name); err != nil {
		return err
	}
	slog.InfoContext(ctx, "proxy deleted", "proxy", name)
	return nil
}

func (s *Service) locate(ctx context.Context, server string) *geo.Info {
	if s.hosts == nil {
		return nil
	}
	ip, err := s.hosts.ProxyIP(ctx, server)
	if err != nil {
		slog.WarnContext(ctx, "proxy ip unknown, geo fields cleared", "server", server, "error", err)
		return nil
	}
	return geo.Lookup(ctx, s.resolver, ip)
}

func (s *Service) warnFormat(ctx context.Context, b Binding) {
	if err := Check(b.Server); err != nil {
		slog.WarnContext(ctx, "proxy will be ignored at launch", "proxy", b.Name, "error", err)
	}
}
