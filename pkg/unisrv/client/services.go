package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const (
	LocationTargetInstance = "instance"
	LocationTargetURL      = "url"

	DefaultTargetGroup = "default"
)

type ServiceService struct {
	client *Client
}

func (c *Client) Services() *ServiceService {
	return &ServiceService{client: c}
}

type Service struct {
	ID   uuid.UUID `json:"id" yaml:"id"`
	Name string    `json:"name" yaml:"name"`
	Type string    `json:"type" yaml:"type"`
}

// LocationTarget is where a location forwards to: an instance target group
// or an external URL.
type LocationTarget struct {
	Type  string `json:"type" yaml:"type"`
	Group string `json:"group,omitempty" yaml:"group,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

func (t LocationTarget) String() string {
	if t.Type == LocationTargetURL {
		return "url " + t.URL
	}
	group := t.Group
	if group == "" {
		group = DefaultTargetGroup
	}
	return "instance group " + group
}

type Location struct {
	Path        string         `json:"path" yaml:"path"`
	Override404 string         `json:"override_404,omitempty" yaml:"override404,omitempty"`
	Target      LocationTarget `json:"target" yaml:"target"`
}

type ServiceConfiguration struct {
	Locations []Location `json:"locations" yaml:"locations"`
	AllowHTTP bool       `json:"allow_http" yaml:"allowHttp"`
}

// FindLocation returns the index of the location with path, or -1.
func (c ServiceConfiguration) FindLocation(path string) int {
	for i, l := range c.Locations {
		if l.Path == path {
			return i
		}
	}
	return -1
}

type ServiceProvider struct {
	ID           uuid.UUID `json:"id" yaml:"id"`
	NodeID       uuid.UUID `json:"node_id" yaml:"nodeId"`
	RouteAddress string    `json:"route_address" yaml:"routeAddress"`
	CreatedAt    Timestamp `json:"created_at" yaml:"createdAt"`
}

type ServiceTarget struct {
	ID           uuid.UUID `json:"id" yaml:"id"`
	InstanceID   uuid.UUID `json:"instance_id" yaml:"instanceId"`
	InstancePort uint16    `json:"instance_port" yaml:"instancePort"`
	Group        string    `json:"target_group,omitempty" yaml:"group,omitempty"`
	CreatedAt    Timestamp `json:"created_at" yaml:"createdAt"`
}

type ServiceInfo struct {
	ID            uuid.UUID            `json:"id" yaml:"id"`
	Name          string               `json:"name" yaml:"name"`
	Type          string               `json:"type" yaml:"type"`
	Configuration ServiceConfiguration `json:"configuration" yaml:"configuration"`
	UserID        uuid.UUID            `json:"user_id" yaml:"userId"`
	CreatedAt     Timestamp            `json:"created_at" yaml:"createdAt"`
	UpdatedAt     Timestamp            `json:"updated_at" yaml:"updatedAt"`
	Providers     []ServiceProvider    `json:"providers" yaml:"providers"`
	Targets       []ServiceTarget      `json:"targets" yaml:"targets"`
}

type InstanceTarget struct {
	InstanceID   uuid.UUID `json:"instance_id"`
	InstancePort uint16    `json:"instance_port"`
	Group        string    `json:"group,omitempty"`
}

type ServiceRequest struct {
	Region          string               `json:"region"`
	Name            string               `json:"name"`
	Host            string               `json:"host"`
	Configuration   ServiceConfiguration `json:"configuration"`
	InstanceTargets []InstanceTarget     `json:"instance_targets"`
}

// DefaultServiceConfiguration routes "/" to the default instance group.
func DefaultServiceConfiguration(allowHTTP bool) ServiceConfiguration {
	return ServiceConfiguration{
		Locations: []Location{{
			Path:   "/",
			Target: LocationTarget{Type: LocationTargetInstance, Group: DefaultTargetGroup},
		}},
		AllowHTTP: allowHTTP,
	}
}

func (s *ServiceService) List(ctx context.Context) ([]Service, error) {
	var resp struct {
		Services []Service `json:"services"`
	}
	if err := s.client.do(ctx, http.MethodGet, "/services", nil, &resp); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return resp.Services, nil
}

func (s *ServiceService) Get(ctx context.Context, id uuid.UUID) (*ServiceInfo, error) {
	var info ServiceInfo
	if err := s.client.do(ctx, http.MethodGet, fmt.Sprintf("/service/%s", id), nil, &info); err != nil {
		return nil, fmt.Errorf("fetch service: %w", err)
	}
	return &info, nil
}

func (s *ServiceService) Create(ctx context.Context, req ServiceRequest) (uuid.UUID, error) {
	if req.Region == "" {
		req.Region = "dev"
	}
	if req.InstanceTargets == nil {
		req.InstanceTargets = []InstanceTarget{}
	}
	var resp struct {
		ServiceID uuid.UUID `json:"service_id"`
	}
	if err := s.client.do(ctx, http.MethodPost, "/service", req, &resp); err != nil {
		return uuid.Nil, fmt.Errorf("create service: %w", err)
	}
	return resp.ServiceID, nil
}

// Update replaces the service configuration.
func (s *ServiceService) Update(ctx context.Context, id uuid.UUID, cfg ServiceConfiguration) error {
	if err := s.client.do(ctx, http.MethodPut, fmt.Sprintf("/service/%s", id), cfg, nil); err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

func (s *ServiceService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.do(ctx, http.MethodDelete, fmt.Sprintf("/service/%s", id), nil, nil); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}

func (s *ServiceService) AddTarget(ctx context.Context, id uuid.UUID, target InstanceTarget) (uuid.UUID, error) {
	var resp struct {
		TargetID uuid.UUID `json:"target_id"`
	}
	if err := s.client.do(ctx, http.MethodPost, fmt.Sprintf("/service/%s/target", id), target, &resp); err != nil {
		return uuid.Nil, fmt.Errorf("add target: %w", err)
	}
	return resp.TargetID, nil
}

func (s *ServiceService) DeleteTarget(ctx context.Context, id, targetID uuid.UUID) error {
	endpoint := fmt.Sprintf("/service/%s/target/%s", id, targetID)
	if err := s.client.do(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	return nil
}
