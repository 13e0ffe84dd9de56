package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const (
	InstanceStateActive  = "active"
	InstanceStateStopped = "stopped"
)

type InstanceService struct {
	client *Client
}

func (c *Client) Instances() *InstanceService {
	return &InstanceService{client: c}
}

type ContainerConfiguration struct {
	ContainerImage string            `json:"container_image" yaml:"containerImage"`
	Args           []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env            map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

type Instance struct {
	ID            uuid.UUID              `json:"id" yaml:"id"`
	Name          string                 `json:"name,omitempty" yaml:"name,omitempty"`
	Configuration ContainerConfiguration `json:"configuration" yaml:"configuration"`
	State         string                 `json:"state" yaml:"state"`
	CreatedAt     Timestamp              `json:"created_at" yaml:"createdAt"`
}

func (i Instance) Stopped() bool {
	return i.State == InstanceStateStopped
}

type ServiceTargetInfo struct {
	ID           uuid.UUID `json:"id" yaml:"id"`
	ServiceID    uuid.UUID `json:"service_id" yaml:"serviceId"`
	ServiceType  string    `json:"service_type" yaml:"serviceType"`
	ServiceName  string    `json:"service_name" yaml:"serviceName"`
	InstancePort uint16    `json:"instance_port" yaml:"instancePort"`
}

type InstanceDetail struct {
	ID             uuid.UUID              `json:"id" yaml:"id"`
	Name           string                 `json:"name,omitempty" yaml:"name,omitempty"`
	NodeID         string                 `json:"node_id,omitempty" yaml:"nodeId,omitempty"`
	State          string                 `json:"state" yaml:"state"`
	ExitCode       *int                   `json:"exit_code,omitempty" yaml:"exitCode,omitempty"`
	ExitReason     string                 `json:"exit_reason,omitempty" yaml:"exitReason,omitempty"`
	Configuration  ContainerConfiguration `json:"configuration" yaml:"configuration"`
	CreatedAt      Timestamp              `json:"created_at" yaml:"createdAt"`
	UpdatedAt      Timestamp              `json:"updated_at" yaml:"updatedAt"`
	NetworkID      *uuid.UUID             `json:"network_id,omitempty" yaml:"networkId,omitempty"`
	NetworkIP      string                 `json:"network_ip,omitempty" yaml:"networkIp,omitempty"`
	ServiceTargets []ServiceTargetInfo    `json:"service_targets,omitempty" yaml:"serviceTargets,omitempty"`
}

type InstanceNetwork struct {
	NetworkID  uuid.UUID `json:"network_id"`
	InstanceIP string    `json:"instance_ip"`
}

type InstanceRequest struct {
	Region        string                 `json:"region"`
	VCPURatio     float64                `json:"vcpu_ratio"`
	VCPUCount     uint8                  `json:"vcpu_count"`
	MemoryMB      uint32                 `json:"memory_mb"`
	Name          *string                `json:"name"`
	Configuration ContainerConfiguration `json:"configuration"`
	Network       *InstanceNetwork       `json:"network,omitempty"`
}

type StopRequest struct {
	TimeoutMS uint32 `json:"timeout_ms"`
}

type ExposeRequest struct {
	Port uint16 `json:"port"`
}

type ExposeResponse struct {
	ID              uuid.UUID `json:"id" yaml:"id"`
	ExternalAddress string    `json:"external_address" yaml:"externalAddress"`
}

func (s *InstanceService) List(ctx context.Context) ([]Instance, error) {
	var resp struct {
		Instances []Instance `json:"instances"`
	}
	if err := s.client.do(ctx, http.MethodGet, "/instance/list", nil, &resp); err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return resp.Instances, nil
}

func (s *InstanceService) Get(ctx context.Context, id uuid.UUID) (*InstanceDetail, error) {
	var detail InstanceDetail
	endpoint := fmt.Sprintf("/instance/%s?include_service_targets=true", id)
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &detail); err != nil {
		return nil, fmt.Errorf("fetch instance: %w", err)
	}
	return &detail, nil
}

func (s *InstanceService) Create(ctx context.Context, req InstanceRequest) (uuid.UUID, error) {
	if req.Region == "" {
		req.Region = "dev"
	}
	if req.VCPURatio == 0 {
		req.VCPURatio = 1.0
	}
	var resp struct {
		ID uuid.UUID `json:"id"`
	}
	if err := s.client.do(ctx, http.MethodPost, "/instance", req, &resp); err != nil {
		return uuid.Nil, fmt.Errorf("start instance: %w", err)
	}
	return resp.ID, nil
}

func (s *InstanceService) Stop(ctx context.Context, id uuid.UUID, timeoutMS uint32) error {
	endpoint := fmt.Sprintf("/instance/%s", id)
	if err := s.client.do(ctx, http.MethodDelete, endpoint, StopRequest{TimeoutMS: timeoutMS}, nil); err != nil {
		return fmt.Errorf("stop instance: %w", err)
	}
	return nil
}

func (s *InstanceService) Expose(ctx context.Context, id uuid.UUID, port uint16) (*ExposeResponse, error) {
	var resp ExposeResponse
	endpoint := fmt.Sprintf("/instance/%s/tcp", id)
	if err := s.client.do(ctx, http.MethodPost, endpoint, ExposeRequest{Port: port}, &resp); err != nil {
		return nil, fmt.Errorf("expose instance: %w", err)
	}
	return &resp, nil
}
