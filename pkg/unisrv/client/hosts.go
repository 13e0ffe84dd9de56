package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type HostService struct {
	client *Client
}

func (c *Client) Hosts() *HostService {
	return &HostService{client: c}
}

type Host struct {
	ID                    uuid.UUID  `json:"id" yaml:"id"`
	Host                  string     `json:"host" yaml:"host"`
	UserID                uuid.UUID  `json:"user_id" yaml:"userId"`
	ServiceID             *uuid.UUID `json:"service_id,omitempty" yaml:"serviceId,omitempty"`
	CertificateType       string     `json:"certificate_type,omitempty" yaml:"certificateType,omitempty"`
	CertificateValidUntil Timestamp  `json:"certificate_valid_until,omitempty" yaml:"certificateValidUntil,omitempty"`
	CreatedAt             Timestamp  `json:"created_at" yaml:"createdAt"`
	UpdatedAt             Timestamp  `json:"updated_at" yaml:"updatedAt"`
}

func (s *HostService) List(ctx context.Context) ([]Host, error) {
	var hosts []Host
	if err := s.client.do(ctx, http.MethodGet, "/hosts", nil, &hosts); err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	return hosts, nil
}

func (s *HostService) Claim(ctx context.Context, domain string) (*Host, error) {
	var host Host
	body := map[string]string{"host": domain}
	if err := s.client.do(ctx, http.MethodPost, "/hosts", body, &host); err != nil {
		return nil, fmt.Errorf("claim host: %w", err)
	}
	if host.Host == "" {
		host.Host = domain
	}
	return &host, nil
}

func (s *HostService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.do(ctx, http.MethodDelete, fmt.Sprintf("/hosts/%s", id), nil, nil); err != nil {
		return fmt.Errorf("delete host: %w", err)
	}
	return nil
}

// RequestCertificate asks the API to provision a TLS certificate and returns
// the updated host.
func (s *HostService) RequestCertificate(ctx context.Context, id uuid.UUID) (*Host, error) {
	var host Host
	if err := s.client.do(ctx, http.MethodPost, fmt.Sprintf("/hosts/%s/cert", id), nil, &host); err != nil {
		return nil, fmt.Errorf("request certificate: %w", err)
	}
	return &host, nil
}
