package mockapi

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unisrv/unisrv-cli/pkg/system"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

const serviceTypeHTTP = "http"

type serviceRecord struct {
	userID string
	host   string
	info   client.ServiceInfo
}

// Service returns a copy of a stored service.
func (s *Server) Service(id uuid.UUID) (client.ServiceInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.services[id]
	if !ok {
		return client.ServiceInfo{}, false
	}
	return rec.info, true
}

// serviceTargetsFor must be called with s.mu held.
func (s *Server) serviceTargetsFor(instanceID uuid.UUID) []client.ServiceTargetInfo {
	var out []client.ServiceTargetInfo
	for _, rec := range s.services {
		for _, t := range rec.info.Targets {
			if t.InstanceID != instanceID {
				continue
			}
			out = append(out, client.ServiceTargetInfo{
				ID:           t.ID,
				ServiceID:    rec.info.ID,
				ServiceType:  rec.info.Type,
				ServiceName:  rec.info.Name,
				InstancePort: t.InstancePort,
			})
		}
	}
	return out
}

func (s *Server) ownedService(c *gin.Context, id uuid.UUID) (*serviceRecord, bool) {
	rec, ok := s.services[id]
	if !ok || rec.userID != currentUser(c) {
		return nil, false
	}
	return rec, true
}

func (s *Server) listServices(c *gin.Context) {
	user := currentUser(c)
	s.mu.Lock()
	out := make([]client.Service, 0, len(s.services))
	for _, rec := range s.services {
		if rec.userID == user {
			out = append(out, client.Service{ID: rec.info.ID, Name: rec.info.Name, Type: rec.info.Type})
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, gin.H{"services": out})
}

func (s *Server) getService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ownedService(c, id)
	if !ok {
		abortWithReason(c, http.StatusNotFound, "service not found")
		return
	}
	c.JSON(http.StatusOK, rec.info)
}

func (s *Server) createService(c *gin.Context) {
	var req client.ServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithReason(c, http.StatusBadRequest, "invalid service request: %v", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Host) == "" {
		abortWithReason(c, http.StatusBadRequest, "name and host are required")
		return
	}
	if err := validateConfiguration(req.Configuration); err != nil {
		abortWithReason(c, http.StatusBadRequest, "%v", err)
		return
	}

	user := currentUser(c)
	now := client.Timestamp{Time: time.Now().UTC()}
	info := client.ServiceInfo{
		ID:            uuid.New(),
		Name:          req.Name,
		Type:          serviceTypeHTTP,
		Configuration: req.Configuration,
		UserID:        uuid.MustParse(user),
		CreatedAt:     now,
		UpdatedAt:     now,
		Providers: []client.ServiceProvider{{
			ID:           uuid.New(),
			NodeID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte("edge-"+req.Region)),
			RouteAddress: s.opts.EdgeAddress,
			CreatedAt:    now,
		}},
		Targets: []client.ServiceTarget{},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.services {
		if strings.EqualFold(other.host, req.Host) {
			abortWithReason(c, http.StatusConflict, "host %s is already used by another service", req.Host)
			return
		}
	}
	for _, target := range req.InstanceTargets {
		if _, ok := s.ownedInstance(c, target.InstanceID); !ok {
			abortWithReason(c, http.StatusNotFound, "instance %s not found", target.InstanceID)
			return
		}
		info.Targets = append(info.Targets, newTarget(target, now))
	}
	for _, h := range s.hosts {
		if h.userID == user && strings.EqualFold(h.host.Host, req.Host) {
			serviceID := info.ID
			h.host.ServiceID = &serviceID
		}
	}
	s.services[info.ID] = &serviceRecord{userID: user, host: req.Host, info: info}
	system.GetReqLogger(c, s.log).Infow("Service created", "service", info.ID, "host", req.Host)
	c.JSON(http.StatusOK, gin.H{"service_id": info.ID})
}

func newTarget(target client.InstanceTarget, now client.Timestamp) client.ServiceTarget {
	group := target.Group
	if group == "" {
		group = client.DefaultTargetGroup
	}
	return client.ServiceTarget{
		ID:           uuid.New(),
		InstanceID:   target.InstanceID,
		InstancePort: target.InstancePort,
		Group:        group,
		CreatedAt:    now,
	}
}

func validateConfiguration(cfg client.ServiceConfiguration) error {
	seen := map[string]bool{}
	for _, l := range cfg.Locations {
		if !strings.HasPrefix(l.Path, "/") {
			return fmt.Errorf("location path %q must start with /", l.Path)
		}
		if seen[l.Path] {
			return fmt.Errorf("duplicate location path %q", l.Path)
		}
		seen[l.Path] = true
		switch l.Target.Type {
		case client.LocationTargetInstance:
		case client.LocationTargetURL:
			u, err := url.Parse(l.Target.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("location %s has an invalid url target", l.Path)
			}
		default:
			return fmt.Errorf("location %s has unknown target type %q", l.Path, l.Target.Type)
		}
	}
	return nil
}

func (s *Server) updateService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var cfg client.ServiceConfiguration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		abortWithReason(c, http.StatusBadRequest, "invalid service configuration: %v", err)
		return
	}
	if err := validateConfiguration(cfg); err != nil {
		abortWithReason(c, http.StatusBadRequest, "%v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ownedService(c, id)
	if !ok {
		abortWithReason(c, http.StatusNotFound, "service not found")
		return
	}
	rec.info.Configuration = cfg
	rec.info.UpdatedAt = client.Timestamp{Time: time.Now().UTC()}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteService(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ownedService(c, id); !ok {
		abortWithReason(c, http.StatusNotFound, "service not found")
		return
	}
	delete(s.services, id)
	for _, h := range s.hosts {
		if h.host.ServiceID != nil && *h.host.ServiceID == id {
			h.host.ServiceID = nil
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) addTarget(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var target client.InstanceTarget
	if err := c.ShouldBindJSON(&target); err != nil {
		abortWithReason(c, http.StatusBadRequest, "invalid target: %v", err)
		return
	}
	if target.InstancePort == 0 {
		abortWithReason(c, http.StatusBadRequest, "instance_port is required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ownedService(c, id)
	if !ok {
		abortWithReason(c, http.StatusNotFound, "service not found")
		return
	}
	inst, ok := s.ownedInstance(c, target.InstanceID)
	if !ok {
		abortWithReason(c, http.StatusNotFound, "instance %s not found", target.InstanceID)
		return
	}
	if inst.detail.State != client.InstanceStateActive {
		abortWithReason(c, http.StatusConflict, "instance %s is not running", target.InstanceID)
		return
	}
	created := newTarget(target, client.Timestamp{Time: time.Now().UTC()})
	rec.info.Targets = append(rec.info.Targets, created)
	c.JSON(http.StatusOK, gin.H{"target_id": created.ID})
}

func (s *Server) deleteTarget(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	targetID, ok := paramID(c, "tid")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ownedService(c, id)
	if !ok {
		abortWithReason(c, http.StatusNotFound, "service not found")
		return
	}
	for i, t := range rec.info.Targets {
		if t.ID == targetID {
			rec.info.Targets = append(rec.info.Targets[:i], rec.info.Targets[i+1:]...)
			c.Status(http.StatusNoContent)
			return
		}
	}
	abortWithReason(c, http.StatusNotFound, "target not found")
}
