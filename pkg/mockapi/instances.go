package mockapi

import (
	"fmt"
	"net/http"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unisrv/unisrv-cli/pkg/metrics"
	"github.com/unisrv/unisrv-cli/pkg/system"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

const maxStopTimeoutMS = 600000

type instanceRecord struct {
	userID string
	detail client.InstanceDetail
	logs   []client.LogMessage
}

func (r *instanceRecord) summary() client.Instance {
	return client.Instance{
		ID:            r.detail.ID,
		Name:          r.detail.Name,
		Configuration: r.detail.Configuration,
		State:         r.detail.State,
		CreatedAt:     r.detail.CreatedAt,
	}
}

// SeedInstance stores an instance for username and returns its id. Zero
// values for id, state and creation time are filled in.
func (s *Server) SeedInstance(username string, detail client.InstanceDetail) uuid.UUID {
	if detail.ID == uuid.Nil {
		detail.ID = uuid.New()
	}
	if detail.State == "" {
		detail.State = client.InstanceStateActive
	}
	if detail.CreatedAt.IsZero() {
		detail.CreatedAt = client.Timestamp{Time: time.Now().UTC()}
	}
	if detail.UpdatedAt.IsZero() {
		detail.UpdatedAt = detail.CreatedAt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[detail.ID] = &instanceRecord{userID: UserID(username), detail: detail}
	return detail.ID
}

// SetInstanceLogs replaces the frames streamed for an instance.
func (s *Server) SetInstanceLogs(id uuid.UUID, logs []client.LogMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.instances[id]; ok {
		rec.logs = logs
	}
}

// Instance returns a copy of a stored instance.
func (s *Server) Instance(id uuid.UUID) (client.InstanceDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.instances[id]
	if !ok {
		return client.InstanceDetail{}, false
	}
	return rec.detail, true
}

// ownedInstance must be called with s.mu held.
func (s *Server) ownedInstance(c *gin.Context, id uuid.UUID) (*instanceRecord, bool) {
	rec, ok := s.instances[id]
	if !ok || rec.userID != currentUser(c) {
		return nil, false
	}
	return rec, true
}

func (s *Server) listInstances(c *gin.Context) {
	user := currentUser(c)
	s.mu.Lock()
	out := make([]client.Instance, 0, len(s.instances))
	for _, rec := range s.instances {
		if rec.userID == user {
			out = append(out, rec.summary())
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt.Time) })
	c.JSON(http.StatusOK, gin.H{"instances": out})
}

func (s *Server) getInstance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ownedInstance(c, id)
	if !ok {
		abortWithReason(c, http.StatusNotFound, "instance not found")
		return
	}
	detail := rec.detail
	detail.ServiceTargets = nil
	if c.Query("include_service_targets") == "true" {
		detail.ServiceTargets = s.serviceTargetsFor(id)
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) createInstance(c *gin.Context) {
	log := system.GetReqLogger(c, s.log)
	var req client.InstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithReason(c, http.StatusBadRequest, "invalid instance request: %v", err)
		return
	}
	if err := validateInstanceRequest(req); err != nil {
		abortWithReason(c, http.StatusBadRequest, "%v", err)
		return
	}

	now := client.Timestamp{Time: time.Now().UTC()}
	detail := client.InstanceDetail{
		ID:            uuid.New(),
		State:         client.InstanceStateActive,
		Configuration: req.Configuration,
		CreatedAt:     now,
		UpdatedAt:     now,
		NodeID:        "node-" + req.Region,
	}
	if req.Name != nil {
		detail.Name = *req.Name
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Network != nil {
		if reason, code := s.checkAttachment(c, req.Network); code != 0 {
			abortWithReason(c, code, "%s", reason)
			return
		}
		networkID := req.Network.NetworkID
		detail.NetworkID = &networkID
		detail.NetworkIP = req.Network.InstanceIP
	}
	s.instances[detail.ID] = &instanceRecord{userID: currentUser(c), detail: detail}
	metrics.InstancesStarted.Inc()
	log.Infow("Instance started", "instance", detail.ID, "image", req.Configuration.ContainerImage)
	c.JSON(http.StatusOK, gin.H{"id": detail.ID})
}

func validateInstanceRequest(req client.InstanceRequest) error {
	if strings.TrimSpace(req.Configuration.ContainerImage) == "" {
		return fmt.Errorf("container_image is required")
	}
	if req.VCPUCount == 0 || req.VCPUCount > 32 {
		return fmt.Errorf("vcpu_count must be between 1 and 32")
	}
	if req.MemoryMB < 128 || req.MemoryMB > 131072 {
		return fmt.Errorf("memory_mb must be between 128 and 131072")
	}
	return nil
}

// checkAttachment must be called with s.mu held. A zero code means the
// attachment is valid.
func (s *Server) checkAttachment(c *gin.Context, attach *client.InstanceNetwork) (string, int) {
	network, ok := s.networks[attach.NetworkID]
	if !ok || network.userID != currentUser(c) {
		return "network not found", http.StatusNotFound
	}
	ip, err := netip.ParseAddr(attach.InstanceIP)
	if err != nil || !network.prefix.Contains(ip) {
		return fmt.Sprintf("address %s is not inside %s", attach.InstanceIP, network.prefix), http.StatusBadRequest
	}
	for _, rec := range s.instances {
		if rec.detail.State != client.InstanceStateActive || rec.detail.NetworkID == nil {
			continue
		}
		if *rec.detail.NetworkID == attach.NetworkID && rec.detail.NetworkIP == attach.InstanceIP {
			return fmt.Sprintf("address %s is already in use", attach.InstanceIP), http.StatusConflict
		}
	}
	return "", 0
}

func (s *Server) stopInstance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req client.StopRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithReason(c, http.StatusBadRequest, "invalid stop request: %v", err)
			return
		}
	}
	if req.TimeoutMS > maxStopTimeoutMS {
		abortWithReason(c, http.StatusBadRequest, "timeout_ms must not exceed %d", maxStopTimeoutMS)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.ownedInstance(c, id)
	if !ok {
		abortWithReason(c, http.StatusNotFound, "instance not found")
		return
	}
	if rec.detail.State == client.InstanceStateStopped {
		abortWithReason(c, http.StatusConflict, "instance is already stopped")
		return
	}
	exitCode := 0
	rec.detail.State = client.InstanceStateStopped
	rec.detail.ExitCode = &exitCode
	rec.detail.ExitReason = "stopped by user"
	rec.detail.UpdatedAt = client.Timestamp{Time: time.Now().UTC()}
	metrics.InstancesStopped.Inc()
	system.GetReqLogger(c, s.log).Infow("Instance stopped", "instance", id, "timeoutMS", req.TimeoutMS)
	c.Status(http.StatusNoContent)
}

func (s *Server) exposeInstance(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req client.ExposeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Port == 0 {
		abortWithReason(c, http.StatusBadRequest, "a port between 1 and 65535 is required")
		return
	}
	s.mu.Lock()
	rec, found := s.ownedInstance(c, id)
	active := found && rec.detail.State == client.InstanceStateActive
	s.mu.Unlock()
	if !found {
		abortWithReason(c, http.StatusNotFound, "instance not found")
		return
	}
	if !active {
		abortWithReason(c, http.StatusConflict, "instance is not running")
		return
	}
	external := fmt.Sprintf("%s:%d", s.opts.EdgeAddress, s.portSeq.Add(1))
	c.JSON(http.StatusOK, client.ExposeResponse{ID: uuid.New(), ExternalAddress: external})
}
