package mockapi

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unisrv/unisrv-cli/pkg/system"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

const (
	certificateTypeACME = "letsencrypt"
	certificateLifetime = 90 * 24 * time.Hour
)

type hostRecord struct {
	userID string
	host   client.Host
}

func (s *Server) listHosts(c *gin.Context) {
	user := currentUser(c)
	s.mu.Lock()
	out := make([]client.Host, 0, len(s.hosts))
	for _, rec := range s.hosts {
		if rec.userID == user {
			out = append(out, rec.host)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	c.JSON(http.StatusOK, out)
}

func (s *Server) claimHost(c *gin.Context) {
	var body struct {
		Host string `json:"host"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Host) == "" {
		abortWithReason(c, http.StatusBadRequest, "host is required")
		return
	}
	domain := strings.ToLower(strings.TrimSuffix(body.Host, "."))
	user := currentUser(c)
	now := client.Timestamp{Time: time.Now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.hosts {
		if rec.host.Host == domain {
			abortWithReason(c, http.StatusConflict, "host %s is already claimed", domain)
			return
		}
	}
	rec := &hostRecord{userID: user, host: client.Host{
		ID:        uuid.New(),
		Host:      domain,
		UserID:    uuid.MustParse(user),
		CreatedAt: now,
		UpdatedAt: now,
	}}
	for _, svc := range s.services {
		if svc.userID == user && strings.EqualFold(svc.host, domain) {
			serviceID := svc.info.ID
			rec.host.ServiceID = &serviceID
		}
	}
	s.hosts[rec.host.ID] = rec
	system.GetReqLogger(c, s.log).Infow("Host claimed", "host", domain)
	c.JSON(http.StatusOK, rec.host)
}

func (s *Server) deleteHost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.hosts[id]
	if !ok || rec.userID != currentUser(c) {
		abortWithReason(c, http.StatusNotFound, "host not found")
		return
	}
	delete(s.hosts, id)
	c.Status(http.StatusNoContent)
}

func (s *Server) requestCertificate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.hosts[id]
	if !ok || rec.userID != currentUser(c) {
		abortWithReason(c, http.StatusNotFound, "host not found")
		return
	}
	now := time.Now().UTC()
	rec.host.CertificateType = certificateTypeACME
	rec.host.CertificateValidUntil = client.Timestamp{Time: now.Add(certificateLifetime)}
	rec.host.UpdatedAt = client.Timestamp{Time: now}
	c.JSON(http.StatusOK, rec.host)
}
