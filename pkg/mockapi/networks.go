package mockapi

import (
	"net/http"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

type networkRecord struct {
	userID    string
	network   client.Network
	prefix    netip.Prefix
	createdAt client.Timestamp
}

// attached must be called with s.mu held.
func (s *Server) attached(networkID uuid.UUID) []client.NetworkInstance {
	out := []client.NetworkInstance{}
	for _, rec := range s.instances {
		d := rec.detail
		if d.State == client.InstanceStateActive && d.NetworkID != nil && *d.NetworkID == networkID {
			out = append(out, client.NetworkInstance{ID: d.ID, InternalIP: d.NetworkIP})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InternalIP < out[j].InternalIP })
	return out
}

func (s *Server) listNetworks(c *gin.Context) {
	user := currentUser(c)
	withCount := c.Query("include_instance_count") == "true"
	s.mu.Lock()
	out := make([]client.Network, 0, len(s.networks))
	for _, rec := range s.networks {
		if rec.userID != user {
			continue
		}
		n := rec.network
		if withCount {
			count := len(s.attached(n.ID))
			n.InstanceCount = &count
		}
		out = append(out, n)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, gin.H{"networks": out})
}

func (s *Server) getNetwork(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.networks[id]
	if !ok || rec.userID != currentUser(c) {
		abortWithReason(c, http.StatusNotFound, "network not found")
		return
	}
	c.JSON(http.StatusOK, client.NetworkDetail{
		ID:        rec.network.ID,
		Name:      rec.network.Name,
		IPv4CIDR:  rec.network.IPv4CIDR,
		CreatedAt: rec.createdAt,
		Instances: s.attached(id),
	})
}

func (s *Server) createNetwork(c *gin.Context) {
	var req client.NetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithReason(c, http.StatusBadRequest, "invalid network request: %v", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		abortWithReason(c, http.StatusBadRequest, "name is required")
		return
	}
	prefix, err := netip.ParsePrefix(req.IPv4CIDR)
	if err != nil || !prefix.Addr().Is4() {
		abortWithReason(c, http.StatusBadRequest, "invalid IPv4 CIDR: %s", req.IPv4CIDR)
		return
	}
	prefix = prefix.Masked()

	user := currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.networks {
		if other.userID == user && other.network.Name == req.Name {
			abortWithReason(c, http.StatusConflict, "network %s already exists", req.Name)
			return
		}
	}
	rec := &networkRecord{
		userID:    user,
		network:   client.Network{ID: uuid.New(), Name: req.Name, IPv4CIDR: prefix.String()},
		prefix:    prefix,
		createdAt: client.Timestamp{Time: time.Now().UTC()},
	}
	s.networks[rec.network.ID] = rec
	c.JSON(http.StatusOK, rec.network)
}

func (s *Server) deleteNetwork(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.networks[id]
	if !ok || rec.userID != currentUser(c) {
		abortWithReason(c, http.StatusNotFound, "network not found")
		return
	}
	if n := len(s.attached(id)); n > 0 {
		abortWithReason(c, http.StatusConflict, "network still has %d attached instances", n)
		return
	}
	delete(s.networks, id)
	c.Status(http.StatusNoContent)
}
