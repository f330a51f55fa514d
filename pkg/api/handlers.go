package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cuemby/connect-watcher/pkg/cluster"
	"github.com/cuemby/connect-watcher/pkg/events"
	"github.com/cuemby/connect-watcher/pkg/health"
	"github.com/cuemby/connect-watcher/pkg/rules"
	"github.com/cuemby/connect-watcher/pkg/types"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// ClusterView is the API representation of a cluster
type ClusterView struct {
	Name      string                 `json:"name"`
	Evaluated bool                   `json:"evaluated"`
	Rules     []rules.Summary        `json:"rules"`
	Snapshot  *types.ClusterSnapshot `json:"snapshot,omitempty"`
	Probe     *health.Status         `json:"probe,omitempty"`
}

func viewOf(h *cluster.Handle, withConnectors bool) ClusterView {
	v := ClusterView{
		Name:  h.Name(),
		Rules: make([]rules.Summary, 0, len(h.Rules())),
		Probe: h.ProbeStatus(),
	}
	for _, r := range h.Rules() {
		v.Rules = append(v.Rules, r.Summary())
	}
	if snapshot, ok := h.Snapshot(); ok {
		if !withConnectors {
			snapshot.Connectors = nil
		}
		v.Evaluated = true
		v.Snapshot = &snapshot
	}
	return v
}

// getStatus returns the watcher state and last cycle
func (s *Server) getStatus(c *gin.Context) {
	body := gin.H{
		"state":    s.source.State(),
		"clusters": len(s.source.Clusters()),
	}
	if last, ok := s.source.LastSnapshot(); ok {
		body["last_cycle"] = last
	}
	c.JSON(http.StatusOK, body)
}

// listClusters returns every cluster without per-connector detail
func (s *Server) listClusters(c *gin.Context) {
	clusters := s.source.Clusters()
	views := make([]ClusterView, 0, len(clusters))
	for _, h := range clusters {
		views = append(views, viewOf(h, false))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(views), "data": views})
}

// getCluster returns one cluster with its per-connector metrics
func (s *Server) getCluster(c *gin.Context) {
	h, ok := s.source.Cluster(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "cluster not found"})
		return
	}
	c.JSON(http.StatusOK, viewOf(h, true))
}

// listEvents returns recent events, optionally filtered by type and cluster
func (s *Server) listEvents(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusOK, gin.H{"count": 0, "data": []*events.Event{}})
		return
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	eventType := events.EventType(c.Query("type"))
	clusterName := c.Query("cluster")

	recent := s.events.Recent(0)
	out := make([]*events.Event, 0, limit)
	for _, e := range recent {
		if eventType != "" && e.Type != eventType {
			continue
		}
		if clusterName != "" && e.Cluster != clusterName {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "data": out})
}
