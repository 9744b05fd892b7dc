package httpapi

import (
	"net/http"
	"strconv"

	"github.com/ron808/eagrouter/internal/address"
	"github.com/ron808/eagrouter/internal/grid"
)

type nodeResponse struct {
	ID              int    `json:"id"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
	Address         string `json:"address"`
	IsDeliveryPoint bool   `json:"is_delivery_point"`
}

func nodeView(n grid.Node) nodeResponse {
	return nodeResponse{ID: n.ID, X: n.X, Y: n.Y, Address: address.ToAddress(n.X, n.Y), IsDeliveryPoint: n.IsDeliveryPoint}
}

type blockedEdgeResponse struct {
	FromNodeID int `json:"from_node_id"`
	ToNodeID   int `json:"to_node_id"`
}

type restaurantResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	NodeID  int    `json:"node_id"`
	Address string `json:"address"`
}

type gridResponse struct {
	Nodes          []nodeResponse        `json:"nodes"`
	Restaurants    []restaurantResponse  `json:"restaurants"`
	DeliveryPoints []nodeResponse        `json:"delivery_points"`
	BlockedEdges   []blockedEdgeResponse `json:"blocked_edges"`
}

func (s *Server) gridNodeViews() []nodeResponse {
	nodes := s.engine.Grid().Nodes()
	out := make([]nodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeView(n))
	}
	return out
}

func (s *Server) gridRestaurantViews() []restaurantResponse {
	restaurants := s.engine.Restaurants()
	out := make([]restaurantResponse, 0, len(restaurants))
	for _, r := range restaurants {
		addr := ""
		if n, ok := s.engine.Grid().Node(r.NodeID); ok {
			addr = address.ToAddress(n.X, n.Y)
		}
		out = append(out, restaurantResponse{ID: r.ID, Name: r.Name, NodeID: r.NodeID, Address: addr})
	}
	return out
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	nodes := s.gridNodeViews()
	deliveryPoints := make([]nodeResponse, 0)
	for _, n := range nodes {
		if n.IsDeliveryPoint {
			deliveryPoints = append(deliveryPoints, n)
		}
	}
	edges := s.engine.Grid().BlockedEdges()
	edgeViews := make([]blockedEdgeResponse, 0, len(edges))
	for _, e := range edges {
		edgeViews = append(edgeViews, blockedEdgeResponse{FromNodeID: e.FromNodeID, ToNodeID: e.ToNodeID})
	}
	writeCacheableJSON(w, r, gridResponse{
		Nodes:          nodes,
		Restaurants:    s.gridRestaurantViews(),
		DeliveryPoints: deliveryPoints,
		BlockedEdges:   edgeViews,
	})
}

func (s *Server) handleGridNodes(w http.ResponseWriter, r *http.Request) {
	writeCacheableJSON(w, r, s.gridNodeViews())
}

func (s *Server) handleGridNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid input", "malformed node id")
		return
	}
	n, ok := s.engine.Grid().Node(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "node %d", id)
		return
	}
	writeJSON(w, http.StatusOK, nodeView(n))
}

func (s *Server) handleGridRestaurants(w http.ResponseWriter, r *http.Request) {
	writeCacheableJSON(w, r, s.gridRestaurantViews())
}

func (s *Server) handleGridDeliveryPoints(w http.ResponseWriter, r *http.Request) {
	nodes := s.gridNodeViews()
	out := make([]nodeResponse, 0)
	for _, n := range nodes {
		if n.IsDeliveryPoint {
			out = append(out, n)
		}
	}
	writeCacheableJSON(w, r, out)
}

func (s *Server) handleGridBlockedEdges(w http.ResponseWriter, r *http.Request) {
	edges := s.engine.Grid().BlockedEdges()
	out := make([]blockedEdgeResponse, 0, len(edges))
	for _, e := range edges {
		out = append(out, blockedEdgeResponse{FromNodeID: e.FromNodeID, ToNodeID: e.ToNodeID})
	}
	writeCacheableJSON(w, r, out)
}
