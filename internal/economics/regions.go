package economics

// DataCenterRegion names the region requests are routed to.
const DataCenterRegion = "Nordics (Renewable Optimized)"

// RegionInfo summarizes the ecosystem around the serving region.
type RegionInfo struct {
	Region       string  `json:"region"`
	Status       string  `json:"status"`
	ImpactFactor float64 `json:"impactFactor"`
}

// BiodiversityRegion is the ecosystem the biodiversity score refers to.
var BiodiversityRegion = RegionInfo{
	Region:       "Northern Europe",
	Status:       "Sensitive Wetlands Ecosystem",
	ImpactFactor: 0.12,
}

// NodeMetrics are the per-node indicators shown on the regional dashboard.
type NodeMetrics struct {
	Social       string `json:"social"`
	Water        string `json:"water"`
	Energy       string `json:"energy"`
	Biodiversity string `json:"biodiversity"`
}

// Node is a bio-regional data-centre node.
type Node struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Location string      `json:"location"`
	Health   int         `json:"health"`
	Status   string      `json:"status"`
	Metrics  NodeMetrics `json:"metrics"`
}

// Nodes is the read-only catalogue of bio-regional nodes.
var Nodes = []Node{
	{
		ID: "arc-1", Name: "Arctic Edge", Location: "Luleå, SE", Health: 98, Status: "Pristine",
		Metrics: NodeMetrics{Social: "High Employment", Water: "0.01L/t", Energy: "100% Wind", Biodiversity: "Near Zero Loss"},
	},
	{
		ID: "fin-1", Name: "Central Mire", Location: "Oulu, FI", Health: 84, Status: "Recovering",
		Metrics: NodeMetrics{Social: "Local Grant Pgm", Water: "0.04L/t", Energy: "90% Geo", Biodiversity: "Offset Verified"},
	},
	{
		ID: "nor-1", Name: "Atlantic Coast", Location: "Bergen, NO", Health: 91, Status: "Stable",
		Metrics: NodeMetrics{Social: "Uni-Partnership", Water: "0.02L/t", Energy: "100% Hydro", Biodiversity: "Marine Protected"},
	},
	{
		ID: "swi-1", Name: "Alpine High", Location: "Zürich, CH", Health: 76, Status: "Monitored",
		Metrics: NodeMetrics{Social: "Carbon Tax Contrib", Water: "0.08L/t", Energy: "Solar/Grid", Biodiversity: "Fragmented"},
	},
}

// NodeByID looks a node up by id.
func NodeByID(id string) (Node, bool) {
	for _, n := range Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
