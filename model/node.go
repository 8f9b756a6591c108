package model

// NodeType is a free-form category for a node, e.g. "host", "router".
// It is purely descriptive: delay computation only ever looks at the
// hop's link and device fields, never at the node type.
type NodeType string

const (
	NodeHost         NodeType = "host"
	NodeRouter       NodeType = "router"
	NodeSwitch       NodeType = "switch"
	NodeServer       NodeType = "server"
	NodeFirewall     NodeType = "firewall"
	NodeLoadBalancer NodeType = "load-balancer"
	NodeSatellite    NodeType = "satellite"
)

// Node is one endpoint or forwarding device on a path. A path with N hops
// has N+1 nodes; node i is the source of hop i and node i+1 its destination.
type Node struct {
	Name string   `json:"name"`
	Type NodeType `json:"type"`
}
