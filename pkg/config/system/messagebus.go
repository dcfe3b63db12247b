package system

type MessageBusType string

const (
	MessageBusInternal        MessageBusType = "internal"
	MessageBusInternalForward MessageBusType = "internal-forward"
	MessageBusExternal        MessageBusType = "external"
)

type MessageBusConfig struct {
	Type MessageBusType `json:"type,omitempty" yaml:"type,omitempty"`
	// QueueCapacity bounds the dispatch queue; 0 keeps it unbounded.
	QueueCapacity  int           `json:"queue_capacity,omitempty" yaml:"queue_capacity,omitempty"`
	OverflowPolicy string        `json:"overflow_policy,omitempty" yaml:"overflow_policy,omitempty"`
	DebugKinds     []string      `json:"debug_kinds,omitempty" yaml:"debug_kinds,omitempty"`
	Forward        ForwardConfig `json:"forward,omitempty" yaml:"forward,omitempty"`
}

type ForwardConfig struct {
	TopicPrefix string   `json:"topic_prefix,omitempty" yaml:"topic_prefix,omitempty"`
	Kinds       []string `json:"kinds,omitempty" yaml:"kinds,omitempty"`
}
