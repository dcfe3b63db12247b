package logger

const (
	Main     = "main"
	Bus      = "bus"
	Forward  = "forward"
	External = "external"
	Broker   = "broker"
	Journal  = "journal"
	Gateway  = "gateway"
	Exporter = "exporter.prometheus"
	Console  = "console"
)
