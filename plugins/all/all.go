package all

import (
	_ "github.com/veesix-networks/aasbus/plugins/exporter/prometheus"
	_ "github.com/veesix-networks/aasbus/plugins/northbound/api"
)
