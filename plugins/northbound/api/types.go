package api

import (
	"encoding/json"

	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/version"
)

type Status struct {
	State         string       `json:"state"`
	ListenAddress string       `json:"listen_address"`
	Running       bool         `json:"running"`
	Streams       int          `json:"streams"`
	Version       version.Info `json:"version"`
}

type PublishResponse struct {
	ID   string      `json:"id"`
	Kind events.Kind `json:"kind"`
}

type ElementResponse struct {
	Element string          `json:"element"`
	Value   json.RawMessage `json:"value"`
}

type KindInfo struct {
	Name     string `json:"name"`
	Parent   string `json:"parent,omitempty"`
	Abstract bool   `json:"abstract"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func kindInfos() []KindInfo {
	kinds := events.Kinds()
	out := make([]KindInfo, 0, len(kinds))
	for _, k := range kinds {
		info := KindInfo{Name: k.String(), Abstract: k.Abstract()}
		if parent, ok := k.Parent(); ok {
			info.Parent = parent.String()
		}
		out = append(out, info)
	}
	return out
}
