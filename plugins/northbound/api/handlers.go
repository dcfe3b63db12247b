package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/veesix-networks/aasbus/pkg/events"
	"github.com/veesix-networks/aasbus/pkg/events/codec"
	"github.com/veesix-networks/aasbus/pkg/journal"
	"github.com/veesix-networks/aasbus/pkg/logger"
)

const maxBodySize = 1 << 20

func (c *Component) handlePublish(w http.ResponseWriter, r *http.Request) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.writeError(w, http.StatusTooManyRequests, "publish rate exceeded")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.writeError(w, http.StatusRequestEntityTooLarge, "request body exceeds 1 MiB")
			return
		}
		c.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	msg, err := codec.Decode(body)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg.Source == "" {
		msg.Source = Namespace
	}
	msg = msg.Stamped()

	if err := c.bus.Publish(r.Context(), msg); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, events.ErrUnknownKind), errors.Is(err, events.ErrAbstractKind):
			status = http.StatusBadRequest
		case errors.Is(err, events.ErrQueueFull), errors.Is(err, events.ErrBusClosed):
			status = http.StatusServiceUnavailable
		}
		logger.WithMessage(c.logger, logger.MessageAttrs{
			MessageID: msg.ID,
			Kind:      msg.Kind.String(),
			Element:   msg.Element.String(),
		}).Warn("Publish rejected", "error", err)
		c.writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	c.writeJSON(w, PublishResponse{ID: msg.ID, Kind: msg.Kind})
}

func (c *Component) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	c.writeJSON(w, c.bus.Stats())
}

func (c *Component) handleKinds(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	c.writeJSON(w, kindInfos())
}

func (c *Component) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	c.writeJSON(w, c.GetStatus())
}

func (c *Component) handleValue(w http.ResponseWriter, r *http.Request) {
	c.lookup(w, r, c.journalValue)
}

func (c *Component) handleElement(w http.ResponseWriter, r *http.Request) {
	c.lookup(w, r, c.journalElement)
}

type lookupFunc func(r *http.Request, ref *events.Reference) (json.RawMessage, error)

func (c *Component) journalValue(r *http.Request, ref *events.Reference) (json.RawMessage, error) {
	return c.journal.Value(r.Context(), ref)
}

func (c *Component) journalElement(r *http.Request, ref *events.Reference) (json.RawMessage, error) {
	return c.journal.Element(r.Context(), ref)
}

func (c *Component) lookup(w http.ResponseWriter, r *http.Request, fn lookupFunc) {
	raw := r.URL.Query().Get("ref")
	if raw == "" {
		c.writeError(w, http.StatusBadRequest, "ref required")
		return
	}
	ref, err := events.ParseReference(raw)
	if err != nil {
		c.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if c.journal == nil {
		c.writeError(w, http.StatusNotFound, "journal disabled")
		return
	}

	value, err := fn(r, ref)
	switch {
	case errors.Is(err, journal.ErrNotFound):
		c.writeError(w, http.StatusNotFound, "no state recorded for "+ref.String())
		return
	case err != nil:
		c.logger.Error("Journal lookup failed", "element", ref.String(), "error", err)
		c.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	c.writeJSON(w, ElementResponse{Element: ref.String(), Value: value})
}

func (c *Component) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	c.writeJSON(w, buildOpenAPISpec())
}

func (c *Component) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	c.writeJSON(w, ErrorResponse{Error: message})
}

func (c *Component) writeJSON(w http.ResponseWriter, v interface{}) {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		c.logger.Debug("Failed to write response", "error", err)
	}
}
