package ops

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	kdb "github.com/opst/pht-central/pkg/db"
	"github.com/opst/pht-central/pkg/domain"
	"github.com/opst/pht-central/pkg/mq"
	"github.com/sirupsen/logrus"
)

// RegistryEvent is a webhook payload of the registry (Harbor).
type RegistryEvent struct {
	Type      string          `json:"type"`
	OccurAt   int64           `json:"occur_at"`
	Operator  string          `json:"operator,omitempty"`
	EventData json.RawMessage `json:"event_data,omitempty"`
}

type registryHook struct {
	clients kdb.ClientInterface
	pub     mq.Publisher
	logger  logrus.FieldLogger
}

func (h *registryHook) Handle(c echo.Context) error {
	if c.Param("service") != domain.Registry.String() {
		return errorResponse(http.StatusNotFound, "no hooks for the service", "")
	}

	ctx := c.Request().Context()
	id, secret, ok := c.Request().BasicAuth()
	if !ok {
		return errorResponse(http.StatusUnauthorized, "credential is required", "")
	}
	authorized, err := h.authorize(c, id, secret)
	if err != nil {
		return err
	}
	if !authorized {
		h.logger.WithField("client", id).Warn("registry hook is rejected")
		return errorResponse(http.StatusUnauthorized, "credential is not acceptable", "")
	}

	ev := RegistryEvent{}
	if err := json.NewDecoder(c.Request().Body).Decode(&ev); err != nil {
		return errorResponse(http.StatusBadRequest, "payload is not json", "")
	}
	if ev.Type == "" {
		return errorResponse(http.StatusBadRequest, "payload has no type", "")
	}

	if err := mq.Emit(ctx, h.pub, mq.RegistryEvent, ev); err != nil {
		return err
	}
	h.logger.WithField("event", ev.Type).Debug("registry event is accepted")
	return c.NoContent(http.StatusAccepted)
}

func (h *registryHook) authorize(c echo.Context, id string, secret string) (bool, error) {
	clients, err := h.clients.FindByService(c.Request().Context(), domain.Registry)
	if err != nil {
		return false, err
	}
	for _, cl := range clients {
		if cl.Id != id {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(cl.Secret), []byte(secret)) == 1 {
			return true, nil
		}
	}
	return false, nil
}
