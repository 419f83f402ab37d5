package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/royalacademy/backoffice/core"
)

var keepAliveInterval = 15 * time.Second

type eventsApi struct {
	store  core.RecordStore
	logger core.Logger
}

func registerEventsAPI(g *echo.Group, store core.RecordStore, logger core.Logger) {
	api := eventsApi{store: store, logger: logger}
	g.GET("/events", api.stream)
}

// stream sends every committed change as a Server-Sent Event, until the client goes away.
// Dashboards reload the named collection when they receive one.
func (api *eventsApi) stream(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	changes, err := api.store.Subscribe(reqCtx)
	if err != nil {
		return errors.Wrap(err, "subscribing to changes")
	}

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-reqCtx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			data, err := json.Marshal(change)
			if err != nil {
				api.logger.Error("events: encoding change", err)
				continue
			}
			if _, err := fmt.Fprintf(res, "id: %s:%d\nevent: change\ndata: %s\n\n", change.Name, change.Version, data); err != nil {
				return nil
			}
			res.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
