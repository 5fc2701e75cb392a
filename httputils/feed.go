// Copyright (c) 2025 - The Habitkit authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httputils

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	hk "github.com/habitkit/habitkit"
	"github.com/habitkit/habitkit/codec/json"
	"github.com/habitkit/habitkit/uuid"
)

var upgrader = websocket.Upgrader{} // use default options

// handler forwards matched changes to a websocket connection.
type handler struct {
	id string
	ch chan forwarded
}

type forwarded struct {
	ctx    context.Context
	change hk.Change
}

// HandlerType implements the HandlerType method of the habitkit.ChangeHandler interface.
func (h *handler) HandlerType() hk.ChangeHandlerType {
	return hk.ChangeHandlerType("websocket_" + h.id)
}

// HandleChange implements the HandleChange method of the habitkit.ChangeHandler interface.
func (h *handler) HandleChange(ctx context.Context, change hk.Change) error {
	select {
	case h.ch <- forwarded{ctx, change}:
	default:
		return fmt.Errorf("missed change: %s %s", change.Op, change.HabitID)
	}

	return nil
}

// ChangeFeedHandler is a websocket handler for habit changes. Changes
// matching the matcher are forwarded as JSON to every request that has been
// upgraded to a websocket.
func ChangeFeedHandler(feed hk.ChangeFeed, m hk.ChangeMatcher, id string) http.Handler {
	codec := &json.ChangeCodec{}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Print("habitkit: websocket upgrade:", err)

			return
		}

		defer c.Close()

		// A handler type per connection, so that every connection gets
		// all changes.
		h := &handler{
			id: id + "_" + uuid.New().String(),
			ch: make(chan forwarded, 10),
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if err := feed.AddHandler(ctx, m, h); err != nil {
			log.Print("habitkit: could not add websocket handler:", err)

			return
		}

		for f := range h.ch {
			data, err := codec.MarshalChange(f.ctx, f.change)
			if err != nil {
				log.Print("habitkit: could not marshal change:", err)

				continue
			}

			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Print("habitkit: websocket write:", err)

				break
			}
		}
	})
}
