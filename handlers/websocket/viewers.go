package websocket

import (
	"fmt"
	"reflect"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// EventSceneSaved is emitted to a scene's room after every stored write.
const EventSceneSaved = "scene-saved"

type ackInvoker func(err error, payload map[string]any)

// Hub tracks the viewers watching each scene over socket.io and tells them when the scene is
// written.
type Hub struct {
	srv *socketio.Server

	mu    sync.RWMutex
	rooms map[string]int
}

var localhostOrigin = regexp.MustCompile(`^https?://(localhost|127\.0\.0\.1|\[::1\])(:\d+)?$`)

// NewHub sets up the socket.io server. Origins are allowed in addition to localhost.
func NewHub(origins []string) *Hub {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	allowed := []any{localhostOrigin}
	for _, o := range origins {
		allowed = append(allowed, o)
	}
	opts.SetCors(&types.Cors{
		Origin:      allowed,
		Credentials: true,
	})

	h := &Hub{
		srv:   socketio.NewServer(nil, opts),
		rooms: make(map[string]int),
	}
	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	h.srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		h.handle(socket)
	})
	return h
}

func (h *Hub) Server() *socketio.Server { return h.srv }

func (h *Hub) handle(socket *socketio.Socket) {
	me := socket.Id()
	log := logrus.WithField("socket_id", me)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("join-room", func(datas ...any) {
		ack, args := extractAck(datas)
		sceneID := ""
		if len(args) > 0 {
			sceneID, _ = args[0].(string)
		}
		if sceneID == "" {
			err := fmt.Errorf("scene id is required")
			respondWithAck(socket, ack, "join-room-ack", map[string]any{
				"status": "error",
				"error":  err.Error(),
			}, err)
			return
		}

		room := socketio.Room(sceneID)
		socket.Join(room)
		log.WithField("scene_id", sceneID).Debug("Viewer joined")

		h.srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, fetchErr error) {
			if fetchErr != nil {
				respondWithAck(socket, ack, "join-room-ack", map[string]any{
					"status": "error",
					"error":  fetchErr.Error(),
				}, fetchErr)
				return
			}
			h.setViewers(sceneID, len(users))
			respondWithAck(socket, ack, "join-room-ack", map[string]any{
				"status":     "ok",
				"user_count": len(users),
			}, nil)
		})
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("disconnecting", func(datas ...any) {
		for _, current := range socket.Rooms().Keys() {
			sceneID := string(current)
			if sceneID == string(me) {
				continue
			}
			h.srv.In(current).FetchSockets()(func(users []*socketio.RemoteSocket, _ error) {
				others := 0
				for _, u := range users {
					if u.Id() != me {
						others++
					}
				}
				h.setViewers(sceneID, others)
				log.WithFields(logrus.Fields{"scene_id": sceneID, "viewers": others}).Debug("Viewer left")
			})
		}
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	socket.On("disconnect", func(datas ...any) {
		socket.RemoveAllListeners("")
	})
}

func (h *Hub) setViewers(sceneID string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 {
		delete(h.rooms, sceneID)
		return
	}
	h.rooms[sceneID] = n
}

// ActiveRooms returns the viewer count of every watched scene.
func (h *Hub) ActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make(map[string]int, len(h.rooms))
	for k, v := range h.rooms {
		rooms[k] = v
	}
	return rooms
}

// SceneSaved notifies the scene's viewers that a new version was stored.
func (h *Hub) SceneSaved(sceneID string, updatedAt time.Time) {
	err := h.srv.To(socketio.Room(sceneID)).Emit(EventSceneSaved, map[string]any{
		"id":        sceneID,
		"updatedAt": updatedAt.UnixMilli(),
	})
	if err != nil {
		logrus.WithField("scene_id", sceneID).WithError(err).Warn("Failed to notify viewers")
	}
}

func (h *Hub) Close() {
	h.srv.Close(nil)
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// wrapAck adapts the client's acknowledgement callback, whatever its signature, to ackInvoker.
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}
	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		value.Call(ackArgs(typ, err, payload))
	}
}

// ackArgs passes (err, payload) positionally; a single-parameter callback gets the error when
// there is one and the payload otherwise.
func ackArgs(typ reflect.Type, err error, payload map[string]any) []reflect.Value {
	args := make([]reflect.Value, typ.NumIn())
	for i := range args {
		var v any
		switch {
		case len(args) == 1 && err != nil:
			v = err
		case len(args) == 1:
			v = payload
		case i == 0:
			v = err
		case i == 1:
			v = payload
		}
		args[i] = coerce(v, typ.In(i))
	}
	return args
}

func coerce(value any, target reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(target):
		return rv
	case rv.Type().ConvertibleTo(target):
		return rv.Convert(target)
	case target.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(target)
	}
	return reflect.Zero(target)
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, ackErr error) {
	if ack != nil {
		ack(ackErr, payload)
	}
	if event != "" && payload != nil {
		_ = socket.Emit(event, payload)
	}
}
