package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"

	"github.com/coreman2200/roomlight/internal/render"
)

// frame is one preview message. RGB is the quantized post-transform frame.
type frame struct {
	T       int64  `json:"t" msgpack:"t"`
	FrameID uint64 `json:"frame_id" msgpack:"frame_id"`
	RGB     []byte `json:"rgb" msgpack:"rgb"`
}

type client struct {
	binary bool
}

// preview keeps the latest emitted frame and pushes it to websocket clients
// no faster than its limiter allows. Emit never blocks the scheduler.
type preview struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	latest  []byte
	frameID uint64
	clients map[*websocket.Conn]client

	wake chan struct{}
}

func newPreview(l *rate.Limiter) *preview {
	return &preview{
		limiter: l,
		clients: map[*websocket.Conn]client{},
		wake:    make(chan struct{}, 1),
	}
}

func (p *preview) Emit(buf render.Buffer) error {
	p.mu.Lock()
	p.latest = render.Bytes(buf, p.latest)
	p.frameID++
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

func (p *preview) run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			p.closeAll()
			return
		case <-p.wake:
		}
		if r := p.limiter.Reserve(); r.OK() {
			select {
			case <-done:
				r.Cancel()
				p.closeAll()
				return
			case <-time.After(r.Delay()):
			}
		}
		p.broadcast()
	}
}

func (p *preview) snapshot() (frame, map[*websocket.Conn]client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := frame{T: time.Now().UnixNano(), FrameID: p.frameID, RGB: append([]byte(nil), p.latest...)}
	cs := make(map[*websocket.Conn]client, len(p.clients))
	for c, v := range p.clients {
		cs[c] = v
	}
	return f, cs
}

func (p *preview) broadcast() {
	f, clients := p.snapshot()
	if len(clients) == 0 {
		return
	}
	var text, bin []byte
	for c, cl := range clients {
		var (
			kind = websocket.TextMessage
			b    []byte
			err  error
		)
		if cl.binary {
			if bin == nil {
				bin, err = msgpack.Marshal(f)
			}
			kind, b = websocket.BinaryMessage, bin
		} else {
			if text == nil {
				text, err = json.Marshal(f)
			}
			b = text
		}
		if err != nil {
			log.Warn().Err(err).Msg("encode preview frame")
			return
		}
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(kind, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

func (p *preview) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.clients[conn] = client{binary: r.URL.Query().Get("format") == "msgpack"}
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.clients, conn)
			p.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (p *preview) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

func (p *preview) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := range p.clients {
		_ = c.Close()
	}
}
