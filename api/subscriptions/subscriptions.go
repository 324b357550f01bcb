// Copyright (c) 2025 The RockPool developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package subscriptions streams committed pool operation events over
// websockets. Slow readers are skipped, not waited for; the stream carries
// what happens from the moment of subscription on.
package subscriptions

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/rockpool-labs/rockpool/api/utils"
	"github.com/rockpool-labs/rockpool/co"
	"github.com/rockpool-labs/rockpool/log"
	"github.com/rockpool-labs/rockpool/metrics"
	"github.com/rockpool-labs/rockpool/pool"
	"github.com/rockpool-labs/rockpool/rock"
)

var (
	logger = log.WithContext("pkg", "subs")

	metricActiveWebsocketCount = metrics.LazyLoadGaugeVec("api_active_websocket_count", []string{"subject"})
)

const (
	eventQueueSize = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// message pairs an event with its dispatch sequence, the message cache key.
type message struct {
	seq   uint64
	event *pool.Event
}

type Subscriptions struct {
	store    *pool.Store
	upgrader *websocket.Upgrader
	cache    *messageCache
	done     chan struct{}
	goes     co.Goes

	mu        sync.RWMutex
	listeners map[chan *message]struct{}
}

// New subscribes to the store's event feed and starts the dispatch loop.
// Call Close to stop it.
func New(store *pool.Store, allowedOrigins []string, cacheSize uint32) *Subscriptions {
	sub := &Subscriptions{
		store: store,
		upgrader: &websocket.Upgrader{
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || strings.EqualFold(allowed, origin) {
						return true
					}
				}
				return false
			},
		},
		cache:     newMessageCache(cacheSize),
		done:      make(chan struct{}),
		listeners: make(map[chan *message]struct{}),
	}
	sub.goes.Go(sub.dispatchLoop)
	return sub
}

func (s *Subscriptions) subscribe(ch chan *message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners[ch] = struct{}{}
}

func (s *Subscriptions) unsubscribe(ch chan *message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listeners, ch)
}

// dispatchLoop assigns sequence numbers and fans events out to every
// listener without blocking on any of them.
func (s *Subscriptions) dispatchLoop() {
	ch := make(chan *pool.Event, eventQueueSize)
	sub := s.store.SubscribeEvents(ch)
	defer sub.Unsubscribe()

	var seq uint64
	for {
		select {
		case ev := <-ch:
			seq++
			msg := &message{seq, ev}
			s.mu.RLock()
			for lsn := range s.listeners {
				select {
				case lsn <- msg:
				case <-s.done:
					s.mu.RUnlock()
					return
				default: // a full listener queue drops the event for that socket
				}
			}
			s.mu.RUnlock()
		case <-s.done:
			return
		}
	}
}

func (s *Subscriptions) handleSubscribeEvents(w http.ResponseWriter, req *http.Request) error {
	var poolFilter *rock.Address
	if q := req.URL.Query().Get("pool"); q != "" {
		addr, err := rock.ParseAddress(q)
		if err != nil {
			return utils.BadRequest(errors.WithMessage(err, "pool"))
		}
		poolFilter = addr
	}
	opFilter := req.URL.Query().Get("op")

	// register before the handshake completes, so no event committed after
	// the dial can be missed
	ch := make(chan *message, eventQueueSize)
	s.subscribe(ch)
	defer s.unsubscribe(ch)

	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrader has already replied
		logger.Debug("websocket upgrade failed", "err", err)
		return nil
	}
	defer conn.Close()

	metricActiveWebsocketCount().AddWithLabel(1, map[string]string{"subject": "events"})
	defer metricActiveWebsocketCount().AddWithLabel(-1, map[string]string{"subject": "events"})

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-ch:
			if poolFilter != nil && *poolFilter != msg.event.Pool {
				continue
			}
			if opFilter != "" && opFilter != msg.event.Op {
				continue
			}
			data, _, err := s.cache.GetOrAdd(msg.seq, func() ([]byte, error) {
				return json.Marshal(msg.event)
			})
			if err != nil {
				return err
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("websocket write failed", "err", err)
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("websocket ping failed", "err", err)
				return nil
			}
		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket closed abnormally", "err", err)
			}
			return nil
		case <-s.done:
			return nil
		}
	}
}

// Close stops the dispatch loop and releases every connected socket.
func (s *Subscriptions) Close() {
	close(s.done)
	s.goes.Wait()
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/events").
		Methods(http.MethodGet).
		Name("GET /subscriptions/events").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribeEvents))
}
