package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/UkralStul/content-engine/internal/thread"
)

func parsePageRequest(r *http.Request) (thread.PageRequest, error) {
	var req thread.PageRequest
	q := r.URL.Query()
	if raw := q.Get("cursor"); raw != "" {
		cursor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, invalidParam("cursor", raw)
		}
		req.Cursor = &cursor
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return req, invalidParam("limit", raw)
		}
		req.Limit = limit
	}
	return req, nil
}

func (h *handler) listComments(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := parsePageRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := h.Paginator.ListTopLevel(r.Context(), CallerFrom(r.Context()), postID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, page, "comments found")
}

func (h *handler) listReplies(w http.ResponseWriter, r *http.Request) {
	parentID, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	req, err := parsePageRequest(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := h.Paginator.ListReplies(r.Context(), CallerFrom(r.Context()), parentID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, page, "replies found")
}

type commentRequest struct {
	ParentID *int64 `json:"parentId,omitempty"`
	Content  string `json:"content"`
}

func (h *handler) createComment(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req commentRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.Comments.Create(r.Context(), CallerFrom(r.Context()), thread.CreateInput{
		PostID:   postID,
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, c, "comment created")
}

func (h *handler) updateComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req commentRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.Comments.Update(r.Context(), CallerFrom(r.Context()), id, req.Content)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, c, "comment updated")
}

func (h *handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.Comments.Delete(r.Context(), CallerFrom(r.Context()), id); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil, "comment deleted")
}

// liveComments отдает новые комментарии поста по websocket, пока клиент подключен.
// Видимость проверяется до апгрейда, чтобы ошибка ушла обычным JSON-ответом.
func (h *handler) liveComments(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, err := h.Comments.Watch(ctx, CallerFrom(ctx), postID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.Logger.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Читаем только чтобы заметить закрытие соединения клиентом
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()

	for {
		select {
		case c, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(c); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}
