package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/UkralStul/content-engine/internal/access"
	"github.com/UkralStul/content-engine/internal/domain"
	"github.com/UkralStul/content-engine/internal/post"
	"github.com/UkralStul/content-engine/internal/storage"
)

// parseCriteria переводит query-параметры в post.Criteria без нормализации:
// границы и значения по умолчанию применяет Composer.
func parseCriteria(q url.Values) (post.Criteria, error) {
	var (
		c   post.Criteria
		err error
	)
	for name, dst := range map[string]*int64{
		"authorId":   &c.AuthorID,
		"languageId": &c.LanguageID,
		"originalId": &c.OriginalID,
	} {
		if raw := q.Get(name); raw != "" {
			if *dst, err = positiveInt(name, raw); err != nil {
				return c, err
			}
		}
	}
	for name, dst := range map[string]*int{"page": &c.Page, "limit": &c.Limit} {
		if raw := q.Get(name); raw != "" {
			if *dst, err = strconv.Atoi(raw); err != nil {
				return c, invalidParam(name, raw)
			}
		}
	}
	if raw := q.Get("matchAll"); raw != "" {
		if c.MatchAll, err = strconv.ParseBool(raw); err != nil {
			return c, invalidParam("matchAll", raw)
		}
	}
	if c.Categories, err = post.ParseCategorySelector(q.Get("categoryIds")); err != nil {
		return c, err
	}

	c.Status = domain.PostStatus(q.Get("status"))
	c.Sort = storage.SortOrder(q.Get("sort"))
	c.Locale = q.Get("locale")
	c.AuthorName = q.Get("authorName")
	c.Title = q.Get("title")
	c.Text = q.Get("text")
	return c, nil
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", domain.ErrInvalidArgument)
	}
	return nil
}

// searchPosts - полный поиск по всем статусам, доступен модераторам.
func (h *handler) searchPosts(w http.ResponseWriter, r *http.Request) {
	if !access.CanModerate(CallerFrom(r.Context())) {
		respondError(w, r, fmt.Errorf("search across all posts: %w", domain.ErrUnauthorized))
		return
	}
	crit, err := parseCriteria(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := h.Composer.Search(r.Context(), crit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, res, "posts found")
}

func (h *handler) approvedPosts(w http.ResponseWriter, r *http.Request) {
	crit, err := parseCriteria(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := h.Composer.ApprovedPosts(r.Context(), crit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, res, "posts found")
}

func (h *handler) ownPosts(w http.ResponseWriter, r *http.Request) {
	crit, err := parseCriteria(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := h.Composer.OwnPosts(r.Context(), CallerFrom(r.Context()), crit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, res, "posts found")
}

func (h *handler) postByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.Composer.PostByID(r.Context(), CallerFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p, "post found")
}

func (h *handler) approvedPostByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.Composer.ApprovedPostByID(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p, "post found")
}

func (h *handler) ownPostByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.Composer.OwnPostByID(r.Context(), CallerFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p, "post found")
}

func (h *handler) createPost(w http.ResponseWriter, r *http.Request) {
	var in post.Input
	if err := decode(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.Posts.CreatePost(r.Context(), CallerFrom(r.Context()), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, p, "post created")
}

func (h *handler) updatePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var in post.Input
	if err := decode(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.Posts.UpdatePost(r.Context(), CallerFrom(r.Context()), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p, "post updated")
}

func (h *handler) disablePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.Posts.DisablePost(r.Context(), CallerFrom(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p, "post disabled")
}

type statusRequest struct {
	Status domain.PostStatus `json:"status"`
}

func (h *handler) setPostStatus(w http.ResponseWriter, r *http.Request) {
	if !access.CanModerate(CallerFrom(r.Context())) {
		respondError(w, r, fmt.Errorf("moderation requires moderator role: %w", domain.ErrUnauthorized))
		return
	}
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.Posts.SetPostStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, p, "post status updated")
}
