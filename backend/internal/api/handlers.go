package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"persinteret/backend/internal/person"
	"persinteret/backend/internal/registry"
	apperrors "persinteret/backend/pkg/errors"
)

// personPayload is the wire shape of a case file. Dates travel as yyyy-mm-dd
// and images as base64.
type personPayload struct {
	ID          *int64   `json:"id,omitempty"`
	Name        string   `json:"name"`
	CodeName    string   `json:"codeName,omitempty"`
	Status      string   `json:"status"`
	DateOfBirth string   `json:"dateOfBirth"`
	Connexions  []string `json:"connexions,omitempty"`
	ImageData   []byte   `json:"imageData,omitempty"`
}

func toPayload(p person.Person) personPayload {
	out := personPayload{
		ID:         p.ID,
		Name:       p.Name,
		CodeName:   p.CodeName,
		Status:     p.Status,
		Connexions: p.Connexions,
		ImageData:  p.ImageData,
	}
	if !p.DateOfBirth.IsZero() {
		out.DateOfBirth = p.DateOfBirth.Format(person.DateLayout)
	}
	return out
}

func (pp personPayload) toPerson() (person.Person, error) {
	p := person.Person{
		ID:         pp.ID,
		Name:       pp.Name,
		CodeName:   pp.CodeName,
		Status:     pp.Status,
		Connexions: pp.Connexions,
		ImageData:  pp.ImageData,
	}
	if pp.DateOfBirth != "" {
		dob, err := person.ParseDate(pp.DateOfBirth)
		if err != nil {
			return person.Person{}, apperrors.NewInvalidArgument("dateOfBirth", fmt.Sprintf("expected yyyy-mm-dd, got %q", pp.DateOfBirth))
		}
		p.DateOfBirth = dob
	}
	return p, nil
}

// Handler serves the registry over HTTP
type Handler struct {
	reg          *registry.Registry
	defaultLimit int
	logger       *zap.Logger
}

// NewHandler creates the HTTP handlers
func NewHandler(reg *registry.Registry, defaultLimit int, log *zap.Logger) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &Handler{reg: reg, defaultLimit: defaultLimit, logger: log}
}

func (h *Handler) listPeople(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, apperrors.NewInvalidArgument("limit", fmt.Sprintf("not a number: %q", raw)))
			return
		}
		limit = n
	}
	withImage, err := boolQuery(c, "withImage")
	if err != nil {
		respondError(c, err)
		return
	}
	withConnexions, err := boolQuery(c, "withConnexions")
	if err != nil {
		respondError(c, err)
		return
	}

	people, err := h.reg.GetPeopleListWith(c.Request.Context(), registry.ListOptions{
		Filter:         c.Query("filter"),
		WithImage:      withImage,
		Limit:          limit,
		WithConnexions: withConnexions,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]personPayload, 0, len(people))
	for _, p := range people {
		out = append(out, toPayload(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getPerson(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	withImage, err := boolQuery(c, "withImage")
	if err != nil {
		respondError(c, err)
		return
	}

	p, err := h.reg.GetPerson(c.Request.Context(), id, withImage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPayload(p))
}

func (h *Handler) savePerson(c *gin.Context) {
	var req personPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := req.toPerson()
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.reg.Save(c.Request.Context(), p)
	if err != nil {
		if apperrors.IsErrorType(err, apperrors.ErrorTypePartialSync) && res.Person.HasID() {
			// The record landed; tell the client which id to retry with.
			_ = c.Error(err)
			body := errorBody(err)
			body["person"] = toPayload(res.Person)
			body["skipped"] = res.Skipped
			c.JSON(http.StatusAccepted, body)
			return
		}
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"person":  toPayload(res.Person),
		"created": res.Created,
		"skipped": res.Skipped,
	})
}

func (h *Handler) repairPerson(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req struct {
		Connexions []string `json:"connexions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	skipped, err := h.reg.Repair(c.Request.Context(), id, req.Connexions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "repaired", "skipped": skipped})
}

func (h *Handler) deletePerson(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.reg.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteAll(c *gin.Context) {
	if err := h.reg.DeleteAll(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.logger.Warn("Registry wiped over HTTP", zap.String("request_id", c.GetString(requestIDKey)))
	c.Status(http.StatusNoContent)
}

func (h *Handler) statistics(c *gin.Context) {
	stats, err := h.reg.GetStatistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) nextTarget(c *gin.Context) {
	name, err := h.reg.GetNextTargetName(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (h *Handler) youngest(c *gin.Context) {
	name, err := h.reg.GetYoungestPerson(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func idParam(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, apperrors.NewInvalidArgument("id", fmt.Sprintf("not a person id: %q", raw))
	}
	return id, nil
}

func boolQuery(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.NewInvalidArgument(key, fmt.Sprintf("not a boolean: %q", raw))
	}
	return v, nil
}
