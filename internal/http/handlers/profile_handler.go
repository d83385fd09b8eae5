// Profile HTTP handlers.
//
//   - POST  /profiles                 (register the caller)
//   - GET   /profiles/me              (own profile)
//   - GET   /profiles/{id}            (another user's public profile)
//   - PATCH /profiles/me              (partial update)
//   - GET   /profiles/me/completion   (completion summary)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-mentor-match/internal/domain"
	"github.com/tbourn/go-mentor-match/internal/services"
)

// RegisterProfileRequest is the registration payload. The user id is the
// authenticated caller.
type RegisterProfileRequest struct {
	Email        string   `json:"email" binding:"omitempty,email,max=255" example:"ada@example.com"`
	DisplayName  string   `json:"display_name" binding:"required,max=255" example:"Ada Lovelace"`
	Role         string   `json:"role" binding:"required,oneof=mentor mentee" example:"mentor"`
	AvatarURL    string   `json:"avatar_url" binding:"omitempty,url,max=1024"`
	IsPublic     *bool    `json:"is_public"`
	Bio          string   `json:"bio" example:"Backend engineer, 10 years of Go."`
	Skills       []string `json:"skills" binding:"max=50,dive,max=64" example:"go,postgres"`
	Location     string   `json:"location" binding:"max=255" example:"Athens"`
	Experience   string   `json:"experience"`
	Education    string   `json:"education"`
	Languages    []string `json:"languages" binding:"max=20,dive,max=32" example:"en,el"`
	Availability string   `json:"availability" binding:"max=255" example:"weekday evenings"`
	HourlyRate   *float64 `json:"hourly_rate" binding:"omitempty,gte=0" example:"45"`
}

// UpdateProfileRequest is a partial update; absent fields are unchanged.
type UpdateProfileRequest struct {
	DisplayName  *string   `json:"display_name" binding:"omitempty,max=255"`
	AvatarURL    *string   `json:"avatar_url" binding:"omitempty,max=1024"`
	IsPublic     *bool     `json:"is_public"`
	Bio          *string   `json:"bio"`
	Skills       *[]string `json:"skills"`
	Location     *string   `json:"location" binding:"omitempty,max=255"`
	Experience   *string   `json:"experience"`
	Education    *string   `json:"education"`
	Languages    *[]string `json:"languages"`
	Availability *string   `json:"availability" binding:"omitempty,max=255"`
	HourlyRate   *float64  `json:"hourly_rate" binding:"omitempty,gte=0"`
}

// RegisterProfile godoc
// @ID          registerProfile
// @Summary     Register the caller's profile
// @Description Creates the user and their mentor or mentee details. The id is taken from the credentials.
// @Tags        Profiles
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.RegisterProfileRequest  true  "Profile"
// @Success     201   {object}  domain.Profile
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409   {object}  handlers.ErrorResponse  "Profile already exists"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profiles [post]
func (h *Handlers) RegisterProfile(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	var req RegisterProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid profile: "+err.Error())
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	p, err := h.profiles.Register(c.Request.Context(), services.RegisterInput{
		ID:           uid,
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		Role:         domain.Role(req.Role),
		AvatarURL:    req.AvatarURL,
		IsPublic:     isPublic,
		Bio:          req.Bio,
		Skills:       req.Skills,
		Location:     req.Location,
		Experience:   req.Experience,
		Education:    req.Education,
		Languages:    req.Languages,
		Availability: req.Availability,
		HourlyRate:   req.HourlyRate,
	})
	if err != nil {
		failErr(c, err, "")
		return
	}
	c.Header("Location", c.FullPath()+"/me")
	ok(c, http.StatusCreated, p)
}

// GetMyProfile godoc
// @ID          getMyProfile
// @Summary     Get own profile
// @Tags        Profiles
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.Profile
// @Failure     404  {object}  handlers.ErrorResponse  "Not registered yet"
// @Router      /profiles/me [get]
func (h *Handlers) GetMyProfile(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	p, err := h.profiles.Get(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusOK, p)
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get a user's profile
// @Description Private profiles are only visible to their owner and answer 404 for everyone else.
// @Tags        Profiles
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "User ID"
// @Success     200  {object}  domain.Profile
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /profiles/{id} [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	p, err := h.profiles.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err, "")
		return
	}
	if !p.IsPublic && p.ID != uid {
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrProfileNotFound.Error())
		return
	}
	if p.ID != uid {
		p.Email = ""
	}
	ok(c, http.StatusOK, p)
}

// UpdateMyProfile godoc
// @ID          updateMyProfile
// @Summary     Update own profile
// @Description Applies the fields present in the body. Role cannot be changed; hourly_rate only applies to mentors.
// @Tags        Profiles
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.UpdateProfileRequest  true  "Fields to change"
// @Success     200   {object}  domain.Profile
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse  "Not registered yet"
// @Router      /profiles/me [patch]
func (h *Handlers) UpdateMyProfile(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid profile update: "+err.Error())
		return
	}
	p, err := h.profiles.Update(c.Request.Context(), uid, services.UpdateInput{
		DisplayName:  req.DisplayName,
		AvatarURL:    req.AvatarURL,
		IsPublic:     req.IsPublic,
		Bio:          req.Bio,
		Skills:       req.Skills,
		Location:     req.Location,
		Experience:   req.Experience,
		Education:    req.Education,
		Languages:    req.Languages,
		Availability: req.Availability,
		HourlyRate:   req.HourlyRate,
	})
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusOK, p)
}

// GetMyCompletion godoc
// @ID          getMyCompletion
// @Summary     Profile completion
// @Description Percentage of filled profile fields and the names of the missing ones.
// @Tags        Profiles
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.Completion
// @Failure     404  {object}  handlers.ErrorResponse  "Not registered yet"
// @Router      /profiles/me/completion [get]
func (h *Handlers) GetMyCompletion(c *gin.Context) {
	uid, okUser := currentUser(c)
	if !okUser {
		return
	}
	comp, err := h.profiles.Completion(c.Request.Context(), uid)
	if err != nil {
		failErr(c, err, "")
		return
	}
	ok(c, http.StatusOK, comp)
}
