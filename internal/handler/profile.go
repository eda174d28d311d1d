package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/family-kitchen/internal/changefeed"
	"github.com/iliyamo/family-kitchen/internal/middleware"
	"github.com/iliyamo/family-kitchen/internal/model"
)

// ProfileHandler manages the caller's own profile row. It runs behind
// JWTAuth only: completing signup is how a profile comes to exist.
type ProfileHandler struct {
	Profiles ProfileStore
	Meals    MealStore
	notify   notifier
	log      *zap.Logger
}

func NewProfileHandler(profiles ProfileStore, meals MealStore, pub changefeed.Publisher, log *zap.Logger) *ProfileHandler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("profile")
	return &ProfileHandler{Profiles: profiles, Meals: meals, notify: notifier{pub: pub, log: log}, log: log}
}

// GetProfile handles GET /v1/profile; 404 means signup setup is pending.
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()
	p, err := h.Profiles.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		return storeError(c, err, "profile")
	}
	return c.JSON(http.StatusOK, p)
}

type saveProfileReq struct {
	Name       string         `json:"name"`
	Role       model.Role     `json:"role"`
	AvatarURL  string         `json:"avatar_url"`
	Language   model.Language `json:"language"`
	FamilyCode string         `json:"family_code"`
}

// SaveProfile handles PUT /v1/profile. The first call completes signup and
// binds the member to a family; later calls may change everything except
// the family code. The first member of a family gets the starter meals.
func (h *ProfileHandler) SaveProfile(c echo.Context) error {
	var req saveProfileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	family := model.NormalizeFamilyCode(req.FamilyCode)
	if family == "" {
		return badRequest(c, "family_code is required")
	}
	if !req.Role.Valid() {
		return badRequest(c, "role must be Mother, Father, Son or Daughter")
	}
	if req.Language != "" && !req.Language.Valid() {
		return badRequest(c, "language must be en or ar")
	}
	p := &model.Profile{
		ID:         middleware.UserID(c),
		Name:       strings.TrimSpace(req.Name),
		Role:       req.Role,
		AvatarURL:  strings.TrimSpace(req.AvatarURL),
		Language:   req.Language,
		FamilyCode: family,
	}
	if p.Name == "" {
		p.Name = string(p.Role)
	}
	if p.AvatarURL == "" {
		p.AvatarURL = model.DefaultAvatar(p.Role)
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	created, err := h.Profiles.Save(ctx, p)
	if err != nil {
		return storeError(c, err, "profile")
	}
	if created {
		h.seedMeals(c, p)
		h.notify.changed(c, family, model.TableProfiles, model.ChangeInsert, p.ID)
		return c.JSON(http.StatusCreated, p)
	}
	h.notify.changed(c, family, model.TableProfiles, model.ChangeUpdate, p.ID)
	return c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) seedMeals(c echo.Context, p *model.Profile) {
	if h.Meals == nil {
		return
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	n, err := h.Meals.CountByFamily(ctx, p.FamilyCode)
	if err != nil || n > 0 {
		return
	}
	for _, m := range model.StarterMeals() {
		m.FamilyCode, m.CreatedBy = p.FamilyCode, p.ID
		if err := h.Meals.Create(ctx, &m); err != nil {
			h.log.Warn("seed meals failed", zap.String("family", p.FamilyCode), zap.Error(err))
			return
		}
	}
	h.notify.changed(c, p.FamilyCode, model.TableMeals, model.ChangeInsert, "")
}

// PatchLanguage handles PATCH /v1/profile/language.
func (h *ProfileHandler) PatchLanguage(c echo.Context) error {
	var req struct {
		Language model.Language `json:"language"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if !req.Language.Valid() {
		return badRequest(c, "language must be en or ar")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	uid := middleware.UserID(c)
	if err := h.Profiles.UpdateLanguage(ctx, uid, req.Language); err != nil {
		return storeError(c, err, "profile")
	}
	return c.JSON(http.StatusOK, echo.Map{"language": req.Language})
}

// UseCache makes profile writes and the starter-meal seeding drop the
// family's cached reads.
func (h *ProfileHandler) UseCache(inv Invalidator) { h.notify.cache = inv }
