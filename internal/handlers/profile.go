package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/garba-app/apiserver/internal/services"
	"github.com/garba-app/apiserver/internal/store"
)

// ProfileHandler provides authenticated profile endpoints.
type ProfileHandler struct {
	userService  *services.UserService
	imageService *services.ImageService
}

func NewProfileHandler(userService *services.UserService, imageService *services.ImageService) *ProfileHandler {
	return &ProfileHandler{
		userService:  userService,
		imageService: imageService,
	}
}

// ProfileRouter registers profile routes on the given router. Every route
// requires a valid bearer token.
func ProfileRouter(r chi.Router, userService *services.UserService, imageService *services.ImageService, tokens *services.TokenService) {
	handler := NewProfileHandler(userService, imageService)

	r.Use(requireAuth(tokens))
	r.Get("/me", handler.Me)
	r.Get("/picture", handler.GetPicture)
	r.Get("/picture/{imageID}", handler.GetPictureByID)
	r.Put("/update", handler.Update)
}

type UpdateProfileRequest struct {
	FullName   *string `json:"fullName"`
	Age        *int    `json:"age"`
	GarbaSkill *string `json:"garbaSkill"`
	Location   *string `json:"location"`
	Bio        *string `json:"bio"`
	// ProfilePicture is optional base64-encoded image data.
	ProfilePicture string `json:"profilePicture"`
}

// Me returns the authenticated user's profile.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetProfile(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// GetPicture serves the authenticated user's profile picture, resolved
// through the user's own image reference.
func (h *ProfileHandler) GetPicture(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetProfile(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	if user.ProfilePicID == nil {
		writeError(w, http.StatusNotFound, "No profile picture found")
		return
	}

	h.servePicture(w, r, *user.ProfilePicID)
}

// GetPictureByID serves a picture by its ID taken straight from the path.
// No ownership check happens here beyond holding a valid token.
func (h *ProfileHandler) GetPictureByID(w http.ResponseWriter, r *http.Request) {
	imageID, err := strconv.ParseInt(chi.URLParam(r, "imageID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	h.servePicture(w, r, imageID)
}

func (h *ProfileHandler) servePicture(w http.ResponseWriter, r *http.Request, imageID int64) {
	data, err := h.imageService.Fetch(r.Context(), imageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile picture not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load picture")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Update applies a partial profile update. The handler accepts either a
// JSON body or multipart form data with an uploaded picture file; both
// converge on the same service contract.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	principal, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input services.UpdateProfileInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		input, err = updateInputFromForm(r)
	} else {
		input, err = updateInputFromJSON(r)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), principal.UserID, input)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func updateInputFromJSON(r *http.Request) (services.UpdateProfileInput, error) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return services.UpdateProfileInput{}, errors.New("invalid request")
	}

	input := services.UpdateProfileInput{
		FullName:   req.FullName,
		Age:        req.Age,
		GarbaSkill: req.GarbaSkill,
		Location:   req.Location,
		Bio:        req.Bio,
	}

	if picture := strings.TrimSpace(req.ProfilePicture); picture != "" {
		data, err := base64.StdEncoding.DecodeString(picture)
		if err != nil {
			return services.UpdateProfileInput{}, errors.New("invalid profile picture format")
		}
		input.Picture = data
	}

	return input, validateUpdateInput(input)
}

func updateInputFromForm(r *http.Request) (services.UpdateProfileInput, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.UpdateProfileInput{}, errors.New("invalid multipart form")
	}

	var input services.UpdateProfileInput
	if value, ok := formValue(r, formFieldFullName); ok {
		input.FullName = &value
	}
	if value, ok := formValue(r, formFieldGarbaSkill); ok {
		input.GarbaSkill = &value
	}
	if value, ok := formValue(r, formFieldLocation); ok {
		input.Location = &value
	}
	if value, ok := formValue(r, formFieldBio); ok {
		input.Bio = &value
	}
	if ageStr := strings.TrimSpace(r.FormValue(formFieldAge)); ageStr != "" {
		age, err := parseAge(ageStr)
		if err != nil {
			return services.UpdateProfileInput{}, err
		}
		input.Age = age
	}

	picture, err := formFileBytes(r, formFieldPicture)
	if err != nil {
		return services.UpdateProfileInput{}, errors.New("error processing profile picture")
	}
	input.Picture = picture

	return input, validateUpdateInput(input)
}

func validateUpdateInput(input services.UpdateProfileInput) error {
	if input.Age != nil && (*input.Age < 0 || *input.Age > 120) {
		return errors.New("age must be between 0 and 120")
	}
	if input.Bio != nil && len(*input.Bio) > 500 {
		return errors.New("bio must be at most 500 characters")
	}
	return nil
}

func formValue(r *http.Request, field string) (string, bool) {
	values, ok := r.MultipartForm.Value[field]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
