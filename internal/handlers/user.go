package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/garba-app/apiserver/internal/services"
	"github.com/garba-app/apiserver/types"
)

const (
	minPasswordLength  = 6
	maxMultipartMemory = 16 << 20
	maxPictureBytes    = 8 << 20

	formFieldFullName   = "fullName"
	formFieldEmail      = "email"
	formFieldMobile     = "mobile"
	formFieldPassword   = "password"
	formFieldAge        = "age"
	formFieldGender     = "gender"
	formFieldGarbaSkill = "garbaSkill"
	formFieldLocation   = "location"
	formFieldBio        = "bio"
	formFieldPicture    = "profilePicture"
)

// UserHandler provides registration and login endpoints.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService) {
	handler := NewUserHandler(userService)

	r.Post("/", handler.Register)
	r.Post("/register", handler.RegisterWithFile)
	r.Post("/login", handler.Login)
}

type RegisterRequest struct {
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	Password   string `json:"password"`
	Age        *int   `json:"age"`
	Gender     string `json:"gender"`
	GarbaSkill string `json:"garbaSkill"`
	Location   string `json:"location"`
	Bio        string `json:"bio"`
	// ProfilePicture is optional base64-encoded image data.
	ProfilePicture string `json:"profilePicture"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// Register creates a user from a JSON body, with an optional inline
// base64-encoded profile picture.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	input, err := registerInputFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.register(w, r, input)
}

// RegisterWithFile creates a user from multipart form data, with an
// optional uploaded profile picture file. Both registration paths converge
// on the same service contract.
func (h *UserHandler) RegisterWithFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var age *int
	if ageStr := strings.TrimSpace(r.FormValue(formFieldAge)); ageStr != "" {
		parsed, err := parseAge(ageStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		age = parsed
	}

	picture, err := formFileBytes(r, formFieldPicture)
	if err != nil {
		writeError(w, http.StatusBadRequest, "error processing profile picture")
		return
	}

	input := services.RegisterInput{
		FullName:   strings.TrimSpace(r.FormValue(formFieldFullName)),
		Email:      strings.TrimSpace(r.FormValue(formFieldEmail)),
		Mobile:     strings.TrimSpace(r.FormValue(formFieldMobile)),
		Password:   r.FormValue(formFieldPassword),
		Age:        age,
		Gender:     r.FormValue(formFieldGender),
		GarbaSkill: r.FormValue(formFieldGarbaSkill),
		Location:   r.FormValue(formFieldLocation),
		Bio:        r.FormValue(formFieldBio),
		Picture:    picture,
	}
	if err := validateRegisterInput(input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.register(w, r, input)
}

func (h *UserHandler) register(w http.ResponseWriter, r *http.Request, input services.RegisterInput) {
	created, err := h.userService.Register(r.Context(), input)
	if err != nil {
		var conflict *services.ConflictError
		if errors.As(err, &conflict) {
			writeError(w, http.StatusBadRequest, conflict.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// Login verifies credentials against an email or mobile identifier and
// returns the user plus a session token.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, token, err := h.userService.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

func registerInputFromRequest(req RegisterRequest) (services.RegisterInput, error) {
	input := services.RegisterInput{
		FullName:   strings.TrimSpace(req.FullName),
		Email:      strings.TrimSpace(req.Email),
		Mobile:     strings.TrimSpace(req.Mobile),
		Password:   req.Password,
		Age:        req.Age,
		Gender:     req.Gender,
		GarbaSkill: req.GarbaSkill,
		Location:   req.Location,
		Bio:        req.Bio,
	}

	if picture := strings.TrimSpace(req.ProfilePicture); picture != "" {
		data, err := base64.StdEncoding.DecodeString(picture)
		if err != nil {
			return services.RegisterInput{}, errors.New("invalid profile picture format")
		}
		input.Picture = data
	}

	if err := validateRegisterInput(input); err != nil {
		return services.RegisterInput{}, err
	}
	return input, nil
}

func validateRegisterInput(input services.RegisterInput) error {
	if input.FullName == "" || input.Email == "" || input.Mobile == "" || input.Password == "" {
		return errors.New("missing required fields")
	}
	if !strings.Contains(input.Email, "@") {
		return errors.New("invalid email address")
	}
	if len(input.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if input.Age != nil && (*input.Age < 0 || *input.Age > 120) {
		return errors.New("age must be between 0 and 120")
	}
	if len(input.Bio) > 500 {
		return errors.New("bio must be at most 500 characters")
	}
	return nil
}

func parseAge(ageStr string) (*int, error) {
	age, err := strconv.Atoi(ageStr)
	if err != nil {
		return nil, errors.New("invalid age format")
	}
	if age < 0 || age > 120 {
		return nil, errors.New("age must be between 0 and 120")
	}
	return &age, nil
}

// formFileBytes reads an optional uploaded file field. A missing file is
// not an error; it simply returns nil bytes.
func formFileBytes(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, maxPictureBytes))
}
