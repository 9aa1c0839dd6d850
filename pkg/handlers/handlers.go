package handlers

import (
	"errors"
	"io"
	"net/http"

	"bedmatch/pkg/accounts"
	"bedmatch/pkg/apperr"
	"bedmatch/pkg/auth"
	"bedmatch/pkg/config"
	"bedmatch/pkg/matching"
	"bedmatch/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	config   *config.Config
	accounts *accounts.Service
	matching *matching.Service
	auth     *auth.Auth
	log      *zap.Logger
}

// New creates a new Handlers instance
func New(cfg *config.Config, accountSvc *accounts.Service, matchingSvc *matching.Service, a *auth.Auth, log *zap.Logger) *Handlers {
	return &Handlers{
		config:   cfg,
		accounts: accountSvc,
		matching: matchingSvc,
		auth:     a,
		log:      log,
	}
}

// fail writes err as {"message": ...} with the status its kind maps to
func fail(c *gin.Context, err error, fallback string) {
	c.JSON(apperr.HTTPStatus(apperr.KindOf(err)), gin.H{"message": apperr.Message(err, fallback)})
}

// ============== Auth Handlers ==============

// Register creates a patient or hospital account
func (h *Handlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}

	if _, err := h.accounts.Register(c.Request.Context(), req); err != nil {
		fail(c, err, "Something went wrong")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

// Login handles user login
func (h *Handlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		fail(c, err, "Something went wrong")
		return
	}

	if err := h.auth.Login(c, account.Username); err != nil {
		h.log.Error("open session", zap.String("username", account.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful"})
}

// Logout handles user logout
func (h *Handlers) Logout(c *gin.Context) {
	if err := h.auth.Logout(c); err != nil {
		h.log.Error("destroy session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not log out"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

// ============== Helper Handlers ==============

// WhoAmI reports the logged-in account, re-read from the store
func (h *Handlers) WhoAmI(c *gin.Context) {
	username := auth.Username(c)
	if username == "" {
		c.JSON(http.StatusOK, gin.H{"loggedIn": false, "user": nil})
		return
	}

	account, err := h.accounts.Lookup(c.Request.Context(), username)
	if apperr.Is(err, apperr.KindNotFound) {
		c.JSON(http.StatusOK, gin.H{"loggedIn": false, "user": nil})
		return
	}
	if err != nil {
		fail(c, err, "Something went wrong")
		return
	}
	c.JSON(http.StatusOK, gin.H{"loggedIn": true, "user": account})
}

// Username reports whether ?username= is free to register
func (h *Handlers) Username(c *gin.Context) {
	if err := h.accounts.CheckUsername(c.Request.Context(), c.Query("username")); err != nil {
		c.JSON(apperr.HTTPStatus(apperr.KindOf(err)), gin.H{
			"available": false,
			"message":   apperr.Message(err, "Error checking username"),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "message": "Username is available"})
}

// ============== Matching Handlers ==============

// ListHospitals returns every hospital's bed summary
func (h *Handlers) ListHospitals(c *gin.Context) {
	hospitals, err := h.matching.ListHospitals(c.Request.Context())
	if err != nil {
		fail(c, err, "Error fetching hospitals")
		return
	}
	c.JSON(http.StatusOK, hospitals)
}

// Request sends the logged-in patient's admission request
func (h *Handlers) Request(c *gin.Context) {
	var req models.TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Hospital username is required"})
		return
	}

	res, err := h.matching.Request(c.Request.Context(), auth.Username(c), req.To)
	if err != nil {
		fail(c, err, "Error processing request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Request sent successfully to " + res.Hospital.Name})
}

// Cancel withdraws the logged-in patient's pending request
func (h *Handlers) Cancel(c *gin.Context) {
	res, err := h.matching.Cancel(c.Request.Context(), auth.Username(c))
	if err != nil {
		fail(c, err, "Error canceling request")
		return
	}
	msg := "Request canceled successfully"
	if res.Hospital != nil {
		msg += " to " + res.Hospital.Name
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Admit admits a pending patient to the logged-in hospital
func (h *Handlers) Admit(c *gin.Context) {
	who, ok := bindPatient(c)
	if !ok {
		return
	}

	res, err := h.matching.Admit(c.Request.Context(), auth.Username(c), who)
	if err != nil {
		fail(c, err, "Error admitting user")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "User " + who + " admitted to " + res.Hospital.Name + ".",
		"requests": res.Hospital.Requests,
		"admits":   res.Hospital.Admits,
	})
}

// Release discharges an admitted patient from the logged-in hospital
func (h *Handlers) Release(c *gin.Context) {
	who, ok := bindPatient(c)
	if !ok {
		return
	}

	res, err := h.matching.Release(c.Request.Context(), auth.Username(c), who)
	if err != nil {
		fail(c, err, "Error releasing user")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User " + who + " released from " + res.Hospital.Name + ".",
		"admits":  res.Hospital.Admits,
	})
}

// Reject drops a pending request at the logged-in hospital
func (h *Handlers) Reject(c *gin.Context) {
	who, ok := bindPatient(c)
	if !ok {
		return
	}

	res, err := h.matching.Reject(c.Request.Context(), auth.Username(c), who)
	if err != nil {
		fail(c, err, "Error rejecting user")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "User " + who + " rejected from " + res.Hospital.Name + ".",
		"requests": res.Hospital.Requests,
	})
}

func bindPatient(c *gin.Context) (string, bool) {
	var req models.PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Patient username is required"})
		return "", false
	}
	return req.Who, true
}

// ============== Profile Handlers ==============

// NewAvatar replaces the logged-in account's avatar with an uploaded image
func (h *Handlers) NewAvatar(c *gin.Context) {
	// leave room for multipart framing around the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, accounts.MaxAvatarSize+1<<20)

	header, err := c.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Image must be 10MB or smaller"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "No image file found"})
		return
	}
	if header.Size > accounts.MaxAvatarSize {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Image must be 10MB or smaller"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.log.Error("open upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, accounts.MaxAvatarSize+1))
	if err != nil {
		h.log.Error("read upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Something went wrong"})
		return
	}

	account, err := h.accounts.UpdateAvatar(c.Request.Context(), auth.Username(c), image)
	if err != nil {
		fail(c, err, "Something went wrong")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Avatar updated successfully", "user": account})
}
