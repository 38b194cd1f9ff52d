package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ctellolasalle/RondinLS/internal/db"
	"github.com/ctellolasalle/RondinLS/internal/models"
	"github.com/ctellolasalle/RondinLS/internal/service"
	"github.com/ctellolasalle/RondinLS/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence contract the handlers depend on. Implemented
// by db.PostgresRepository; faked in tests.
type Store interface {
	Ping(ctx context.Context) error

	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, nombre, email, passwordHash, rol string) error
	UpdateUserPassword(ctx context.Context, id int, passwordHash string) error

	ListSites(ctx context.Context) ([]models.Site, error)
	CreateSite(ctx context.Context, lugar string) (models.Site, error)
	UpdateSite(ctx context.Context, id int, lugar string) error
	DeleteSite(ctx context.Context, id int) error

	InsertScan(ctx context.Context, siteID, userID int, fecha *string, lat, lon *float64) error
	ListRecords(ctx context.Context, filter db.RecordFilter) ([]models.RecordView, error)
	Stats(ctx context.Context) (totalSitios, registrosHoy int, err error)

	ListConfig(ctx context.Context) ([]models.ConfigEntry, error)
	UpdateConfig(ctx context.Context, settings []models.ConfigEntry) error
	LoadConfig(ctx context.Context) (map[string]string, error)
}

type Handlers struct {
	store      Store
	ronda      *service.RondaService
	config     *service.ConfigCache
	jwtSecret  string
	bcryptCost int
	logger     *slog.Logger
}

func NewHandlers(store Store, ronda *service.RondaService, config *service.ConfigCache, jwtSecret string, bcryptCost int, logger *slog.Logger) *Handlers {
	return &Handlers{
		store:      store,
		ronda:      ronda,
		config:     config,
		jwtSecret:  jwtSecret,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// ---- auth ----

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato de peticion invalido"})
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.Error("Login lookup failed", "email", req.Email, "error", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Credenciales incorrectas"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Credenciales incorrectas"})
		return
	}

	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Rol:    user.Rol,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.jwtSecret))
	if err != nil {
		h.logger.Error("Token signing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// ---- scans ----

type scanRequest struct {
	IDSitio  int      `json:"id_sitio"`
	Fecha    *string  `json:"fecha"`
	Latitud  *float64 `json:"latitud"`
	Longitud *float64 `json:"longitud"`
}

// CreateScan ingests one checkpoint visit. The operator comes from the
// token, never from the body. Duplicates are accepted by design: a guard
// may legally scan the same site twice, and a client retry after an
// ambiguous network failure inserts a second row rather than being
// rejected.
func (h *Handlers) CreateScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.ScansIngested.WithLabelValues("validation_error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato de peticion invalido"})
		return
	}

	if req.IDSitio <= 0 {
		metrics.ScansIngested.WithLabelValues("validation_error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "id_sitio invalido"})
		return
	}
	if req.Fecha != nil && !models.ValidFecha(*req.Fecha) {
		metrics.ScansIngested.WithLabelValues("validation_error").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "fecha invalida"})
		return
	}

	userID := c.GetInt(ctxUserID)

	if err := h.store.InsertScan(c.Request.Context(), req.IDSitio, userID, req.Fecha, req.Latitud, req.Longitud); err != nil {
		h.logger.Error("Scan persistence failed", "id_sitio", req.IDSitio, "id_usuario", userID, "error", err)
		metrics.ScansIngested.WithLabelValues("db_error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo registrar el escaneo"})
		return
	}

	metrics.ScansIngested.WithLabelValues("created").Inc()
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Escaneo registrado"})
}

// ---- sites ----

func (h *Handlers) ListSites(c *gin.Context) {
	sites, err := h.store.ListSites(c.Request.Context())
	if err != nil {
		h.logger.Error("Site listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudieron cargar los sitios"})
		return
	}
	if sites == nil {
		sites = []models.Site{}
	}
	c.JSON(http.StatusOK, sites)
}

type siteRequest struct {
	Lugar string `json:"lugar"`
}

func (h *Handlers) CreateSite(c *gin.Context) {
	var req siteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Lugar == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "El nombre del sitio no puede estar vacío."})
		return
	}

	site, err := h.store.CreateSite(c.Request.Context(), req.Lugar)
	if err != nil {
		h.logger.Error("Site creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo crear el sitio"})
		return
	}
	c.JSON(http.StatusCreated, site)
}

func (h *Handlers) UpdateSite(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id invalido"})
		return
	}

	var req siteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Lugar == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "El nombre del sitio no puede estar vacío."})
		return
	}

	if err := h.store.UpdateSite(c.Request.Context(), id, req.Lugar); err != nil {
		h.logger.Error("Site update failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo actualizar el sitio"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Sitio actualizado correctamente."})
}

func (h *Handlers) DeleteSite(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id invalido"})
		return
	}

	if err := h.store.DeleteSite(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrSiteHasRecords) {
			c.JSON(http.StatusConflict, gin.H{"error": "No se puede eliminar el sitio porque tiene registros de rondas asociados."})
			return
		}
		h.logger.Error("Site deletion failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo eliminar el sitio"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Sitio eliminado correctamente."})
}

// ---- records / stats ----

func (h *Handlers) ListRecords(c *gin.Context) {
	filter := db.RecordFilter{
		FechaDesde: c.Query("fecha_desde"),
		UsuarioID:  atoiOrZero(c.Query("usuario_id")),
		SitioID:    atoiOrZero(c.Query("sitio_id")),
		Limit:      atoiOrZero(c.Query("limit")),
	}

	// A bare date filter should cover its whole day.
	if hasta := c.Query("fecha_hasta"); hasta != "" {
		filter.FechaHasta = hasta + " 23:59:59"
	}

	records, err := h.store.ListRecords(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Record listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudieron cargar los registros"})
		return
	}
	if records == nil {
		records = []models.RecordView{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handlers) Stats(c *gin.Context) {
	totalSitios, registrosHoy, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudieron cargar las estadisticas"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalSitios": totalSitios, "registrosHoy": registrosHoy})
}

// ---- users ----

func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("User listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudieron cargar los usuarios"})
		return
	}
	if users == nil {
		users = []models.User{}
	}
	c.JSON(http.StatusOK, users)
}

type createUserRequest struct {
	Nombre   string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Rol      string `json:"rol"`
}

func (h *Handlers) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Nombre == "" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nombre, email y password son obligatorios"})
		return
	}
	if req.Rol == "" {
		req.Rol = models.RolUsuario
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		h.logger.Error("Password hashing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno"})
		return
	}

	if err := h.store.CreateUser(c.Request.Context(), req.Nombre, req.Email, string(hash), req.Rol); err != nil {
		h.logger.Error("User creation failed", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo crear el usuario"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Usuario creado"})
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (h *Handlers) UpdateUserPassword(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id invalido"})
		return
	}

	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "La contraseña debe tener al menos 6 caracteres."})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		h.logger.Error("Password hashing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno"})
		return
	}

	if err := h.store.UpdateUserPassword(c.Request.Context(), id, string(hash)); err != nil {
		h.logger.Error("Password update failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo actualizar la contraseña"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contraseña actualizada correctamente."})
}

// ---- config ----

func (h *Handlers) ListConfig(c *gin.Context) {
	entries, err := h.store.ListConfig(c.Request.Context())
	if err != nil {
		h.logger.Error("Config listing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo cargar la configuración"})
		return
	}
	if entries == nil {
		entries = []models.ConfigEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// UpdateConfig commits all settings in one transaction, then swaps the
// process-wide cache. Requests served between commit and swap still see
// the previous snapshot.
func (h *Handlers) UpdateConfig(c *gin.Context) {
	var settings []models.ConfigEntry
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato de peticion invalido"})
		return
	}

	if err := h.store.UpdateConfig(c.Request.Context(), settings); err != nil {
		h.logger.Error("Config update failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al actualizar la configuración"})
		return
	}

	if err := h.config.Reload(c.Request.Context(), h.store); err != nil {
		h.logger.Error("Config cache reload failed after update", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error al recargar la configuración"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Configuración actualizada."})
}

// ---- ronda ----

func (h *Handlers) RondaStatus(c *gin.Context) {
	report, err := h.ronda.Report(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrConfigMissing) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "La configuración de horas de ronda no está definida."})
			return
		}
		h.logger.Error("Ronda report failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo generar el reporte de ronda"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ---- health ----

func (h *Handlers) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		metrics.HealthStatus.Set(0)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unreachable"})
		return
	}
	metrics.HealthStatus.Set(1)
	c.String(http.StatusOK, "OK")
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
