package models

// User is a row in the usuarios table. PasswordHash never leaves the server.
type User struct {
	ID           int    `json:"id"`
	Nombre       string `json:"nombre"`
	Email        string `json:"email"`
	Rol          string `json:"rol"`
	PasswordHash string `json:"-"`
}

const (
	RolAdministrador = "administrador"
	RolUsuario       = "usuario"
)

// Site is a patrol checkpoint. Its ID is the literal integer content of the
// QR code placed at the physical location.
type Site struct {
	ID    int    `json:"id"`
	Lugar string `json:"lugar"`
}

// RecordView is the joined listing row returned by GET /records.
// Fecha is already display-formatted (DD/MM/YYYY, HH:MM:SS).
type RecordView struct {
	ID            int      `json:"id"`
	Fecha         string   `json:"fecha"`
	Latitud       *float64 `json:"latitud"`
	Longitud      *float64 `json:"longitud"`
	UsuarioNombre string   `json:"usuario_nombre"`
	SitioNombre   string   `json:"sitio_nombre"`
}

// ConfigEntry is a row in the config table.
type ConfigEntry struct {
	Clave       string `json:"clave"`
	Valor       string `json:"valor"`
	Descripcion string `json:"descripcion,omitempty"`
}

// Round window configuration keys.
const (
	ConfigHoraInicioRonda = "HORA_INICIO_RONDA"
	ConfigHoraFinRonda    = "HORA_FIN_RONDA"
)

// Coverage statuses for a site within the active round window.
const (
	CoverageOK     = "ok"
	CoverageMissed = "missed"
)

// SiteCoverage is the per-site line of the round report.
// UltimoRegistro is nil when the site was missed.
type SiteCoverage struct {
	Lugar          string  `json:"lugar"`
	Status         string  `json:"status"`
	UltimoRegistro *string `json:"ultimoRegistro"`
}

// RondaHours echoes the configured window back to the report viewer.
type RondaHours struct {
	HoraInicio string `json:"horaInicio"`
	HoraFin    string `json:"horaFin"`
}

// RondaWindow is the concrete window the report was computed over.
// Inicia and Termina are literal "YYYY-MM-DD HH:MM:SS" text.
type RondaWindow struct {
	Inicia  string     `json:"inicia"`
	Termina string     `json:"termina"`
	Config  RondaHours `json:"config"`
}

// RondaReport is the response of GET /ronda/status.
type RondaReport struct {
	Ronda  RondaWindow    `json:"ronda"`
	Sitios []SiteCoverage `json:"sitios"`
}
