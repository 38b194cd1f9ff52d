package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ctellolasalle/RondinLS/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("row not found")

	// ErrSiteHasRecords blocks deletion of a site that still has
	// associated round registros (mapped to 409 at the API).
	ErrSiteHasRecords = errors.New("site has associated records")
)

type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresRepository(ctx context.Context, connString string, logger *slog.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		return nil, fmt.Errorf("no response from postgres: %w", err)
	}

	return &PostgresRepository{pool: p, logger: logger}, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// ---- usuarios ----

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT id, nombre, email, rol, password_hash
		FROM usuarios
		WHERE email = $1
	`
	var u models.User
	err := r.pool.QueryRow(ctx, query, email).Scan(&u.ID, &u.Nombre, &u.Email, &u.Rol, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, nombre, email, rol FROM usuarios ORDER BY nombre`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Nombre, &u.Email, &u.Rol); err != nil {
			return nil, fmt.Errorf("user scan error: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresRepository) CreateUser(ctx context.Context, nombre, email, passwordHash, rol string) error {
	query := `INSERT INTO usuarios (nombre, email, password_hash, rol) VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, query, nombre, email, passwordHash, rol); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateUserPassword(ctx context.Context, id int, passwordHash string) error {
	query := `UPDATE usuarios SET password_hash = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// ---- sitios ----

func (r *PostgresRepository) ListSites(ctx context.Context) ([]models.Site, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, lugar FROM sitios ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		var s models.Site
		if err := rows.Scan(&s.ID, &s.Lugar); err != nil {
			return nil, fmt.Errorf("site scan error: %w", err)
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

func (r *PostgresRepository) CreateSite(ctx context.Context, lugar string) (models.Site, error) {
	var s models.Site
	query := `INSERT INTO sitios (lugar) VALUES ($1) RETURNING id, lugar`
	if err := r.pool.QueryRow(ctx, query, lugar).Scan(&s.ID, &s.Lugar); err != nil {
		return models.Site{}, fmt.Errorf("failed to create site: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) UpdateSite(ctx context.Context, id int, lugar string) error {
	query := `UPDATE sitios SET lugar = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, lugar); err != nil {
		return fmt.Errorf("failed to update site: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteSite(ctx context.Context, id int) error {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registros WHERE id_sitio = $1`, id).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check site records: %w", err)
	}
	if count > 0 {
		return ErrSiteHasRecords
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM sitios WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	return nil
}

// ---- registros ----

// InsertScan persists one checkpoint visit. A client-supplied fecha is
// written as literal text; a nil fecha means the server stamps its own
// local time. The fecha column is VARCHAR on purpose: routing the value
// through a timestamp type would silently shift it across timezones.
func (r *PostgresRepository) InsertScan(ctx context.Context, siteID, userID int, fecha *string, lat, lon *float64) error {
	f := ""
	if fecha != nil {
		f = *fecha
	} else {
		f = models.FormatFecha(time.Now())
	}

	query := `
		INSERT INTO registros (id_sitio, id_usuario, fecha, latitud, longitud)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, query, siteID, userID, f, lat, lon); err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

// RecordFilter narrows the GET /records listing. Zero values mean "no
// filter"; FechaHasta is already expanded to the end of its day by the
// handler.
type RecordFilter struct {
	FechaDesde string
	FechaHasta string
	UsuarioID  int
	SitioID    int
	Limit      int
}

func (r *PostgresRepository) ListRecords(ctx context.Context, filter RecordFilter) ([]models.RecordView, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT r.id, r.fecha, r.latitud, r.longitud, u.nombre, s.lugar
		FROM registros r
		JOIN usuarios u ON r.id_usuario = u.id
		JOIN sitios s ON r.id_sitio = s.id
		WHERE 1=1
	`)

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.FechaDesde != "" {
		sb.WriteString(" AND r.fecha >= " + arg(filter.FechaDesde))
	}
	if filter.FechaHasta != "" {
		sb.WriteString(" AND r.fecha <= " + arg(filter.FechaHasta))
	}
	if filter.UsuarioID > 0 {
		sb.WriteString(" AND r.id_usuario = " + arg(filter.UsuarioID))
	}
	if filter.SitioID > 0 {
		sb.WriteString(" AND r.id_sitio = " + arg(filter.SitioID))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	sb.WriteString(" ORDER BY r.fecha DESC LIMIT " + arg(limit))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []models.RecordView
	for rows.Next() {
		var rec models.RecordView
		var fecha string
		if err := rows.Scan(&rec.ID, &fecha, &rec.Latitud, &rec.Longitud, &rec.UsuarioNombre, &rec.SitioNombre); err != nil {
			return nil, fmt.Errorf("record scan error: %w", err)
		}
		rec.Fecha = models.DisplayFecha(fecha)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastScanPerSite returns the most recent fecha per site inside the
// inclusive [desde, hasta] window. Comparison is plain text BETWEEN,
// which is chronological for the fixed zero-padded layout.
func (r *PostgresRepository) LastScanPerSite(ctx context.Context, desde, hasta string) (map[int]string, error) {
	query := `
		SELECT id_sitio, MAX(fecha)
		FROM registros
		WHERE fecha BETWEEN $1 AND $2
		GROUP BY id_sitio
	`
	rows, err := r.pool.Query(ctx, query, desde, hasta)
	if err != nil {
		return nil, fmt.Errorf("failed to query window scans: %w", err)
	}
	defer rows.Close()

	last := make(map[int]string)
	for rows.Next() {
		var siteID int
		var fecha string
		if err := rows.Scan(&siteID, &fecha); err != nil {
			return nil, fmt.Errorf("window scan error: %w", err)
		}
		last[siteID] = fecha
	}
	return last, rows.Err()
}

func (r *PostgresRepository) Stats(ctx context.Context) (totalSitios, registrosHoy int, err error) {
	if err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sitios`).Scan(&totalSitios); err != nil {
		return 0, 0, fmt.Errorf("failed to count sites: %w", err)
	}

	today := models.FormatFecha(time.Now())[:10]
	query := `SELECT COUNT(*) FROM registros WHERE left(fecha, 10) = $1`
	if err = r.pool.QueryRow(ctx, query, today).Scan(&registrosHoy); err != nil {
		return 0, 0, fmt.Errorf("failed to count today's records: %w", err)
	}
	return totalSitios, registrosHoy, nil
}

// ---- config ----

func (r *PostgresRepository) LoadConfig(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT clave, valor FROM config`)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var clave, valor string
		if err := rows.Scan(&clave, &valor); err != nil {
			return nil, fmt.Errorf("config scan error: %w", err)
		}
		values[clave] = valor
	}
	return values, rows.Err()
}

func (r *PostgresRepository) ListConfig(ctx context.Context) ([]models.ConfigEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT clave, valor, descripcion FROM config`)
	if err != nil {
		return nil, fmt.Errorf("failed to list config: %w", err)
	}
	defer rows.Close()

	var entries []models.ConfigEntry
	for rows.Next() {
		var e models.ConfigEntry
		if err := rows.Scan(&e.Clave, &e.Valor, &e.Descripcion); err != nil {
			return nil, fmt.Errorf("config scan error: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateConfig applies all settings inside one transaction. Any failure
// rolls back the whole batch; the caller reloads the cache afterwards.
func (r *PostgresRepository) UpdateConfig(ctx context.Context, settings []models.ConfigEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin config transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range settings {
		if _, err := tx.Exec(ctx, `UPDATE config SET valor = $2 WHERE clave = $1`, s.Clave, s.Valor); err != nil {
			return fmt.Errorf("failed to update config key %s: %w", s.Clave, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit config transaction: %w", err)
	}
	return nil
}
