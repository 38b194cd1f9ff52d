package models

// SyncStatus is the client-local lifecycle state of a captured scan.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// ScanRecord is one checkpoint visit attempt as held by the device.
// Fecha is local wall-clock text ("YYYY-MM-DD HH:MM:SS") and must travel
// verbatim to storage. Latitud/Longitud stay nil when the device could not
// acquire a fix before the timeout.
type ScanRecord struct {
	LocalID    string     `json:"localId"`
	SiteID     int        `json:"id_sitio"`
	OperatorID int        `json:"id_usuario"`
	Fecha      string     `json:"fecha"`
	Latitud    *float64   `json:"latitud,omitempty"`
	Longitud   *float64   `json:"longitud,omitempty"`
	SyncStatus SyncStatus `json:"syncStatus"`
}
