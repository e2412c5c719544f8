package model

import (
	"errors"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Vessel{},
	&TrackPoint{},
}

////////////////////////
// SESSION MODELS
////////////////////////

// Session groups the tracks imported together, usually one race or one day on the water
type Session struct {
	gorm.Model
	Name      string    `json:"name" gorm:"size:200;uniqueIndex:idx_session_name"`
	StartTime time.Time `json:"startTime" gorm:"index:idx_session_start"` // race start, zero when unknown
	Tag       string    `json:"tag" gorm:"size:127"`
	BatchID   string    `json:"batchId" gorm:"size:36"`
	Vessels   []Vessel
}

func (*Session) TableName() string {
	return "sessions"
}

// GetOrInsert loads the session with the same name, creating it when missing.
func (s *Session) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existing Session
	err = db.Where("name = ?", s.Name).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = db.Create(s).Error
			return true, err
		}
		return false, err
	}
	*s = existing
	return false, nil
}

////////////////////////
// TRACK MODELS
////////////////////////

// Vessel is one imported track. EntityID is unique inside a session.
type Vessel struct {
	gorm.Model
	SessionID  uint            `json:"sessionId" gorm:"uniqueIndex:idx_vessel_session_entity"`
	Session    Session         `gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	EntityID   string          `json:"entityId" gorm:"size:127;uniqueIndex:idx_vessel_session_entity"`
	Name       string          `json:"name" gorm:"size:200"`
	SourceFile string          `json:"sourceFile" gorm:"size:255"`
	PointCount int             `json:"pointCount"`
	HasMetrics bool            `json:"hasMetrics"` // false: metric columns are zero and must be derived on load
	StartTime  time.Time       `json:"startTime" gorm:"index:idx_vessel_start"`
	EndTime    time.Time       `json:"endTime"`
	Path       geom.LineString `json:"path"` // EPSG:4326, lon/lat
	Metadata   datatypes.JSON  `json:"metadata"`
	Points     []TrackPoint    `json:"-"`
}

func (*Vessel) TableName() string {
	return "vessels"
}

// TrackPoint is a single recorded sample together with its derived metrics.
type TrackPoint struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	VesselID  uint      `json:"vesselId" gorm:"index:idx_trackpoint_vessel_seq,priority:1"`
	Vessel    Vessel    `gorm:"foreignkey:VesselID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Seq       int       `json:"seq" gorm:"index:idx_trackpoint_vessel_seq,priority:2"`
	Time      time.Time `json:"time" gorm:"NOT NULL;index:idx_trackpoint_time"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Elevation float64   `json:"elevation"`
	// Location is the EPSG:3857 projection of Lat/Lon
	Location geom.Point `json:"location"`

	Speed               float64 `json:"speed"`
	CumulativeDistance  float64 `json:"cumulativeDistance"`
	RunningAverageSpeed float64 `json:"runningAverageSpeed"`
}

func (*TrackPoint) TableName() string {
	return "track_points"
}
