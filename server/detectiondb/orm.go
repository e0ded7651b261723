package detectiondb

import (
	"github.com/cyclopcam/dbh"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/reporter"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// A batch of detections, as POSTed by a detector
type Batch struct {
	BaseModel
	ReceivedAt dbh.IntTime  `json:"receivedAt"`
	Timestamp  string       `json:"timestamp"` // Sender's timestamp, verbatim
	Detections []*Detection `gorm:"foreignKey:BatchID" json:"detections"`
}

type Detection struct {
	BaseModel
	BatchID    int64   `json:"-"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Hits       int     `json:"hits"`
	Age        int     `json:"age"`
	X1         int     `json:"-"`
	Y1         int     `json:"-"`
	X2         int     `json:"-"`
	Y2         int     `json:"-"`
	Verified   bool    `json:"verified"`
}

// BBox returns [x1,y1,x2,y2]
func (d *Detection) BBox() [4]int {
	return [4]int{d.X1, d.Y1, d.X2, d.Y2}
}

// ToWire converts the batch back into the form in which it was received
func (b *Batch) ToWire() reporter.Batch {
	w := reporter.Batch{
		Timestamp:  b.Timestamp,
		Detections: make([]reporter.Detection, 0, len(b.Detections)),
	}
	for _, d := range b.Detections {
		w.Detections = append(w.Detections, reporter.Detection{
			Class:      d.Class,
			Confidence: d.Confidence,
			Hits:       d.Hits,
			Age:        d.Age,
			BBox:       d.BBox(),
			Verified:   d.Verified,
		})
	}
	return w
}
