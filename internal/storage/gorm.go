package storage

import (
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotRecord is one row of strategy_snapshots.
type SnapshotRecord struct {
	Name      string    `gorm:"column:name;primaryKey;size:128"`
	Payload   []byte    `gorm:"column:payload;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName implements gorm's tabler.
func (SnapshotRecord) TableName() string {
	return "strategy_snapshots"
}

// GormStore keeps snapshots in a SQL table through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the snapshot table and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("gorm db is nil")
	}
	if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate strategy_snapshots")
	}
	return &GormStore{db: db}, nil
}

// Load selects the row by name and decodes its payload into v.
func (s *GormStore) Load(name string, v any) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	var recs []SnapshotRecord
	if err := s.db.Where("name = ?", name).Limit(1).Find(&recs).Error; err != nil {
		return false, errors.Wrap(err, "select snapshot").With("name", name)
	}
	if len(recs) == 0 {
		return false, nil
	}
	if err := decode(name, recs[0].Payload, v); err != nil {
		return false, err
	}
	return true, nil
}

// Save upserts the encoded payload in one statement.
func (s *GormStore) Save(name string, v any) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := encode(name, v)
	if err != nil {
		return err
	}
	rec := SnapshotRecord{Name: name, Payload: data, UpdatedAt: time.Now().UTC()}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return errors.Wrap(err, "upsert snapshot").With("name", name)
	}
	return nil
}
