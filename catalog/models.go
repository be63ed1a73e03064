package catalog

import (
	"time"
)

type Disc struct {
	Number     int `gorm:"primaryKey"`
	Label      string
	ISOPath    string
	Start      string
	End        string
	Size       int64
	AssetCount int
	CreatedAt  time.Time
}

type DiscAsset struct {
	AssetID       string `gorm:"primaryKey"`
	DiscNumber    int
	Disc          Disc `gorm:"foreignKey:DiscNumber"`
	Name          string
	TargetName    string
	Hash          int64
	Size          int64
	FileCreatedAt time.Time
	CreatedAt     time.Time
}
